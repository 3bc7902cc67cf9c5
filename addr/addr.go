// Package addr derives the 24-bit subnet keys and the display names stored
// in the ban index.
//
// A key holds the first three octets of an IPv4 address; the last octet is
// always a wildcard, so one key bans a whole /24.
package addr

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// MaxNameLen is the longest display name kept, in bytes.
const MaxNameLen = 15

var (
	ErrInvalidAddress = errors.New("ip address out of range")
	ErrInvalidName    = errors.New("name is empty")
)

// Key is a subnet key: a<<16 | b<<8 | c. The high byte is always zero.
type Key uint32

// Octets returns the three significant octets of the key.
func (k Key) Octets() (a, b, c uint8) {
	return uint8(k >> 16), uint8(k >> 8), uint8(k)
}

// String renders the key as A.B.C.xxx.
func (k Key) String() string {
	a, b, c := k.Octets()
	return fmt.Sprintf("%d.%d.%d.xxx", a, b, c)
}

// DeriveKey validates a raw 32-bit address value. Only the low 24 bits may
// be set.
func DeriveKey(raw uint32) (Key, error) {
	if raw>>16 > 0xff {
		return 0, fmt.Errorf("%w: [%d.%d.%d.xxx]", ErrInvalidAddress, raw>>16, (raw>>8)&0xff, raw&0xff)
	}
	return Key(raw), nil
}

// FromOctets builds a key from three octet values.
func FromOctets(a, b, c int) (Key, error) {
	for _, o := range [...]int{a, b, c} {
		if o < 0 || o > 0xff {
			return 0, fmt.Errorf("%w: [%d.%d.%d.xxx]", ErrInvalidAddress, a, b, c)
		}
	}
	return Key(a<<16 | b<<8 | c), nil
}

// FromAddr returns the subnet key of an IPv4 or IPv4-mapped address.
func FromAddr(ip netip.Addr) (Key, bool) {
	ip = ip.Unmap()
	if !ip.Is4() {
		return 0, false
	}
	b := ip.As4()
	return Key(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])), true
}

// Parse reads a subnet written as A.B.C, A.B.C.xxx, A.B.C.*, A.B.C.D or
// A.B.C.D/24. The fourth octet, when present, is ignored.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if base, bits, ok := strings.Cut(s, "/"); ok {
		if bits != "24" {
			return 0, fmt.Errorf("%w: only /24 prefixes are supported: %q", ErrInvalidAddress, s)
		}
		s = base
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 3:
	case 4:
		last := parts[3]
		if last != "xxx" && last != "*" {
			if _, err := strconv.ParseUint(last, 10, 8); err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
			}
		}
		parts = parts[:3]
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var octets [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		octets[i] = n
	}
	return FromOctets(octets[0], octets[1], octets[2])
}

// NormalizeName keeps at most MaxNameLen bytes of raw, stopping at the first
// NUL, and trims trailing spaces and NULs. A blank result is an error.
func NormalizeName(raw string) (string, error) {
	if i := strings.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) > MaxNameLen {
		raw = raw[:MaxNameLen]
	}
	name := strings.TrimRight(raw, " \x00")
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
