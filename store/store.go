// Package store reads and writes the binary ban snapshot.
//
// The snapshot is a bare sequence of 20-byte records: a little-endian
// uint32 subnet key (high byte zero) followed by a 16-byte NUL-padded name
// field. There is no header, version or checksum; any change to the record
// layout is a breaking format change.
package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/caasmo/banlog/index"
)

const (
	NameSize   = 16
	RecordSize = 4 + NameSize
)

var ErrIO = errors.New("snapshot i/o failure")

// Record is the on-disk form of one entry.
type Record struct {
	Key  uint32
	Name [NameSize]byte
}

// NewRecord encodes an entry. Names longer than the field are truncated.
func NewRecord(e index.Entry) Record {
	r := Record{Key: uint32(e.Key)}
	copy(r.Name[:], e.Name)
	return r
}

// Load reads records from r until it is exhausted and passes each one to
// add. Records rejected by add are skipped, and a trailing partial record
// ends the load. It returns the number of records add accepted.
func Load(r io.Reader, add func(raw uint32, name string) error) (int, error) {
	br := bufio.NewReader(r)
	loaded := 0
	for {
		var rec Record
		err := binary.Read(br, binary.LittleEndian, &rec)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return loaded, nil
		}
		if err != nil {
			return loaded, fmt.Errorf("%w: read record: %w", ErrIO, err)
		}
		if add(rec.Key, string(rec.Name[:])) == nil {
			loaded++
		}
	}
}

// Save writes one record per entry, in sequence order.
func Save(w io.Writer, entries iter.Seq[index.Entry]) error {
	bw := bufio.NewWriter(w)
	for e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, NewRecord(e)); err != nil {
			return fmt.Errorf("%w: write record: %w", ErrIO, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}
	return nil
}
