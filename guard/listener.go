package guard

import (
	"net"
	"net/netip"
)

type listener struct {
	net.Listener
	g *Guard
}

// Listener wraps ln so that Accept closes connections from banned subnets
// and only returns the others.
func (g *Guard) Listener(ln net.Listener) net.Listener {
	return &listener{Listener: ln, g: g}
}

func (l *listener) Accept() (net.Conn, error) {
	for {
		c, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if l.g.Allow(remoteAddr(c)) {
			return c, nil
		}
		c.Close()
	}
}

// remoteAddr returns the zero Addr when the peer is not an IP endpoint.
func remoteAddr(c net.Conn) netip.Addr {
	switch ra := c.RemoteAddr().(type) {
	case *net.TCPAddr:
		return ra.AddrPort().Addr()
	case nil:
		return netip.Addr{}
	default:
		ap, err := netip.ParseAddrPort(ra.String())
		if err != nil {
			return netip.Addr{}
		}
		return ap.Addr()
	}
}
