// Package admin exposes a running banlog over HTTP on a unix socket so
// that console commands act on the index the gate is enforcing.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/index"
)

// ErrServing is returned by Listen when another server answers on the
// socket.
var ErrServing = errors.New("admin: a server is already listening")

// Bans is the set of operations the console runs, against either the
// local banlog or a running server.
type Bans interface {
	Available() bool
	Add(k addr.Key, name string) (index.Entry, error)
	Remove(k addr.Key) (index.Entry, error)
	Get(k addr.Key) (index.Entry, bool)
	Entries() []index.Entry
	Dump() error
	Import(path string) (int, error)
	Save() error
}

const pingTimeout = time.Second

// Listen opens the unix socket at path. A socket file left behind by a
// server that is gone is replaced.
func Listen(path string) (net.Listener, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := NewClient(path).Ping(ctx); err == nil {
		return nil, fmt.Errorf("%w on %s", ErrServing, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("admin: remove stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("admin: listen %s: %w", path, err)
	}
	return ln, nil
}
