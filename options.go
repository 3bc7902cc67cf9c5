package banlog

import (
	"log/slog"
	"math/rand/v2"

	"github.com/caasmo/banlog/lock"
)

type Option func(*Banlog)

// WithLogger sets the logger implementation
func WithLogger(l *slog.Logger) Option {
	return func(b *Banlog) {
		b.logger = l
	}
}

// WithLocker replaces the advisory lock taken around snapshot I/O.
func WithLocker(l lock.Locker) Option {
	return func(b *Banlog) {
		b.locker = l
	}
}

// WithSource sets the coin source used for tree merges. It takes
// precedence over a configured seed.
func WithSource(src rand.Source) Option {
	return func(b *Banlog) {
		b.src = src
	}
}
