// Package lock provides the advisory lock held around snapshot file I/O so
// that several processes sharing a data directory never interleave reads
// and writes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrNotLocked = errors.New("lock not held")

// Locker is a scoped cross-process lock. Lock blocks until the lock is
// acquired.
type Locker interface {
	Lock() error
	Unlock() error
}

// Nop is a Locker that does nothing.
type Nop struct{}

func (Nop) Lock() error   { return nil }
func (Nop) Unlock() error { return nil }

// File locks a dedicated lock file. The file is created on first use and
// never removed, so every process agrees on the same inode.
type File struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewFile returns a Locker backed by the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the lock file path.
func (l *File) Path() string { return l.path }

// Lock opens the lock file and takes an exclusive lock on it.
func (l *File) Lock() error {
	l.mu.Lock()
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("lock: open %s: %w", l.path, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		l.mu.Unlock()
		return fmt.Errorf("lock: acquire %s: %w", l.path, err)
	}
	l.f = f
	return nil
}

// Unlock releases the lock taken by Lock.
func (l *File) Unlock() error {
	if l.f == nil {
		return ErrNotLocked
	}
	f := l.f
	l.f = nil
	defer l.mu.Unlock()

	err := unlockFile(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", l.path, err)
	}
	return nil
}
