package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/lock"
)

// File is a snapshot on disk. Every Load and Save holds Locker for the
// duration of the I/O.
type File struct {
	Path   string
	Locker lock.Locker
}

// NewFile returns a snapshot file guarded by locker. A nil locker means no
// cross-process locking.
func NewFile(path string, locker lock.Locker) *File {
	if locker == nil {
		locker = lock.Nop{}
	}
	return &File{Path: path, Locker: locker}
}

// Load reads the snapshot, see Load. A missing file loads nothing.
func (f *File) Load(add func(raw uint32, name string) error) (n int, err error) {
	if err := f.Locker.Lock(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if uerr := f.Locker.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIO, uerr)
		}
	}()

	fh, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer fh.Close()

	return Load(fh, add)
}

// Save replaces the snapshot with entries. The previous snapshot stays in
// place if writing fails.
func (f *File) Save(entries iter.Seq[index.Entry]) (err error) {
	if err := f.Locker.Lock(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if uerr := f.Locker.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIO, uerr)
		}
	}()

	return WriteFile(f.Path, func(w io.Writer) error {
		return Save(w, entries)
	})
}

// WriteFile writes a temporary file next to path with write, syncs it and
// renames it over path.
func WriteFile(path string, write func(io.Writer) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		if errors.Is(err, ErrIO) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrIO, path, err)
	}
	committed = true
	return nil
}
