// Package banlog keeps a bounded set of banned /24 subnets, persists it to a
// snapshot file and answers whether an address belongs to a banned subnet.
package banlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/lock"
	"github.com/caasmo/banlog/report"
	"github.com/caasmo/banlog/store"
)

const (
	SnapshotFile = "banlog.dat"
	ExportFile   = "banlog.txt"
	LockFile     = "banlog.lock"

	// AdminSocket is where a serving process accepts console commands.
	AdminSocket = "banlog.sock"
)

// ErrUnavailable is returned by every operation when no capacity is
// configured.
var ErrUnavailable = errors.New("BAN logging not available")

type Banlog struct {
	mu  sync.Mutex
	ix  *index.Index // nil when disabled
	gen atomic.Uint64

	dir      string
	snapshot *store.File

	logger *slog.Logger
	locker lock.Locker
	src    rand.Source
}

// New builds the index sized from cfg and loads the snapshot in cfg's
// directory. A snapshot that cannot be read is logged and the index starts
// with whatever was loaded; New only fails on an invalid size.
func New(cfg *config.Config, opts ...Option) (*Banlog, error) {
	capacity, err := cfg.Banlog.Capacity()
	if err != nil {
		return nil, err
	}

	b := &Banlog{dir: cfg.Banlog.Dir}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if capacity == 0 {
		b.logger.Info("BAN logging not available")
		return b, nil
	}
	if b.locker == nil {
		b.locker = lock.NewFile(filepath.Join(b.dir, LockFile))
	}
	if b.src == nil && cfg.Banlog.Seed != 0 {
		b.src = rand.NewPCG(cfg.Banlog.Seed, cfg.Banlog.Seed)
	}

	ixOpts := []index.Option{index.WithEvictHook(b.evicted)}
	if b.src != nil {
		ixOpts = append(ixOpts, index.WithSource(b.src))
	}
	b.ix = index.New(capacity, ixOpts...)
	b.snapshot = store.NewFile(filepath.Join(b.dir, SnapshotFile), b.locker)

	n, err := b.snapshot.Load(b.insert)
	if err != nil {
		b.logger.Error("failed to load snapshot", "path", b.snapshot.Path, "error", err)
	}
	b.logger.Info("BAN logging initialized", "capacity", capacity, "entries", n)
	return b, nil
}

// Available reports whether the index has capacity.
func (b *Banlog) Available() bool { return b.ix != nil }

func (b *Banlog) evicted(e index.Entry) {
	b.gen.Add(1)
	b.logger.Info("ip address evicted", "subnet", e.Key, "by", e.Name)
}

// insert adds without logging; callers hold mu or own b exclusively.
func (b *Banlog) insert(raw uint32, name string) error {
	if _, err := b.ix.Insert(raw, name); err != nil {
		return err
	}
	b.gen.Add(1)
	return nil
}

// Add bans the subnet of k on behalf of name.
func (b *Banlog) Add(k addr.Key, name string) (index.Entry, error) {
	if b.ix == nil {
		return index.Entry{}, ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.ix.Insert(uint32(k), name)
	if err != nil {
		return e, err
	}
	b.gen.Add(1)
	b.logger.Info("ip address added", "subnet", e.Key, "by", e.Name)
	return e, nil
}

// Remove lifts the ban on the subnet of k.
func (b *Banlog) Remove(k addr.Key) (index.Entry, error) {
	if b.ix == nil {
		return index.Entry{}, ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.ix.Remove(uint32(k))
	if err != nil {
		return e, err
	}
	b.gen.Add(1)
	b.logger.Info("ip address removed", "subnet", e.Key)
	return e, nil
}

// Identify reports whether the subnet of k is banned. A disabled index bans
// nothing.
func (b *Banlog) Identify(k addr.Key) bool {
	if b.ix == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ix.Lookup(uint32(k))
}

// Get returns the entry banning the subnet of k.
func (b *Banlog) Get(k addr.Key) (index.Entry, bool) {
	if b.ix == nil {
		return index.Entry{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ix.Get(uint32(k))
}

// Dump writes the sorted listing to banlog.txt and then saves the snapshot.
func (b *Banlog) Dump() error {
	if b.ix == nil {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	path := filepath.Join(b.dir, ExportFile)
	if err := store.WriteFile(path, func(w io.Writer) error {
		return report.Write(w, b.ix.All())
	}); err != nil {
		b.logger.Error("failed to write listing", "path", path, "error", err)
		return err
	}
	b.logger.Info("listing written", "path", path, "entries", b.ix.Len())
	return b.save()
}

// Import merges the records of the snapshot-format file at path into the
// index and returns how many were accepted. Records that are invalid or
// already present are skipped.
func (b *Banlog) Import(path string) (int, error) {
	if b.ix == nil {
		return 0, ErrUnavailable
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrIO, err)
	}
	defer f.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := store.Load(f, b.insert)
	if err != nil {
		b.logger.Error("failed to merge", "path", path, "merged", n, "error", err)
		return n, err
	}
	b.logger.Info("merged", "path", path, "entries", n)
	return n, nil
}

// Save writes the snapshot, oldest entry first.
func (b *Banlog) Save() error {
	if b.ix == nil {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.save()
}

func (b *Banlog) save() error {
	if err := b.snapshot.Save(b.ix.Logical()); err != nil {
		b.logger.Error("failed to save snapshot", "path", b.snapshot.Path, "error", err)
		return err
	}
	b.logger.Debug("snapshot saved", "path", b.snapshot.Path, "entries", b.ix.Len())
	return nil
}

// Entries returns the banned subnets in ascending order.
func (b *Banlog) Entries() []index.Entry {
	if b.ix == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Collect(b.ix.All())
}

func (b *Banlog) Len() int {
	if b.ix == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ix.Len()
}

// Generation changes after every mutation, evictions included.
func (b *Banlog) Generation() uint64 {
	return b.gen.Load()
}
