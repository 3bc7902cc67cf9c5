package banlog

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/store"
)

func nullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T, size string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Banlog.Enabled = true
	cfg.Banlog.Dir = t.TempDir()
	cfg.Banlog.Size = size
	return cfg
}

func newTestBanlog(t *testing.T, cfg *config.Config) *Banlog {
	t.Helper()
	b, err := New(cfg, WithLogger(nullLogger()), WithSource(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("New() returned an unexpected error: %v", err)
	}
	return b
}

func key(t *testing.T, a, b, c int) addr.Key {
	t.Helper()
	k, err := addr.FromOctets(a, b, c)
	if err != nil {
		t.Fatalf("FromOctets(%d, %d, %d) returned an unexpected error: %v", a, b, c, err)
	}
	return k
}

func names(entries []index.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, "80KB")
	cfg.Banlog.Enabled = false
	b := newTestBanlog(t, cfg)

	if b.Available() {
		t.Error("Available() = true, want false")
	}
	k := key(t, 10, 0, 0)
	if _, err := b.Add(k, "alice"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add() error = %v, want %v", err, ErrUnavailable)
	}
	if _, err := b.Remove(k); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Remove() error = %v, want %v", err, ErrUnavailable)
	}
	if b.Identify(k) {
		t.Error("Identify() = true, want false")
	}
	if err := b.Dump(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Dump() error = %v, want %v", err, ErrUnavailable)
	}
	if err := b.Save(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Save() error = %v, want %v", err, ErrUnavailable)
	}
	if _, err := b.Import(filepath.Join(cfg.Banlog.Dir, SnapshotFile)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Import() error = %v, want %v", err, ErrUnavailable)
	}
	if got := b.Entries(); got != nil {
		t.Errorf("Entries() = %v, want nil", got)
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}

	files, _ := os.ReadDir(cfg.Banlog.Dir)
	if len(files) != 0 {
		t.Errorf("disabled banlog created %d files, want none", len(files))
	}
}

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()
	if _, err := New(newTestConfig(t, "a lot"), WithLogger(nullLogger())); err == nil {
		t.Error("New() with an invalid size was expected to return an error")
	}
}

func TestAddIdentifyRemove(t *testing.T) {
	t.Parallel()
	b := newTestBanlog(t, newTestConfig(t, ""))
	k := key(t, 10, 0, 0)

	e, err := b.Add(k, "alice")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if e.Key != k || e.Name != "alice" {
		t.Errorf("Add() = %+v, want key %v by alice", e, k)
	}
	if !b.Identify(k) {
		t.Error("Identify() after Add = false, want true")
	}
	if got, ok := b.Get(k); !ok || got.Name != "alice" {
		t.Errorf("Get() = %+v, %v, want alice, true", got, ok)
	}
	if _, err := b.Add(k, "bob"); !errors.Is(err, index.ErrDuplicateKey) {
		t.Errorf("second Add() error = %v, want %v", err, index.ErrDuplicateKey)
	}
	if _, err := b.Add(key(t, 10, 0, 1), "   "); !errors.Is(err, addr.ErrInvalidName) {
		t.Errorf("Add() with a blank name error = %v, want %v", err, addr.ErrInvalidName)
	}

	if _, err := b.Remove(k); err != nil {
		t.Fatalf("Remove() returned an unexpected error: %v", err)
	}
	if b.Identify(k) {
		t.Error("Identify() after Remove = true, want false")
	}
	if _, err := b.Remove(k); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want %v", err, index.ErrNotFound)
	}
	if _, err := b.Add(k, "carol"); err != nil {
		t.Errorf("Add() after Remove returned an unexpected error: %v", err)
	}
}

func TestGeneration(t *testing.T) {
	t.Parallel()
	b := newTestBanlog(t, newTestConfig(t, "40")) // two entries

	steps := []struct {
		name string
		op   func() error
		want uint64
	}{
		{"add", func() error { _, err := b.Add(key(t, 1, 0, 0), "a"); return err }, 1},
		{"duplicate", func() error { b.Add(key(t, 1, 0, 0), "a"); return nil }, 1},
		{"identify", func() error { b.Identify(key(t, 1, 0, 0)); return nil }, 1},
		{"add second", func() error { _, err := b.Add(key(t, 2, 0, 0), "b"); return err }, 2},
		{"add evicting", func() error { _, err := b.Add(key(t, 3, 0, 0), "c"); return err }, 4},
		{"remove", func() error { _, err := b.Remove(key(t, 3, 0, 0)); return err }, 5},
		{"remove missing", func() error { b.Remove(key(t, 3, 0, 0)); return nil }, 5},
	}
	for _, s := range steps {
		if err := s.op(); err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}
		if got := b.Generation(); got != s.want {
			t.Errorf("%s: Generation() = %d, want %d", s.name, got, s.want)
		}
	}
}

func TestDump(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, "")
	b := newTestBanlog(t, cfg)
	b.Add(key(t, 10, 0, 2), "carol")
	b.Add(key(t, 10, 0, 0), "alice")
	b.Add(key(t, 10, 0, 1), "bob")

	if err := b.Dump(); err != nil {
		t.Fatalf("Dump() returned an unexpected error: %v", err)
	}

	txt, err := os.ReadFile(filepath.Join(cfg.Banlog.Dir, ExportFile))
	if err != nil {
		t.Fatalf("failed to read listing: %v", err)
	}
	want := "10.0.0.xxx        alice\n" +
		"10.0.1.xxx        bob\n" +
		"10.0.2.xxx        carol\n"
	if string(txt) != want {
		t.Errorf("listing =\n%s\nwant\n%s", txt, want)
	}

	info, err := os.Stat(filepath.Join(cfg.Banlog.Dir, SnapshotFile))
	if err != nil {
		t.Fatalf("Dump() did not write the snapshot: %v", err)
	}
	if info.Size() != 3*store.RecordSize {
		t.Errorf("snapshot size = %d, want %d", info.Size(), 3*store.RecordSize)
	}
}

func TestSave_ReloadKeepsEntriesAndAge(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, "60") // three entries
	b := newTestBanlog(t, cfg)
	for i, name := range []string{"a", "b", "c", "d"} {
		if _, err := b.Add(key(t, 10, 0, i), name); err != nil {
			t.Fatalf("Add(%s) returned an unexpected error: %v", name, err)
		}
	}
	if err := b.Save(); err != nil {
		t.Fatalf("Save() returned an unexpected error: %v", err)
	}

	reloaded := newTestBanlog(t, cfg)
	if got, want := names(reloaded.Entries()), []string{"b", "c", "d"}; !slices.Equal(got, want) {
		t.Fatalf("Entries() after reload = %v, want %v", got, want)
	}

	// the oldest entry before the save is still the first to go
	if _, err := reloaded.Add(key(t, 10, 0, 9), "e"); err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if got, want := names(reloaded.Entries()), []string{"c", "d", "e"}; !slices.Equal(got, want) {
		t.Errorf("Entries() after eviction = %v, want %v", got, want)
	}
}

func TestNew_SkipsBadRecords(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, "")

	var data []byte
	rec := func(raw uint32, name string) {
		var r [store.RecordSize]byte
		binary.LittleEndian.PutUint32(r[:4], raw)
		copy(r[4:], name)
		data = append(data, r[:]...)
	}
	rec(0x0a0000, "alice")
	rec(0x01000000, "toolarge")
	rec(0x0a0001, "")
	rec(0x0a0000, "dupe")
	rec(0x0a0002, "carol")
	data = append(data, 1, 2, 3) // torn tail
	if err := os.WriteFile(filepath.Join(cfg.Banlog.Dir, SnapshotFile), data, 0o644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	b := newTestBanlog(t, cfg)
	if got, want := names(b.Entries()), []string{"alice", "carol"}; !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestImport(t *testing.T) {
	t.Parallel()
	other := newTestBanlog(t, newTestConfig(t, ""))
	other.Add(key(t, 10, 0, 0), "alice")
	other.Add(key(t, 10, 0, 1), "bob")
	other.Add(key(t, 10, 0, 2), "carol")
	if err := other.Save(); err != nil {
		t.Fatalf("Save() returned an unexpected error: %v", err)
	}
	src := filepath.Join(other.dir, SnapshotFile)

	b := newTestBanlog(t, newTestConfig(t, ""))
	b.Add(key(t, 10, 0, 1), "dave")
	gen := b.Generation()

	n, err := b.Import(src)
	if err != nil {
		t.Fatalf("Import() returned an unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("Import() = %d, want 2", n)
	}
	if got, want := names(b.Entries()), []string{"alice", "dave", "carol"}; !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if b.Generation() != gen+2 {
		t.Errorf("Generation() = %d, want %d", b.Generation(), gen+2)
	}
}

func TestImport_MissingFile(t *testing.T) {
	t.Parallel()
	b := newTestBanlog(t, newTestConfig(t, ""))
	_, err := b.Import(filepath.Join(t.TempDir(), "absent.dat"))
	if !errors.Is(err, store.ErrIO) {
		t.Errorf("Import() error = %v, want %v", err, store.ErrIO)
	}
}

func TestSave_UnwritableDir(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, "")
	b := newTestBanlog(t, cfg)
	b.Add(key(t, 10, 0, 0), "alice")

	b.dir = filepath.Join(cfg.Banlog.Dir, "missing")
	b.snapshot.Path = filepath.Join(b.dir, SnapshotFile)
	if err := b.Save(); err == nil {
		t.Error("Save() into a missing directory was expected to return an error")
	}
	if !b.Identify(key(t, 10, 0, 0)) {
		t.Error("a failed save lost the live entry")
	}
}
