package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// EntrySize is the size of one snapshot record; byte budgets are divided
	// by it to get the index capacity.
	EntrySize = 20

	// DefaultCapacity is used when the byte budget is unset or smaller than
	// one entry.
	DefaultCapacity = 0x1000

	// MaxCapacity is the number of distinct /24 subnets; a larger index
	// could never fill.
	MaxCapacity = 1 << 24
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	// Source is the file the config was read from, empty for defaults.
	Source string `toml:"-"`

	Banlog Banlog `toml:"banlog"`
	Log    Log    `toml:"log"`
	Guard  Guard  `toml:"guard"`
	Server Server `toml:"server"`
}

type Banlog struct {
	// Enabled false turns every ban operation into a no-op.
	Enabled bool `toml:"enabled"`

	// Size is the memory budget for entries, e.g. "80KB" or "64KiB".
	Size string `toml:"size"`

	// Dir holds banlog.dat, banlog.txt and banlog.lock.
	Dir string `toml:"dir"`

	// Seed makes tree merges reproducible when non-zero.
	Seed uint64 `toml:"seed"`
}

// Capacity returns the number of entries the budget allows, or 0 when the
// index is disabled.
func (b Banlog) Capacity() (int, error) {
	if !b.Enabled {
		return 0, nil
	}
	if b.Size == "" {
		return DefaultCapacity, nil
	}
	n, err := humanize.ParseBytes(b.Size)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", b.Size, err)
	}
	entries := n / EntrySize
	if entries == 0 {
		return DefaultCapacity, nil
	}
	if entries > MaxCapacity {
		return 0, fmt.Errorf("size %q holds %d entries, more than the %d possible subnets", b.Size, entries, MaxCapacity)
	}
	return int(entries), nil
}

type Log struct {
	Format string   `toml:"format"`
	Level  LogLevel `toml:"level"`
}

// Guard configures the connection gate.
type Guard struct {
	// ristretto sizing for the lookup cache.
	CacheCounters int64 `toml:"cache_counters"`
	CacheMaxCost  int64 `toml:"cache_max_cost"`

	// top-k sketch of rejected subnets.
	TopK   int `toml:"top_k"`
	Window int `toml:"window"`
	Width  int `toml:"width"`
	Depth  int `toml:"depth"`
}

type Server struct {
	Addr             string   `toml:"addr"`
	Upstream         string   `toml:"upstream"`
	SnapshotInterval Duration `toml:"snapshot_interval"`
	ShutdownTimeout  Duration `toml:"shutdown_timeout"`
	DialTimeout      Duration `toml:"dial_timeout"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `toml:"metrics_addr"`
}

// Duration wraps time.Duration to support TOML string parsing.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LogLevel wraps slog.Level to support TOML string parsing.
type LogLevel struct {
	slog.Level
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return fmt.Errorf("empty log level")
	}
	return l.Level.UnmarshalText(text)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	return l.Level.MarshalText()
}
