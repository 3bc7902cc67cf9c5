package config

import (
	"log/slog"
	"time"
)

// NewDefaultConfig creates a new Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Banlog: Banlog{
			Enabled: false,
			Size:    "",
			Dir:     ".",
			Seed:    0,
		},
		Log: Log{
			Format: LogFormatText,
			Level:  LogLevel{Level: slog.LevelInfo},
		},
		Guard: Guard{
			CacheCounters: 100_000,
			CacheMaxCost:  10_000,
			TopK:          10,
			Window:        60,
			Width:         1024,
			Depth:         3,
		},
		Server: Server{
			Addr:             ":26000",
			Upstream:         "127.0.0.1:26001",
			SnapshotInterval: Duration{Duration: 5 * time.Minute},
			ShutdownTimeout:  Duration{Duration: 10 * time.Second},
			DialTimeout:      Duration{Duration: 5 * time.Second},
		},
	}
}
