package config

import (
	"fmt"
	"net"
	"strings"
)

func Validate(cfg *Config) error {
	if err := validateBanlog(&cfg.Banlog); err != nil {
		return fmt.Errorf("banlog config validation failed: %w", err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	if err := validateGuard(&cfg.Guard); err != nil {
		return fmt.Errorf("guard config validation failed: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	return nil
}

func validateBanlog(b *Banlog) error {
	if b.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	if _, err := b.Capacity(); err != nil {
		return err
	}
	return nil
}

func validateLog(l *Log) error {
	switch l.Format {
	case LogFormatText, LogFormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown log format %q, want %q or %q", l.Format, LogFormatText, LogFormatJSON)
	}
}

func validateGuard(g *Guard) error {
	if g.CacheCounters <= 0 || g.CacheMaxCost <= 0 {
		return fmt.Errorf("cache_counters and cache_max_cost must be positive")
	}
	if g.TopK <= 0 || g.Window <= 0 || g.Width <= 0 || g.Depth <= 0 {
		return fmt.Errorf("top_k, window, width and depth must be positive")
	}
	return nil
}

// validateServer checks the Server configuration section.
//
// Addr accepts "host:port" or ":port"; a bare ":port" listens on every
// interface. Upstream must name a host and a port. MetricsAddr is optional.
func validateServer(server *Server) error {
	if err := validateHostPort("addr", server.Addr, true); err != nil {
		return err
	}
	if err := validateHostPort("upstream", server.Upstream, false); err != nil {
		return err
	}
	if server.SnapshotInterval.Duration <= 0 {
		return fmt.Errorf("snapshot_interval must be positive")
	}
	if server.ShutdownTimeout.Duration <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if server.DialTimeout.Duration <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	if server.MetricsAddr != "" {
		if err := validateHostPort("metrics_addr", server.MetricsAddr, true); err != nil {
			return err
		}
	}
	return nil
}

func validateHostPort(field, value string, allowEmptyHost bool) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("invalid %s format '%s': %w", field, value, err)
	}
	if port == "" {
		return fmt.Errorf("%s '%s' must include a port", field, value)
	}
	if host == "" && !allowEmptyHost {
		return fmt.Errorf("%s '%s' must include a host", field, value)
	}
	if strings.ContainsAny(port, " \t") {
		return fmt.Errorf("invalid port '%s' in %s '%s'", port, field, value)
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("invalid port '%s' in %s '%s': %w", port, field, value, err)
	}
	return nil
}
