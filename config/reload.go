package config

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Provider holds the active configuration and allows it to be swapped
// while readers keep using the previous value.
type Provider struct {
	cur atomic.Pointer[Config]
}

func NewProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.cur.Store(cfg)
	return p
}

func (p *Provider) Get() *Config {
	return p.cur.Load()
}

func (p *Provider) Update(cfg *Config) {
	p.cur.Store(cfg)
}

// Reload reads the provider's source file again and swaps in the result.
// Fields that only take effect on restart are logged when they change.
func Reload(provider *Provider, logger *slog.Logger) error {
	old := provider.Get()
	if old.Source == "" {
		return fmt.Errorf("config: nothing to reload, configuration was not read from a file")
	}

	logger.Debug("Reload: reading configuration", "path", old.Source)
	newCfg, err := Load(old.Source)
	if err != nil {
		logger.Error("Reload: failed to load configuration", "path", old.Source, "error", err)
		return err
	}

	for _, field := range changedRestartFields(old, newCfg) {
		logger.Warn("Reload: field changed, restart required to apply", "field", field)
	}

	provider.Update(newCfg)
	logger.Info("Reload: configuration reloaded", "path", old.Source)
	return nil
}

// changedRestartFields lists fields that differ between old and new but are
// only read at startup.
func changedRestartFields(old, new *Config) []string {
	changed := []string{}
	if old.Banlog != new.Banlog {
		changed = append(changed, "Banlog")
	}
	if old.Guard != new.Guard {
		changed = append(changed, "Guard")
	}
	if old.Server.Addr != new.Server.Addr {
		changed = append(changed, "Server.Addr")
	}
	if old.Server.Upstream != new.Server.Upstream {
		changed = append(changed, "Server.Upstream")
	}
	if old.Log.Format != new.Log.Format {
		changed = append(changed, "Log.Format")
	}
	return changed
}
