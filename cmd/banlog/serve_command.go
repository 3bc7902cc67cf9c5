package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/cache/ristretto"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/guard"
	"github.com/caasmo/banlog/metrics"
	"github.com/caasmo/banlog/server"
	"github.com/caasmo/banlog/topk"
)

// serveContext is replaced in tests.
var serveContext = func() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,  // kill -SIGINT XXXX or Ctrl+c
		syscall.SIGTERM, // kill -SIGTERM XXXX
		syscall.SIGQUIT, // kill -SIGQUIT XXXX
	)
}

func handleServeCommand(output io.Writer, provider *config.Provider, bl *banlog.Banlog, logger *slog.Logger) error {
	cfg := provider.Get()

	c, err := ristretto.New[uint64, bool](cfg.Guard.CacheCounters, cfg.Guard.CacheMaxCost)
	if err != nil {
		return fmt.Errorf("failed to create lookup cache: %w", err)
	}
	defer c.Close()

	sketch := topk.New(topk.Params{
		K:          cfg.Guard.TopK,
		WindowSize: cfg.Guard.Window,
		Width:      cfg.Guard.Width,
		Depth:      cfg.Guard.Depth,
	})
	g := guard.New(bl, c, sketch, logger)

	reload := func() error {
		return config.Reload(provider, logger)
	}
	srv := server.NewServer(cfg.Server, bl, g, logger, reload)
	if cfg.Server.MetricsAddr != "" {
		srv.SetMetrics(metrics.New(bl, g))
	}
	srv.SetAdmin(filepath.Join(cfg.Banlog.Dir, banlog.AdminSocket))

	ctx, stop := serveContext()
	defer stop()

	fmt.Fprintf(output, "Serving on %s, relaying to %s\n", cfg.Server.Addr, cfg.Server.Upstream)
	return srv.Run(ctx)
}
