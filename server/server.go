package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/admin"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/guard"
	"github.com/caasmo/banlog/metrics"
	"golang.org/x/sync/errgroup"
)

// Server accepts TCP connections, drops those from banned subnets and
// relays the rest to an upstream address.
type Server struct {
	cfg       config.Server
	banlog    *banlog.Banlog
	guard     *guard.Guard
	logger    *slog.Logger
	reload    func() error
	metrics   *metrics.Metrics
	adminPath string
	dialer    net.Dialer

	wg      sync.WaitGroup
	mu      sync.Mutex
	active  map[net.Conn]struct{}
	closing bool // set once drain gives up; later connections close at once
}

// NewServer creates a server; reload, if not nil, runs on SIGHUP.
func NewServer(cfg config.Server, bl *banlog.Banlog, g *guard.Guard, logger *slog.Logger, reload func() error) *Server {
	return &Server{
		cfg:    cfg,
		banlog: bl,
		guard:  g,
		logger: logger,
		reload: reload,
		dialer: net.Dialer{Timeout: cfg.DialTimeout.Duration},
		active: make(map[net.Conn]struct{}),
	}
}

// SetAdmin serves the admin API for the banlog on the unix socket at path.
// It must be called before Serve.
func (s *Server) SetAdmin(path string) {
	s.adminPath = path
}

// SetMetrics enables the /metrics endpoint on cfg.MetricsAddr. It must be
// called before Serve.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve takes ownership of ln. When ctx is done it stops accepting, waits
// up to the shutdown timeout for relays to finish and saves a final
// snapshot.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Server configuration",
		"addr", ln.Addr().String(),
		"upstream", s.cfg.Upstream,
		"snapshot_interval", s.cfg.SnapshotInterval.Duration,
		"shutdown_timeout", s.cfg.ShutdownTimeout.Duration,
		"dial_timeout", s.cfg.DialTimeout.Duration,
	)

	var metricsSrv, adminSrv *http.Server
	if s.metrics != nil && s.cfg.MetricsAddr != "" {
		mln, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: listen metrics %s: %w", s.cfg.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		metricsSrv = s.serveHTTP("metrics", mln, mux)
	}
	if s.adminPath != "" {
		aln, err := admin.Listen(s.adminPath)
		if err != nil {
			ln.Close()
			if metricsSrv != nil {
				metricsSrv.Close()
			}
			return fmt.Errorf("server: %w", err)
		}
		adminSrv = s.serveHTTP("admin", aln, admin.NewHandler(s.banlog, s.logger))
	}

	gl := s.guard.Listener(ln)
	acceptDone := make(chan struct{})
	var acceptErr error
	go func() {
		defer close(acceptDone)
		acceptErr = s.accept(gl)
	}()

	ticker := time.NewTicker(s.cfg.SnapshotInterval.Duration)
	defer ticker.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP) // kill -SIGHUP XXXX
	defer signal.Stop(hup)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Received shutdown signal - gracefully shutting down")
			break loop
		case <-acceptDone:
			s.logger.Error("Accept error - initiating shutdown", "err", acceptErr)
			runErr = acceptErr
			break loop
		case <-ticker.C:
			s.snapshot()
		case <-hup:
			if s.reload == nil {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Error("Reload failed", "err", err)
			}
		}
	}

	gracefulCtx, cancelShutdown := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration)
	defer cancelShutdown()

	// admin calls in flight must land before the final snapshot
	if adminSrv != nil {
		s.logger.Info("Shutting down admin socket")
		if err := adminSrv.Shutdown(gracefulCtx); err != nil {
			s.logger.Error("Admin socket did not shut down cleanly", "err", err)
			adminSrv.Close()
		}
	}

	shutdownGroup, _ := errgroup.WithContext(gracefulCtx)

	shutdownGroup.Go(func() error {
		s.logger.Info("Shutting down listener")
		gl.Close()
		<-acceptDone
		if err := s.drain(gracefulCtx); err != nil {
			s.logger.Error("Relays did not finish in time", "err", err)
			return err
		}
		s.logger.Info("All relays finished")
		return nil
	})

	shutdownGroup.Go(func() error {
		if !s.banlog.Available() {
			return nil
		}
		s.logger.Info("Writing final snapshot")
		err := s.banlog.Save()
		s.observeSnapshot(err)
		return err
	})

	if metricsSrv != nil {
		shutdownGroup.Go(func() error {
			s.logger.Info("Shutting down metrics server")
			return metricsSrv.Shutdown(gracefulCtx)
		})
	}

	err := shutdownGroup.Wait()
	if top := s.guard.Top(); len(top) > 0 {
		s.logger.Info("Most rejected subnets", "top", top)
	}
	allowed, rejected := s.guard.Stats()
	s.logger.Info("All systems stopped", "allowed", allowed, "rejected", rejected)
	return errors.Join(runErr, err)
}

func (s *Server) accept(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		s.track(c)
		go s.relay(c)
	}
}

func (s *Server) serveHTTP(name string, ln net.Listener, h http.Handler) *http.Server {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info("Serving "+name, "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "server", name, "err", err)
		}
	}()
	return srv
}

func (s *Server) snapshot() {
	if !s.banlog.Available() {
		return
	}
	err := s.banlog.Save()
	s.observeSnapshot(err)
	if err != nil {
		s.logger.Error("Periodic snapshot failed", "err", err)
	}
}

func (s *Server) observeSnapshot(err error) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(err)
	}
}

// relay copies both directions between client and upstream until both
// sides are done.
func (s *Server) relay(client net.Conn) {
	defer s.wg.Done()
	defer s.untrack(client)
	defer client.Close()

	up, err := s.dialer.Dial("tcp", s.cfg.Upstream)
	if err != nil {
		s.logger.Error("Upstream dial failed", "upstream", s.cfg.Upstream, "client", client.RemoteAddr().String(), "err", err)
		return
	}
	s.track(up)
	defer s.untrack(up)
	defer up.Close()

	done := make(chan struct{}, 2)
	pipe := func(dst, src net.Conn) {
		io.Copy(dst, src)
		closeWrite(dst)
		done <- struct{}{}
	}
	go pipe(up, client)
	go pipe(client, up)
	<-done
	<-done
}

func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
		return
	}
	c.Close()
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		c.Close()
		return
	}
	s.active[c] = struct{}{}
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.active, c)
	s.mu.Unlock()
}

// drain waits for relays and closes the remaining connections once ctx
// expires.
func (s *Server) drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.closing = true
	for c := range s.active {
		c.Close()
	}
	s.mu.Unlock()
	<-finished
	return ctx.Err()
}
