package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/store"
)

func nullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBanlog(t *testing.T, enabled bool) (*banlog.Banlog, string) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Banlog.Enabled = enabled
	cfg.Banlog.Dir = t.TempDir()
	bl, err := banlog.New(cfg, banlog.WithLogger(nullLogger()))
	if err != nil {
		t.Fatalf("banlog.New() returned an unexpected error: %v", err)
	}
	return bl, cfg.Banlog.Dir
}

// serve runs the admin API for bl on a socket in dir and returns a client.
func serve(t *testing.T, bl Bans, dir string) *Client {
	t.Helper()
	path := filepath.Join(dir, banlog.AdminSocket)
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen() returned an unexpected error: %v", err)
	}
	srv := &http.Server{Handler: NewHandler(bl, nullLogger())}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return NewClient(path)
}

func mustKey(t *testing.T, s string) addr.Key {
	t.Helper()
	k, err := addr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) returned an unexpected error: %v", s, err)
	}
	return k
}

func TestClient_ActsOnLiveIndex(t *testing.T) {
	t.Parallel()
	bl, dir := newBanlog(t, true)
	c := serve(t, bl, dir)
	k := mustKey(t, "10.0.0.xxx")

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() returned an unexpected error: %v", err)
	}
	if !c.Available() {
		t.Error("Available() = false, want true")
	}

	e, err := c.Add(k, "alice")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if e.Key != k || e.Name != "alice" {
		t.Errorf("Add() = %+v, want %v by alice", e, k)
	}
	if !bl.Identify(k) {
		t.Error("served banlog does not see the ban added over the socket")
	}

	if got, ok := c.Get(k); !ok || got.Name != "alice" {
		t.Errorf("Get() = %+v, %v, want alice, true", got, ok)
	}
	if _, ok := c.Get(mustKey(t, "10.0.1.xxx")); ok {
		t.Error("Get() of an unbanned subnet = true, want false")
	}
	if got := c.Entries(); len(got) != 1 || got[0] != e {
		t.Errorf("Entries() = %v, want [%v]", got, e)
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save() returned an unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, banlog.SnapshotFile)); err != nil || info.Size() != store.RecordSize {
		t.Errorf("snapshot after Save() = %v, %v, want one record", info, err)
	}

	if _, err := c.Remove(k); err != nil {
		t.Fatalf("Remove() returned an unexpected error: %v", err)
	}
	if bl.Identify(k) {
		t.Error("served banlog still bans the subnet removed over the socket")
	}
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()
	bl, dir := newBanlog(t, true)
	c := serve(t, bl, dir)
	k := mustKey(t, "10.0.0.xxx")
	unnamed := mustKey(t, "10.0.1.xxx")
	absent := mustKey(t, "10.0.2.xxx")
	if _, err := c.Add(k, "alice"); err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}

	testCases := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"duplicate", func() error { _, err := c.Add(k, "bob"); return err }, index.ErrDuplicateKey},
		{"empty name", func() error { _, err := c.Add(unnamed, "  "); return err }, addr.ErrInvalidName},
		{"not found", func() error { _, err := c.Remove(absent); return err }, index.ErrNotFound},
		{"missing import", func() error { _, err := c.Import(filepath.Join(dir, "nope.dat")); return err }, store.ErrIO},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestClient_Import(t *testing.T) {
	t.Parallel()
	bl, dir := newBanlog(t, true)
	c := serve(t, bl, dir)

	other, otherDir := newBanlog(t, true)
	other.Add(mustKey(t, "10.0.0.xxx"), "alice")
	other.Add(mustKey(t, "10.0.1.xxx"), "bob")
	if err := other.Save(); err != nil {
		t.Fatalf("Save() returned an unexpected error: %v", err)
	}

	n, err := c.Import(filepath.Join(otherDir, banlog.SnapshotFile))
	if err != nil {
		t.Fatalf("Import() returned an unexpected error: %v", err)
	}
	if n != 2 || bl.Len() != 2 {
		t.Errorf("Import() = %d with %d entries, want 2 and 2", n, bl.Len())
	}

	if err := c.Dump(); err != nil {
		t.Fatalf("Dump() returned an unexpected error: %v", err)
	}
	listing, err := os.ReadFile(filepath.Join(dir, banlog.ExportFile))
	if err != nil {
		t.Fatalf("failed to read listing: %v", err)
	}
	if !strings.Contains(string(listing), "10.0.1.xxx        bob") {
		t.Errorf("listing = %q, want bob's subnet", listing)
	}
}

func TestClient_Unavailable(t *testing.T) {
	t.Parallel()
	bl, dir := newBanlog(t, false)
	c := serve(t, bl, dir)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() returned an unexpected error: %v", err)
	}
	if c.Available() {
		t.Error("Available() = true, want false")
	}
	if _, err := c.Add(mustKey(t, "10.0.0.xxx"), "alice"); !errors.Is(err, banlog.ErrUnavailable) {
		t.Errorf("Add() error = %v, want %v", err, banlog.ErrUnavailable)
	}
	if err := c.Dump(); !errors.Is(err, banlog.ErrUnavailable) {
		t.Errorf("Dump() error = %v, want %v", err, banlog.ErrUnavailable)
	}
}

func TestClient_NoServer(t *testing.T) {
	t.Parallel()
	c := NewClient(filepath.Join(t.TempDir(), banlog.AdminSocket))
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping() without a server was expected to return an error")
	}
	if c.Available() {
		t.Error("Available() without a server = true, want false")
	}
}

func TestListen(t *testing.T) {
	t.Parallel()
	bl, dir := newBanlog(t, true)
	path := filepath.Join(dir, banlog.AdminSocket)

	// a file left behind by a dead server
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("failed to write stale socket: %v", err)
	}
	serve(t, bl, dir)

	if _, err := Listen(path); !errors.Is(err, ErrServing) {
		t.Errorf("second Listen() error = %v, want %v", err, ErrServing)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	t.Parallel()
	bl, _ := newBanlog(t, true)
	h := NewHandler(bl, nullLogger())

	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"bad subnet", http.MethodGet, "/bans/300.0.0.xxx", "", http.StatusBadRequest, CodeErrorInvalidAddr},
		{"bad body", http.MethodPut, "/bans/10.0.0.xxx", "{", http.StatusBadRequest, CodeErrorInvalidInput},
		{"unknown subnet", http.MethodGet, "/bans/10.0.0.xxx", "", http.StatusNotFound, CodeErrorNotFound},
		{"created", http.MethodPut, "/bans/10.0.0.xxx", `{"name":"alice"}`, http.StatusCreated, CodeOk},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), `"code":"`+tc.wantCode+`"`) {
				t.Errorf("body = %s, want code %q", rec.Body.String(), tc.wantCode)
			}
		})
	}
}
