package log

import (
	"context"
	"log/slog"

	"github.com/caasmo/banlog/config"
)

// LevelHandler gates records on the level of the current configuration
// and forwards the rest to the wrapped handler. A reload that changes
// [log] level takes effect on the next record.
type LevelHandler struct {
	configProvider *config.Provider
	next           slog.Handler
}

// NewLevelHandler panics if either argument is nil.
func NewLevelHandler(configProvider *config.Provider, next slog.Handler) *LevelHandler {
	if configProvider == nil {
		panic("levelhandler: configProvider cannot be nil")
	}
	if next == nil {
		panic("levelhandler: next cannot be nil")
	}
	return &LevelHandler{configProvider: configProvider, next: next}
}

func (h *LevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	conf := h.configProvider.Get()
	return level >= conf.Log.Level.Level && h.next.Enabled(ctx, level)
}

func (h *LevelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *LevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelHandler{configProvider: h.configProvider, next: h.next.WithAttrs(attrs)}
}

func (h *LevelHandler) WithGroup(name string) slog.Handler {
	return &LevelHandler{configProvider: h.configProvider, next: h.next.WithGroup(name)}
}
