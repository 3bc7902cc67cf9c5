package log

import (
	"io"
	"log/slog"

	"github.com/caasmo/banlog/config"
	phuslog "github.com/phuslu/log"
)

// DefaultLoggerOptions provides default settings for slog handlers.
// Level: Debug, so the LevelHandler alone decides. Removes the time attribute.
var DefaultLoggerOptions = &slog.HandlerOptions{
	Level: slog.LevelDebug,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		return a
	},
}

// New returns a logger writing to w in the format of the provider's
// current configuration: phuslu/log's JSON handler or the standard text
// handler. The format is fixed at construction, the level is not.
func New(w io.Writer, configProvider *config.Provider) *slog.Logger {
	var h slog.Handler
	switch configProvider.Get().Log.Format {
	case config.LogFormatJSON:
		h = phuslog.SlogNewJSONHandler(w, DefaultLoggerOptions)
	default:
		h = slog.NewTextHandler(w, DefaultLoggerOptions)
	}
	return slog.New(NewLevelHandler(configProvider, h))
}
