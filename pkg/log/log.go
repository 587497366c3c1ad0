// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger. level is debug, info, warn or error; anything else
// means info. format "json" selects JSON output, text otherwise.
func Setup(level string, format ...string) {
	var lvl slog.Level

	err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level))))
	if err != nil {
		lvl = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, options)
	if len(format) > 0 && format[0] == "json" {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns the default logger tagged with module. Call it after Setup.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
