package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

// serviceName is attached to every record as the "service" attribute.
const serviceName = "graylogic-scheduler"

// Logger is the slog logger shared by every component. It satisfies each
// package's Logger interface.
type Logger struct {
	*slog.Logger
}

// New builds a Logger for cfg. Output "stderr" selects standard error;
// anything else writes to standard output.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter builds a Logger writing to w. Format "text" gives
// key=value lines; anything else gives JSON.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// parseLevel accepts slog's level names plus "warning". Unknown names
// mean info.
func parseLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With returns a child Logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the JSON info-level stdout logger used until config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
