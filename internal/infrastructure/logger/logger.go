package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// coloredHandler wraps a slog.TextHandler and adds ANSI color codes based on log level.
type coloredHandler struct {
	handler slog.Handler
}

func newColoredHandler(w io.Writer, opts *slog.HandlerOptions) *coloredHandler {
	cw := &colorWriter{writer: w, enabled: isTerminal(w)}
	return &coloredHandler{handler: slog.NewTextHandler(cw, opts)}
}

func (h *coloredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.handler.Handle(ctx, record)
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	return &coloredHandler{handler: h.handler.WithGroup(name)}
}

// colorWriter wraps an io.Writer and adds color codes around the level string.
type colorWriter struct {
	writer  io.Writer
	enabled bool
}

var levelColors = strings.NewReplacer(
	"level=DEBUG", colorCyan+"level=DEBUG"+colorReset,
	"level=INFO", colorGreen+"level=INFO"+colorReset,
	"level=WARN", colorYellow+"level=WARN"+colorReset,
	"level=ERROR", colorRed+"level=ERROR"+colorReset,
)

func (cw *colorWriter) Write(p []byte) (int, error) {
	if !cw.enabled {
		return cw.writer.Write(p)
	}
	if _, err := io.WriteString(cw.writer, levelColors.Replace(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// New builds a structured slog logger writing to stdout.
// Development environments (local, dev, development) get colored text output;
// everything else gets JSON.
func New(appName, level, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, appName, level, environment)
}

// NewWithWriter is New with an explicit sink. The CLI uses it to keep
// command output on stdout and logs on stderr.
func NewWithWriter(w io.Writer, appName, level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if isDevelopment(environment) {
		handler = newColoredHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", appName)
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		return true
	default:
		return false
	}
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
