// Package logging builds the application's slog logger and supports
// runtime reconfiguration of level, format, and file output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes the desired logging configuration.
type Options struct {
	Level    string `json:"level"`
	Format   string `json:"format"`
	FilePath string `json:"file_path,omitempty"`

	// Rotation settings, used only when FilePath is set.
	FileMaxSizeMB  int `json:"file_max_size_mb,omitempty"`
	FileMaxFiles   int `json:"file_max_files,omitempty"`
	FileMaxAgeDays int `json:"file_max_age_days,omitempty"`
}

// swappableHandler is a slog.Handler whose inner handler can be replaced
// atomically at runtime.
type swappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

func newSwappableHandler(h slog.Handler) *swappableHandler {
	s := &swappableHandler{}
	s.inner.Store(&h)
	return s
}

func (s *swappableHandler) swap(h slog.Handler) { s.inner.Store(&h) }

func (s *swappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.inner.Load()).Enabled(ctx, level)
}

func (s *swappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return (*s.inner.Load()).Handle(ctx, r)
}

func (s *swappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSwappableHandler((*s.inner.Load()).WithAttrs(attrs))
}

func (s *swappableHandler) WithGroup(name string) slog.Handler {
	return newSwappableHandler((*s.inner.Load()).WithGroup(name))
}

// Manager owns the logger lifecycle and supports runtime reconfiguration.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *swappableHandler

	mu     sync.Mutex
	opts   Options
	closer io.Closer // rotating file writer, if any
}

// NewManager creates a Manager and a ready-to-use logger.
func NewManager(opts Options) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(ParseLevel(opts.Level))

	writer, closer := buildWriter(opts)
	handler := newSwappableHandler(buildHandler(writer, lvl, opts.Format))

	m := &Manager{
		levelVar: lvl,
		handler:  handler,
		opts:     opts,
		closer:   closer,
	}
	return m, slog.New(handler)
}

// Reconfigure applies new options at runtime. Level-only changes are
// instant via the LevelVar; format or output changes rebuild the handler.
func (m *Manager) Reconfigure(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levelVar.Set(ParseLevel(opts.Level))

	needRebuild := opts.Format != m.opts.Format ||
		opts.FilePath != m.opts.FilePath ||
		opts.FileMaxSizeMB != m.opts.FileMaxSizeMB ||
		opts.FileMaxFiles != m.opts.FileMaxFiles ||
		opts.FileMaxAgeDays != m.opts.FileMaxAgeDays

	if needRebuild {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := buildWriter(opts)
		m.handler.swap(buildHandler(writer, m.levelVar, opts.Format))
		m.closer = closer
	}

	m.opts = opts
}

// Options returns the current options snapshot.
func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// Close releases the rotating file writer, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// ValidLevel reports whether s is a recognized log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat reports whether s is a recognized log format.
func ValidFormat(s string) bool {
	return s == "text" || s == "json"
}

// buildWriter creates the output writer. With a file path configured it
// returns stdout combined with a rotating file writer.
func buildWriter(opts Options) (io.Writer, io.Closer) {
	if opts.FilePath == "" {
		return os.Stdout, nil
	}

	maxSize := opts.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	maxFiles := opts.FileMaxFiles
	if maxFiles <= 0 {
		maxFiles = 3
	}
	maxAge := opts.FileMaxAgeDays
	if maxAge <= 0 {
		maxAge = 14
	}

	lj := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     maxAge,
	}
	return io.MultiWriter(os.Stdout, lj), lj
}

func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	hopts := &slog.HandlerOptions{Level: leveler}
	if format == "text" {
		return slog.NewTextHandler(w, hopts)
	}
	return slog.NewJSONHandler(w, hopts)
}
