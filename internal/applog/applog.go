// Package applog builds the process logger: colored tint output on stderr,
// plus an optional rotating log file.
package applog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level slog.Leveler
	// Out defaults to os.Stderr. Color is enabled only when it is a terminal.
	Out io.Writer
	// File, when set, also receives every record, rotated at 10 MB.
	File string
}

// ParseLevel maps debug, info, warn and error to their slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// New returns the logger and a Closer releasing the log file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	out := opts.Out
	noColor := true
	if out == nil {
		out = colorable.NewColorable(os.Stderr)
		noColor = !isatty.IsTerminal(os.Stderr.Fd())
	} else if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		out = colorable.NewColorable(f)
	}
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	h := tint.NewHandler(out, &tint.Options{
		Level:       opts.Level,
		TimeFormat:  "15:04:05.000",
		NoColor:     noColor,
		ReplaceAttr: replaceAttr(underSystemd),
	})
	if opts.File == "" {
		return slog.New(h), noFile{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil { //nolint:gosec // G301: log directory
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	fh := tint.NewHandler(lj, &tint.Options{
		Level:       opts.Level,
		TimeFormat:  time.RFC3339Nano,
		NoColor:     true,
		ReplaceAttr: replaceAttr(false),
	})
	return slog.New(fanout{h, fh}), lj, nil
}

// replaceAttr drops zero values, and the time when running under systemd.
func replaceAttr(dropTime bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if dropTime && a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		skip := false
		switch t := a.Value.Any().(type) {
		case string:
			skip = t == ""
		case bool:
			skip = !t
		case uint64:
			skip = t == 0
		case int64:
			skip = t == 0
		case float64:
			skip = t == 0
		case time.Time:
			skip = t.IsZero()
		case time.Duration:
			skip = t == 0
		case nil:
			skip = true
		}
		if skip {
			return slog.Attr{}
		}
		return a
	}
}

type noFile struct{}

func (noFile) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
