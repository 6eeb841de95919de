// Package logger builds the zerolog logger used across dirscan.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/maxvaer/dirscan/internal/config"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Logger wraps a zerolog.Logger together with the file it may write to.
type Logger struct {
	zl   zerolog.Logger
	file *lumberjack.Logger
}

// Zerolog returns the logger to hand to components.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Builder assembles a Logger step by step.
type Builder struct {
	level      zerolog.Level
	format     string
	console    io.Writer
	noColor    bool
	filePath   string
	maxSizeMB  int
	maxBackups int
}

// NewBuilder returns a builder for an info-level console logger on stderr.
func NewBuilder() *Builder {
	return &Builder{
		level:   zerolog.InfoLevel,
		format:  FormatConsole,
		console: os.Stderr,
	}
}

// WithOptions applies the log section of the configuration.
func (b *Builder) WithOptions(opts config.LogOptions) *Builder {
	if lvl, err := ParseLevel(opts.Level); err == nil {
		b.level = lvl
	}
	if opts.Format != "" {
		b.format = opts.Format
	}
	if opts.File != "" {
		b.WithFile(opts.File, opts.MaxSizeMB, opts.MaxBackups)
	}
	return b
}

func (b *Builder) WithLevel(level zerolog.Level) *Builder {
	b.level = level
	return b
}

func (b *Builder) WithFormat(format string) *Builder {
	b.format = format
	return b
}

// WithConsole sets the console destination; nil disables console output.
func (b *Builder) WithConsole(w io.Writer) *Builder {
	b.console = w
	return b
}

func (b *Builder) WithNoColor(noColor bool) *Builder {
	b.noColor = noColor
	return b
}

// WithFile adds a size-rotated log file.
func (b *Builder) WithFile(path string, maxSizeMB, maxBackups int) *Builder {
	b.filePath = path
	b.maxSizeMB = maxSizeMB
	b.maxBackups = maxBackups
	return b
}

// Build creates the logger.
func (b *Builder) Build() (*Logger, error) {
	if b.format != FormatConsole && b.format != FormatJSON {
		return nil, fmt.Errorf("unknown log format %q", b.format)
	}

	var writers []io.Writer
	if b.console != nil {
		writers = append(writers, b.formatted(b.console, b.noColor))
	}

	l := &Logger{}
	if b.filePath != "" {
		if err := os.MkdirAll(filepath.Dir(b.filePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   b.filePath,
			MaxSize:    b.maxSizeMB,
			MaxBackups: b.maxBackups,
			LocalTime:  true,
		}
		// Files never get ANSI colors.
		writers = append(writers, b.formatted(l.file, true))
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l.zl = zerolog.New(out).Level(b.level).With().Timestamp().Logger()
	return l, nil
}

func (b *Builder) formatted(w io.Writer, noColor bool) io.Writer {
	if b.format == FormatJSON {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger from configuration.
func New(opts config.LogOptions, noColor bool) (*Logger, error) {
	return NewBuilder().WithOptions(opts).WithNoColor(noColor).Build()
}
