package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelDebug
	LevelTrace
)

type Logger struct {
	zl        zerolog.Logger
	out       io.Writer
	prefix    string
	pretty    bool
	timestamp bool
	file      io.WriteCloser
	level     LogLevel
	isVerbose bool
}

type Option func(*Logger)

func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.out = w
	}
}

func WithPrefix(prefix string) Option {
	return func(l *Logger) {
		l.prefix = prefix
	}
}

// WithTimestamp toggles the time field. Tests turn it off for stable output.
func WithTimestamp(enabled bool) Option {
	return func(l *Logger) {
		l.timestamp = enabled
	}
}

// WithPretty switches from JSON lines to zerolog's human readable console format.
func WithPretty(pretty bool) Option {
	return func(l *Logger) {
		l.pretty = pretty
	}
}

// WithFile additionally writes JSON lines to a size-rotated file.
func WithFile(path string, maxSizeMB, maxBackups int) Option {
	return func(l *Logger) {
		if path == "" {
			return
		}
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		}
	}
}

func New(options ...Option) *Logger {
	l := &Logger{
		out:       os.Stdout,
		timestamp: true,
		level:     LevelInfo,
		isVerbose: false,
	}

	for _, opt := range options {
		opt(l)
	}

	var out io.Writer = l.out
	if l.pretty {
		out = zerolog.ConsoleWriter{Out: l.out, TimeFormat: time.RFC3339, NoColor: true}
	}
	if l.file != nil {
		out = zerolog.MultiLevelWriter(out, l.file)
	}

	ctx := zerolog.New(out).Level(zerolog.TraceLevel).With()
	if l.timestamp {
		ctx = ctx.Timestamp()
	}
	if l.prefix != "" {
		ctx = ctx.Str("component", l.prefix)
	}
	l.zl = ctx.Logger()

	return l
}

func (l *Logger) SetVerbose(verbose bool) {
	l.isVerbose = verbose
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// With returns a child logger that carries key=value on every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := *l
	child.zl = l.zl.With().Interface(key, value).Logger()
	return &child
}

// Zerolog exposes the underlying logger for callers that want typed fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.isVerbose || l.level >= LevelDebug {
		l.zl.Debug().Msgf(format, args...)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	if l.level >= LevelTrace {
		l.zl.Trace().Msgf(format, args...)
	}
}

func (l *Logger) Error(err error, format string, args ...interface{}) {
	l.zl.Error().Err(err).Msgf(format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	l.Close()
	os.Exit(1)
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(WithOutput(io.Discard), WithTimestamp(false))
}
