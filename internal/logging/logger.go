// Package logging provides structured logging with correlation ID propagation.
//
// Loggers are thin wrappers around go-kit/log: JSON output uses
// log.NewJSONLogger, text output uses logfmt, and level filtering is done by
// go-kit's level package.
package logging

import (
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general information messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level. Unrecognized input maps to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) allow() level.Option {
	switch l {
	case LevelDebug:
		return level.AllowDebug()
	case LevelWarn:
		return level.AllowWarn()
	case LevelError:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Format represents the output format for log messages.
type Format int

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = iota
	// FormatText outputs logs as logfmt lines.
	FormatText
)

// ParseFormat converts a string to a Format. Unrecognized input maps to FormatJSON.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatJSON
	}
}

// Well-known keys in every entry.
const (
	KeyTimestamp     = "ts"
	KeyMessage       = "msg"
	KeyCorrelationID = "correlationId"
	KeyCaller        = "caller"
)

// frames between the caller valuer and the code calling Infof and friends.
const callerDepth = 7

// Logger provides structured logging with configurable levels and formats.
type Logger struct {
	mu            sync.Mutex
	base          log.Logger
	kit           log.Logger
	level         Level
	fields        map[string]any
	correlationID string
}

// Config holds configuration for a Logger.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddCaller  bool
	CallerSkip int
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	w := log.NewSyncWriter(out)

	var base log.Logger
	switch cfg.Format {
	case FormatText:
		base = log.NewLogfmtLogger(w)
	default:
		base = log.NewJSONLogger(w)
	}
	base = log.With(base, KeyTimestamp, log.DefaultTimestampUTC)
	if cfg.AddCaller {
		base = log.With(base, KeyCaller, log.Caller(callerDepth+cfg.CallerSkip))
	}

	return &Logger{
		base:   base,
		kit:    level.NewFilter(base, cfg.Level.allow()),
		level:  cfg.Level,
		fields: make(map[string]any),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	nop := log.NewNopLogger()
	return &Logger{base: nop, kit: nop, level: LevelError, fields: make(map[string]any)}
}

// DefaultLogger returns a logger with default settings.
func DefaultLogger() *Logger {
	return New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: os.Stderr,
	})
}

// SetLevel updates the minimum logging level.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
	l.kit = level.NewFilter(l.base, lvl.allow())
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields map[string]any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)

	return &Logger{
		base:          l.base,
		kit:           l.kit,
		level:         l.level,
		fields:        merged,
		correlationID: l.correlationID,
	}
}

// WithCorrelationID returns a new Logger with the correlation ID set.
func (l *Logger) WithCorrelationID(id string) *Logger {
	child := l.With(nil)
	child.correlationID = id
	return child
}

// CorrelationID returns the logger's correlation ID, if any.
func (l *Logger) CorrelationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.correlationID
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.log(LevelDebug, msg, nil)
}

// Debugf logs a debug message with fields.
func (l *Logger) Debugf(msg string, fields map[string]any) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.log(LevelInfo, msg, nil)
}

// Infof logs an info message with fields.
func (l *Logger) Infof(msg string, fields map[string]any) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.log(LevelWarn, msg, nil)
}

// Warnf logs a warning message with fields.
func (l *Logger) Warnf(msg string, fields map[string]any) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.log(LevelError, msg, nil)
}

// Errorf logs an error message with fields.
func (l *Logger) Errorf(msg string, fields map[string]any) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(lvl Level, msg string, extra map[string]any) {
	l.mu.Lock()
	kit := l.kit
	fields := l.fields
	correlationID := l.correlationID
	l.mu.Unlock()

	keyvals := make([]any, 0, 4+2*(len(fields)+len(extra)))
	keyvals = append(keyvals, KeyMessage, msg)
	if correlationID != "" {
		keyvals = append(keyvals, KeyCorrelationID, correlationID)
	}

	merged := fields
	if len(extra) > 0 {
		merged = make(map[string]any, len(fields)+len(extra))
		maps.Copy(merged, fields)
		maps.Copy(merged, extra)
	}
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		keyvals = append(keyvals, k, merged[k])
	}

	var leveled log.Logger
	switch lvl {
	case LevelDebug:
		leveled = level.Debug(kit)
	case LevelWarn:
		leveled = level.Warn(kit)
	case LevelError:
		leveled = level.Error(kit)
	default:
		leveled = level.Info(kit)
	}
	_ = leveled.Log(keyvals...)
}
