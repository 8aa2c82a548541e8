package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogFields carries structured key/value context attached to a log line.
type LogFields map[string]interface{}

// Level is the minimum severity a Logger will emit.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps a configuration string (case-insensitive) to a Level.
// Unrecognized values default to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger emits structured JSON log lines. It is safe for concurrent use.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a Logger writing JSON records to w at the given level.
func NewLogger(w io.Writer, level Level) *Logger {
	zl := zerolog.New(w).Level(level.zerologLevel()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewStderrLogger creates a Logger writing to standard error.
func NewStderrLogger(level Level) *Logger {
	return NewLogger(os.Stderr, level)
}

// NewNopLogger creates a Logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Debug logs msg with fields at debug level.
func (l *Logger) Debug(msg string, fields LogFields) {
	emit(l.zl.Debug(), msg, fields)
}

// Info logs msg with fields at info level.
func (l *Logger) Info(msg string, fields LogFields) {
	emit(l.zl.Info(), msg, fields)
}

// Warn logs msg with fields at warning level.
func (l *Logger) Warn(msg string, fields LogFields) {
	emit(l.zl.Warn(), msg, fields)
}

// Error logs msg with fields at error level.
func (l *Logger) Error(msg string, fields LogFields) {
	emit(l.zl.Error(), msg, fields)
}

func emit(ev *zerolog.Event, msg string, fields LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
