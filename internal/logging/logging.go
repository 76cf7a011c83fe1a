package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level controls which messages a Logger emits
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Field is a single structured logging attribute
type Field struct {
	values map[string]interface{}
}

// WithField creates a Field with a single key/value pair
func WithField(key string, value interface{}) Field {
	return Field{values: map[string]interface{}{key: value}}
}

// WithFields creates a Field from a map of key/value pairs
func WithFields(values map[string]interface{}) Field {
	return Field{values: values}
}

// Logger is a leveled structured logger backed by zerolog
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing JSON to stdout at the given level
func New(level Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	zlevel := zerolog.InfoLevel
	switch level {
	case LevelDebug:
		zlevel = zerolog.DebugLevel
	case LevelWarn:
		zlevel = zerolog.WarnLevel
	case LevelError:
		zlevel = zerolog.ErrorLevel
	}

	zl := zerolog.New(os.Stdout).
		Level(zlevel).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// ParseLevel maps a config string to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		for k, v := range f.values {
			ev = ev.Interface(k, v)
		}
	}
	ev.Msg(msg)
}
