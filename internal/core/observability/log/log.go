// Package log provides structured logging for the persistence engine,
// backed by zap. Callers depend on the Log interface so tests and library
// embedders can swap in a no-op logger.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the logging surface used across the engine.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
}

// Field is a typed key/value pair attached to a log entry.
type Field = zap.Field

// Typed field constructors.
var (
	String = zap.String
	Int    = zap.Int
	Int32  = zap.Int32
	Uint64 = zap.Uint64
	Bool   = zap.Bool
	Err    = zap.Error
	Any    = zap.Any
)

// Level controls the minimum emitted severity.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var _ Log = (*Logger)(nil)

// Logger is the zap-backed Log implementation.
type Logger struct {
	zapLogger *zap.Logger
}

// New builds a JSON logger writing to stderr at the given level.
func New(level Level) *Logger {
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(toZapLevel(level)),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{zapLogger: zapLogger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zapLogger: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zapLogger.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zapLogger.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zapLogger.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zapLogger.Error(msg, fields...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zapLogger: l.zapLogger.With(fields...)}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelInfo:
		return zap.InfoLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
