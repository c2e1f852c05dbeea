// Package logger hides zap behind a small interface so the rest of the
// code base never imports zap directly.
package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field. Build one with the constructors below.
type Field = zap.Field

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
	Fatalf(template string, args ...any)

	// With returns a child logger that adds fields to every entry.
	With(fields ...Field) Logger

	Sync() error
}

type zapLogger struct {
	z *zap.Logger
	s *zap.SugaredLogger
}

// New builds a logger. pretty selects the coloured console encoder,
// otherwise entries are JSON. An unknown level keeps the encoder default
// (debug when pretty, info otherwise).
func New(level string, pretty bool) Logger {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Stack traces only for Fatal, warnings and errors are expected at runtime.
	z, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		panic(err)
	}
	return wrap(z)
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return wrap(zap.NewNop())
}

// FromZap adapts an existing zap logger, e.g. one built on an observer core.
func FromZap(z *zap.Logger) Logger {
	return wrap(z)
}

func wrap(z *zap.Logger) *zapLogger {
	return &zapLogger{z: z, s: z.Sugar()}
}

// ParseLevel accepts debug, info, warn and error, ignoring case.
func ParseLevel(lvl string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug", "info", "warn", "error":
		l, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(lvl)))
		return l, err == nil
	default:
		return zapcore.InfoLevel, false
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

func (l *zapLogger) Debugf(t string, args ...any) { l.s.Debugf(t, args...) }
func (l *zapLogger) Infof(t string, args ...any)  { l.s.Infof(t, args...) }
func (l *zapLogger) Warnf(t string, args ...any)  { l.s.Warnf(t, args...) }
func (l *zapLogger) Errorf(t string, args ...any) { l.s.Errorf(t, args...) }
func (l *zapLogger) Fatalf(t string, args ...any) { l.s.Fatalf(t, args...) }

func (l *zapLogger) With(fields ...Field) Logger { return wrap(l.z.With(fields...)) }

func (l *zapLogger) Sync() error { return l.z.Sync() }

// Field constructors, so callers do not need to import zap.
func String(key, val string) Field                 { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Uint64(key string, val uint64) Field          { return zap.Uint64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
