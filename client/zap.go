package client

import "go.uber.org/zap"

// zapLogger adapts a zap.Logger to the driver's Logger interface so
// applications already standardized on zap plug straight in.
type zapLogger struct {
	inner *zap.Logger
}

// NewZapLogger wraps a zap.Logger as a driver Logger. Fields are passed
// through as zap.Any, with credential keys redacted the same way the
// default logger redacts them.
func NewZapLogger(inner *zap.Logger) Logger {
	return &zapLogger{inner: inner}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.inner.Debug(msg, zapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.inner.Info(msg, zapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.inner.Warn(msg, zapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.inner.Error(msg, zapFields(fields)...) }

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{inner: l.inner.With(zapFields(fields)...)}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, redact(f))
	}
	return out
}
