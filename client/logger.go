package client

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value interface{}
}

// Helper functions for creating fields
func String(key, val string) Field { return Field{Key: key, Value: val} }
func Int(key string, val int) Field { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}
func Err(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the interface the driver logs through. The driver consumes
// this interface; callers supply whatever implementation suits their
// application, or leave it nil for the stock JSON logger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// defaultLogger implements Logger using the standard library log package.
type defaultLogger struct {
	logger     *log.Logger
	minLevel   LogLevel
	baseFields []Field
}

// NewLogger creates a JSON logger with the specified level and output.
// A nil output writes to stderr.
func NewLogger(level string, output io.Writer) Logger {
	if output == nil {
		output = os.Stderr
	}
	return &defaultLogger{
		logger:   log.New(output, "", 0),
		minLevel: ParseLogLevel(level),
	}
}

func (l *defaultLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *defaultLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *defaultLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *defaultLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

func (l *defaultLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.baseFields)+len(fields))
	merged = append(merged, l.baseFields...)
	merged = append(merged, fields...)
	return &defaultLogger{logger: l.logger, minLevel: l.minLevel, baseFields: merged}
}

func (l *defaultLogger) log(level LogLevel, msg string, fields ...Field) {
	if level < l.minLevel {
		return
	}

	entry := make(map[string]interface{}, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	for _, f := range l.baseFields {
		entry[f.Key] = redact(f)
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}

	b, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":"ERROR","message":"failed to marshal log entry","error":%q}`, err.Error())
		return
	}
	l.logger.Println(string(b))
}

// redact masks values for keys that would leak credentials into logs.
func redact(f Field) interface{} {
	switch strings.ToLower(f.Key) {
	case "secret", "token", "authorization", "auth":
		return "[REDACTED]"
	}
	return f.Value
}

// noopLogger implements Logger but does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

func (n noopLogger) WithFields(...Field) Logger { return n }

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() Logger {
	return noopLogger{}
}
