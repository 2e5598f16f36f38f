package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("WARN", &buf)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	entry := logLine(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "shown", entry["message"])
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("DEBUG", &buf)

	l.Info("query done",
		String("trace_id", "abc"),
		Int("attempts", 2),
		Int64("txn_ts", 99),
		Bool("retried", true),
		Duration("elapsed", 1500*time.Millisecond),
		Err("error", errors.New("boom")),
	)

	entry := logLine(t, &buf)
	assert.Equal(t, "abc", entry["trace_id"])
	assert.Equal(t, float64(2), entry["attempts"])
	assert.Equal(t, float64(99), entry["txn_ts"])
	assert.Equal(t, true, entry["retried"])
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("DEBUG", &buf)

	l.Info("connecting", String("secret", "fn123"), String("Authorization", "Bearer fn123"))

	entry := logLine(t, &buf)
	assert.Equal(t, "[REDACTED]", entry["secret"])
	assert.Equal(t, "[REDACTED]", entry["Authorization"])
	assert.NotContains(t, buf.String(), "fn123")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("DEBUG", &buf).WithFields(String("trace_id", "abc"))

	l.Info("step one")
	entry := logLine(t, &buf)
	assert.Equal(t, "abc", entry["trace_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("debug"))
	assert.Equal(t, ERROR, ParseLogLevel("ERROR"))
	assert.Equal(t, INFO, ParseLogLevel("unknown"))
}
