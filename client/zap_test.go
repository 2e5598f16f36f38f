package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerAdapter(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core)).WithFields(String("trace_id", "abc"))

	l.Info("query succeeded", Int("attempts", 2), String("secret", "fn123"))

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "query succeeded", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["trace_id"])
	assert.EqualValues(t, 2, fields["attempts"])
	assert.Equal(t, "[REDACTED]", fields["secret"])
}
