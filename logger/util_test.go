package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithKV(t *testing.T) {
	t.Run("string value", func(t *testing.T) {
		testLogger := NewTestLogger()
		kvLogger, ok := WithKV(testLogger, "testKey", "testValue").(*TestLogger)
		assert.True(t, ok)
		assert.Equal(t, "testValue", kvLogger.metadata["testKey"])

		kvLogger.Info("Test message")
		logs := testLogger.Logs()
		assert.Equal(t, 1, len(logs))
		assert.Equal(t, "INFO", logs[0].Severity)
		assert.Equal(t, "Test message", logs[0].Message)
	})

	t.Run("integer value", func(t *testing.T) {
		testLogger := NewTestLogger()
		kvLogger, ok := WithKV(testLogger, "intKey", 42).(*TestLogger)
		assert.True(t, ok)
		assert.Equal(t, 42, kvLogger.metadata["intKey"])
	})
}

func TestConsoleLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(LevelNone)
	l.SetSink(&buf, LevelDebug)

	l.WithPrefix("[cache]").With(map[string]interface{}{"k": "v"}).Debug("evicted %d", 3)
	l.Trace("not written")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "[DEBUG]")
	assert.Contains(t, out, "[cache] evicted 3")
	assert.Contains(t, out, `{"k":"v"}`)
	assert.NotContains(t, out, "\x1b[")
}

func TestConsoleLoggerNoneIsSilent(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(LevelNone)
	l.SetSink(&buf, LevelNone)
	l.Error("dropped")
	assert.Empty(t, buf.String())
}
