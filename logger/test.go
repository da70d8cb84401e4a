package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

// String returns the message with its arguments applied.
func (e TestLogEntry) String() string {
	return fmt.Sprintf(e.Message, e.Arguments...)
}

type testLog struct {
	mu      sync.Mutex
	entries []TestLogEntry
}

// TestLogger records log entries in memory. Loggers derived from it with
// With, WithPrefix or WithContext share its entries. It is safe for
// concurrent use.
type TestLogger struct {
	metadata map[string]interface{}
	prefix   string
	log      *testLog
	child    Logger
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithContext(ctx context.Context) Logger {
	return c
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *TestLogger) WithPrefix(prefix string) Logger {
	clone := *c
	if clone.prefix != "" {
		clone.prefix += " "
	}
	clone.prefix += prefix
	return &clone
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	child := c.child
	if child != nil {
		child = child.With(metadata)
	}
	return &TestLogger{metadata: kv, prefix: c.prefix, log: c.log, child: child}
}

func (c *TestLogger) Log(level string, msg string, args ...interface{}) {
	if c.prefix != "" {
		msg = c.prefix + " " + msg
	}
	c.log.mu.Lock()
	c.log.entries = append(c.log.entries, TestLogEntry{level, msg, args})
	c.log.mu.Unlock()
}

// Logs returns a copy of the recorded entries.
func (c *TestLogger) Logs() []TestLogEntry {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	logs := make([]TestLogEntry, len(c.log.entries))
	copy(logs, c.log.entries)
	return logs
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.Log("TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.Log("DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.Log("INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.Log("WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.Log("ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.Log("FATAL", msg, args...)
	if c.child != nil {
		c.child.Fatal(msg, args...)
	}
	os.Exit(1)
}

func (c *TestLogger) Stack(next Logger) Logger {
	return &TestLogger{metadata: c.metadata, prefix: c.prefix, log: c.log, child: next}
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{log: &testLog{}}
}
