// pattern: Imperative Shell

package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NopLogger returns a logger that discards all output.
// Use in tests or when logging is not configured.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager records every entry in memory for assertions.
type TestLogManager struct {
	baseZap *zap.Logger
	logs    *observer.ObservedLogs
	loggers map[string]*ScopedLogger
	mu      sync.Mutex
}

// NewTestLogManager creates a LoggerProvider that captures entries at debug level.
func NewTestLogManager() *TestLogManager {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogManager{
		baseZap: zap.New(core),
		logs:    logs,
		loggers: make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger for the given scope name.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}
	logger := newScopedLogger(m.baseZap, scope, zapcore.DebugLevel)
	m.loggers[scope] = logger
	return logger
}

// Entries returns everything logged so far.
func (m *TestLogManager) Entries() []LogEntry {
	observed := m.logs.All()
	entries := make([]LogEntry, 0, len(observed))
	for _, e := range observed {
		entries = append(entries, LogEntry{
			Timestamp: e.Time,
			Level:     ParseLevel(e.Level.String()),
			Scope:     e.LoggerName,
			Message:   e.Message,
			Fields:    e.ContextMap(),
		})
	}
	return entries
}

// Dump renders every entry one per line, for test failure messages.
func (m *TestLogManager) Dump() string {
	var sb strings.Builder
	for _, e := range m.Entries() {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Messages returns just the messages logged under scopes matching prefix.
func (m *TestLogManager) Messages(scopePrefix string) []string {
	var msgs []string
	for _, e := range m.Entries() {
		if e.MatchesScope(scopePrefix) {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
