package mocklogger

import (
	"sync"

	"github.com/hugolhafner/go-consume/logger"
)

var _ logger.Logger = (*MockLogger)(nil)

type LogEntry struct {
	Level   logger.LogLevel
	Message string
	KV      []any
}

// MockLogger records every log call for later inspection. Loggers derived
// via With share the parent's entry list, so assertions on the root see
// entries from all children.
type MockLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	bound   []any
}

func New() *MockLogger {
	return &MockLogger{
		mu:      &sync.Mutex{},
		entries: &[]LogEntry{},
	}
}

func (m *MockLogger) Log(level logger.LogLevel, msg string, kv ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := LogEntry{Level: level, Message: msg}
	entry.KV = append(entry.KV, m.bound...)
	entry.KV = append(entry.KV, kv...)
	*m.entries = append(*m.entries, entry)
}

func (m *MockLogger) Level() logger.LogLevel {
	return logger.DebugLevel
}

func (m *MockLogger) With(kv ...any) logger.Logger {
	bound := make([]any, 0, len(m.bound)+len(kv))
	bound = append(bound, m.bound...)
	bound = append(bound, kv...)

	return &MockLogger{
		mu:      m.mu,
		entries: m.entries,
		bound:   bound,
	}
}

func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LogEntry, len(*m.entries))
	copy(out, *m.entries)
	return out
}

func (m *MockLogger) Debug(msg string, kv ...any) {
	m.Log(logger.DebugLevel, msg, kv...)
}

func (m *MockLogger) Info(msg string, kv ...any) {
	m.Log(logger.InfoLevel, msg, kv...)
}

func (m *MockLogger) Warn(msg string, kv ...any) {
	m.Log(logger.WarnLevel, msg, kv...)
}

func (m *MockLogger) Error(msg string, kv ...any) {
	m.Log(logger.ErrorLevel, msg, kv...)
}
