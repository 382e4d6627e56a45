package testutils

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects to be emitted.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
}

// Compare asserts that have matches the level of want and contains its message, if any.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")

	if want.Message == "" {
		return
	}
	assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
}

// MockHandler is a slog handler recording every record it handles.
// It is safe for concurrent use, so that loggers running in other goroutines can be inspected.
type MockHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
}

// NewMockHandler returns a new MockHandler.
func NewMockHandler() MockHandler {
	return MockHandler{mu: &sync.Mutex{}, records: &[]slog.Record{}}
}

// Enabled implements Handler.Enabled.
func (h MockHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h MockHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, record.Clone())
	return nil
}

// WithAttrs implements Handler.WithAttrs. Attributes are not recorded.
func (h MockHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements Handler.WithGroup. Groups are not recorded.
func (h MockHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of the records handled so far.
func (h MockHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), *h.records...)
}

// Find returns the first handled record matching want.
func (h MockHandler) Find(want ExpectedRecord) (slog.Record, bool) {
	for _, r := range h.Records() {
		if r.Level == want.Level && (want.Message == "" || strings.Contains(r.Message, want.Message)) {
			return r, true
		}
	}
	return slog.Record{}, false
}
