// Package audit provides the advisory audit sink for engine mutations and
// the evidence-pack exporter for the event log.
//
// The engine's event log is the authoritative trail; this package adds a
// human-readable JSON line per mutation and packaging for external auditors.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one structured audit line.
type Record struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit lines for engine mutations. It satisfies the
// engine's AuditSink.
type Logger interface {
	Record(ctx context.Context, action, actor string, metadata map[string]any) error
}

// logger writes structured JSON to a configurable writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer. Allows
// injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, action, actor string, metadata map[string]any) error {
	_ = ctx
	rec := Record{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    action,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}
