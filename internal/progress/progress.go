// Package progress defines the write-only record a finished session
// leaves behind and the unlock rule derived from it.
package progress

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/abhisek/examiz/internal/question"
)

// UnlockThreshold is the practice score (0-100) at which a module's
// evaluation mode becomes available.
const UnlockThreshold = 50

// Record is one completed session.
type Record struct {
	ModuleID   string
	Kind       question.Kind
	Score      int
	Percentage float64
	Timestamp  time.Time
}

// Fields flattens the record to the key/value form sinks persist.
func (r Record) Fields() map[string]string {
	return map[string]string{
		"module_id":  r.ModuleID,
		"kind":       string(r.Kind),
		"score":      strconv.Itoa(r.Score),
		"percentage": strconv.FormatFloat(r.Percentage, 'f', 2, 64),
		"timestamp":  r.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Sink receives progress records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Unlocked reports whether a practice score on the premium scale unlocks
// evaluation mode.
func Unlocked(practiceScore int) bool {
	return practiceScore >= UnlockThreshold
}

// Memory is an in-process Sink. The CLI uses it when no database is
// configured and tests use it to observe what was recorded.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func (m *Memory) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Latest returns the newest record for moduleID and kind.
func (m *Memory) Latest(moduleID string, kind question.Kind) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if r := m.records[i]; r.ModuleID == moduleID && r.Kind == kind {
			return r, true
		}
	}
	return Record{}, false
}
