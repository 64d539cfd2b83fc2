package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/observability"
)

// Record is one answered question. Records are never mutated once appended.
type Record struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	ResultText string    `json:"result_text"`
	Summary    string    `json:"summary"`
	Database   string    `json:"database"`
	Table      string    `json:"table"`
	CreatedAt  time.Time `json:"created_at"`
	Failed     bool      `json:"failed"`
}

// Ledger is an append-only, in-memory list of records in insertion order.
type Ledger struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// NewLedgerWithClock is used by tests to pin CreatedAt.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// Append stamps the record with an ID and creation time when missing and
// returns the stored copy.
func (l *Ledger) Append(record Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = l.now().UTC()
	}
	l.records = append(l.records, record)
	observability.SetHistoryRecords(len(l.records))
	return record
}

func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// NewestFirst returns a reversed copy of records.
func NewestFirst(records []Record) []Record {
	out := make([]Record, len(records))
	for i := range records {
		out[len(records)-1-i] = records[i]
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	observability.SetHistoryRecords(0)
}
