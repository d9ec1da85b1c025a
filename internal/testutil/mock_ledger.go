package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

// MockLedger is a thread-safe in-memory implementation of store.Ledger for testing.
type MockLedger struct {
	mu sync.Mutex

	records []ledger.Record

	AppendErr  error
	LastErr    error
	RecordsErr error

	AppendCalls int
}

func NewMockLedger(seed ...ledger.Record) *MockLedger {
	return &MockLedger{records: append([]ledger.Record(nil), seed...)}
}

func (m *MockLedger) Append(_ context.Context, rec ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.ID == "" {
		rec.ID = ledger.UnknownID
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MockLedger) LastForID(_ context.Context, id string) (ledger.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LastErr != nil {
		return ledger.Record{}, false, m.LastErr
	}
	r, ok := ledger.Latest(m.records, id)
	return r, ok, nil
}

func (m *MockLedger) RecordsOn(_ context.Context, day time.Time) ([]ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordsErr != nil {
		return nil, m.RecordsErr
	}
	var out []ledger.Record
	for _, r := range m.records {
		if ledger.SameDay(day, r.Timestamp) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockLedger) Close() {}

// SetAppendErr swaps the injected append error under the lock.
func (m *MockLedger) SetAppendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendErr = err
}

// Records returns a copy of everything appended so far.
func (m *MockLedger) Records() []ledger.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Record(nil), m.records...)
}
