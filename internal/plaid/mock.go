package plaid

import (
	"context"
	"sync"
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/service"
)

// MockSource is an in-memory ledger source for tests.
type MockSource struct {
	FetchFn func(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error)
	Calls   []FetchCall
	mu      sync.Mutex
}

// FetchCall records the parameters of a Fetch call.
type FetchCall struct {
	Start time.Time
	End   time.Time
}

// Fetch implements service.LedgerSource.
func (m *MockSource) Fetch(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, FetchCall{Start: start, End: end})
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, start, end)
	}
	return []model.LedgerRow{}, nil
}

var _ service.LedgerSource = (*MockSource)(nil)
