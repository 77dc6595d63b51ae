package extract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExtractor is a testify mock for Extractor.
type MockExtractor struct {
	mock.Mock
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	args := m.Called(ctx, path)
	extraction, _ := args.Get(0).(*Extraction)
	return extraction, args.Error(1)
}

var _ Extractor = (*MockExtractor)(nil)
