// Package service defines the interfaces shared between the reconciliation
// components and their collaborators.
package service

import (
	"context"
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// LedgerSource loads ledger rows from an external system.
type LedgerSource interface {
	Fetch(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
