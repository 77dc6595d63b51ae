package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRun checks that a run can be written.
func validateRun(run *model.Run) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.Threshold < 0 || run.Threshold > 100 {
		return fmt.Errorf("%w: threshold %d outside [0, 100]", ErrInvalidRun, run.Threshold)
	}
	for i, doc := range run.Documents {
		if strings.TrimSpace(doc.Document) == "" {
			return fmt.Errorf("%w: document at index %d has no identifier", ErrInvalidRun, i)
		}
		if _, ok := doc.Matrix.Counts.Outcome(); !ok {
			return fmt.Errorf("%w: document %q does not carry exactly one outcome", ErrInvalidRun, doc.Document)
		}
	}
	return nil
}
