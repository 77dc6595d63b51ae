// Package extract turns document files into structured document records,
// either from pre-extracted JSON or through a vision-capable chat model.
package extract

import (
	"context"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Extraction is the structured result of reading one document.
type Extraction struct {
	Record  *model.DocumentRecord
	RawText string
	Cached  bool
}

// Extractor reads a document file into a record.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

