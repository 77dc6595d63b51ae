package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Store persists extractions by document content hash.
type Store interface {
	GetExtraction(ctx context.Context, hash string) (*model.DocumentRecord, string, error)
	SaveExtraction(ctx context.Context, hash string, record *model.DocumentRecord, rawText string) error
}

// CachingExtractor serves repeated documents from a Store. Identical file
// contents share one entry regardless of their path.
type CachingExtractor struct {
	next   Extractor
	store  Store
	logger *slog.Logger
}

// NewCachingExtractor wraps next with a content-addressed cache.
func NewCachingExtractor(next Extractor, store Store) *CachingExtractor {
	return &CachingExtractor{
		next:   next,
		store:  store,
		logger: slog.Default().With("component", "extract-cache"),
	}
}

// Extract implements Extractor.
func (c *CachingExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	record, rawText, err := c.store.GetExtraction(ctx, hash)
	switch {
	case err == nil:
		c.logger.Debug("Extraction cache hit", "path", path, "hash", hash[:12])
		return &Extraction{Record: record, RawText: rawText, Cached: true}, nil
	case !errors.Is(err, common.ErrNotFound):
		c.logger.Warn("Extraction cache lookup failed", "path", path, "error", err)
	}

	extraction, err := c.next.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	if extraction != nil && extraction.Record != nil {
		if err := c.store.SaveExtraction(ctx, hash, extraction.Record, extraction.RawText); err != nil {
			c.logger.Warn("Failed to cache extraction", "path", path, "error", err)
		}
	}
	return extraction, nil
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
