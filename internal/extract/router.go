package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// Router sends JSON documents to a JSON extractor and images to a vision
// extractor. Files with unknown extensions are sniffed by content.
type Router struct {
	JSON   Extractor
	Vision Extractor // nil when no vision backend is configured
}

// NewRouter builds a router. vision may be nil.
func NewRouter(vision Extractor) *Router {
	return &Router{JSON: JSONExtractor{}, Vision: vision}
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, path string) (*Extraction, error) {
	kind, err := classify(path)
	if err != nil {
		return nil, err
	}

	switch kind {
	case kindJSON:
		return r.JSON.Extract(ctx, path)
	default:
		if r.Vision == nil {
			return nil, fmt.Errorf("%w: %s is an image but no extraction API is configured", common.ErrMissingConfig, filepath.Base(path))
		}
		return r.Vision.Extract(ctx, path)
	}
}

type documentKind int

const (
	kindJSON documentKind = iota
	kindImage
)

func classify(path string) (documentKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return kindJSON, nil
	}
	if imageExtensions[ext] {
		return kindImage, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	switch {
	case mtype.Is("application/json"):
		return kindJSON, nil
	case strings.HasPrefix(mtype.String(), "image/"):
		return kindImage, nil
	}
	return 0, fmt.Errorf("%w: %s (%s)", common.ErrUnsupportedDocument, filepath.Base(path), mtype.String())
}
