// Package pipeline evaluates a batch of documents against a ledger:
// extraction, candidate selection and confusion classification per
// document, then a global aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// DefaultSourceSuffix is appended to a document's base name to form the
// ledger source value that identifies it.
const DefaultSourceSuffix = ".json"

// Config controls batch evaluation.
type Config struct {
	SourceSuffix string        `mapstructure:"source_suffix"`
	Workers      int           `mapstructure:"workers"`
	Timeout      time.Duration `mapstructure:"timeout"` // zero means no deadline
}

// DefaultConfig returns the standard evaluation settings.
func DefaultConfig() Config {
	return Config{SourceSuffix: DefaultSourceSuffix, Workers: 4}
}

// Document is one input of a batch.
type Document struct {
	ID             string
	Path           string
	ExpectedSource string
}

// Request is a batch to evaluate.
type Request struct {
	LedgerPath string
	Ledger     []model.LedgerRow
	Documents  []Document
	Threshold  int
}

// ProgressFunc is called once per finished document, from worker goroutines.
type ProgressFunc func(done, total int, result model.DocumentResult)

// Runner evaluates batches.
type Runner struct {
	extractor  extract.Extractor
	matcher    *matcher.Matcher
	logger     *slog.Logger
	onProgress ProgressFunc
	cfg        Config
}

// NewRunner creates a runner. A zero Workers or SourceSuffix takes the default.
func NewRunner(extractor extract.Extractor, m *matcher.Matcher, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.SourceSuffix == "" {
		cfg.SourceSuffix = DefaultSourceSuffix
	}
	return &Runner{
		extractor: extractor,
		matcher:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "pipeline"),
	}
}

// OnProgress registers a progress callback.
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.onProgress = fn
}

// Documents builds batch inputs from file paths. Each document is identified
// by its base name without extension.
func (r *Runner) Documents(paths []string) []Document {
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		id := DocumentID(path)
		docs = append(docs, Document{
			ID:             id,
			Path:           path,
			ExpectedSource: id + r.cfg.SourceSuffix,
		})
	}
	return docs
}

// DocumentID is the file's base name without its extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run extracts and evaluates every document. A document whose extraction
// fails counts as a false negative; only cancellation aborts the batch.
func (r *Runner) Run(ctx context.Context, req Request) (*model.Run, error) {
	if err := matcher.ValidateThreshold(req.Threshold); err != nil {
		return nil, err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	r.logger.Info("Starting evaluation",
		"documents", len(req.Documents),
		"ledger_rows", len(req.Ledger),
		"threshold", req.Threshold,
		"workers", r.cfg.Workers)

	results := make([]model.DocumentResult, len(req.Documents))
	tracker := newProgress(len(req.Documents), r.onProgress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, doc := range req.Documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.process(gctx, req, doc)
			tracker.done(results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	run := r.assemble(req.LedgerPath, req.Threshold, results)
	r.logger.Info("Evaluation complete",
		"tp", run.Totals.TP,
		"fp", run.Totals.FP,
		"tn", run.Totals.TN,
		"fn", run.Totals.FN,
		"accuracy", run.Totals.Accuracy)
	return run, nil
}

func (r *Runner) process(ctx context.Context, req Request, doc Document) model.DocumentResult {
	extraction, err := r.extractor.Extract(ctx, doc.Path)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			r.logger.Debug("Extraction canceled", "document", doc.ID)
		} else {
			common.LogError(r.logger, err, "Extraction failed", common.Fields{
				"document": doc.ID,
				"path":     doc.Path,
			})
		}
		return failed(doc, err.Error())
	}
	if extraction == nil || extraction.Record == nil {
		return failed(doc, "extraction returned no record")
	}
	if !extraction.Record.Usable() {
		r.logger.Warn("Extraction returned an empty record", "document", doc.ID)
		return failed(doc, errEmptyRecord)
	}

	result := r.evaluate(req.Ledger, doc.ID, doc.ExpectedSource, extraction.Record, req.Threshold)
	result.RawText = extraction.RawText
	return result
}

func (r *Runner) evaluate(ledger []model.LedgerRow, id, expectedSource string, record *model.DocumentRecord, threshold int) model.DocumentResult {
	matches, err := r.matcher.Select(ledger, record, threshold)
	if err != nil {
		// Threshold is validated before any document is processed.
		return failed(Document{ID: id, ExpectedSource: expectedSource}, err.Error())
	}

	result := model.DocumentResult{
		Document:       id,
		ExpectedSource: expectedSource,
		Record:         record,
		Matches:        matches,
		Matrix:         evaluation.Classify(ledger, matches, expectedSource),
	}

	r.logger.Debug("Evaluated document",
		"document", id,
		"candidates", len(matches),
		"outcome", result.Outcome())
	return result
}

const errEmptyRecord = "extraction returned an empty record"

func failed(doc Document, reason string) model.DocumentResult {
	return model.DocumentResult{
		Document:       doc.ID,
		ExpectedSource: doc.ExpectedSource,
		Error:          reason,
		Matches:        model.MatchResult{},
		Matrix:         evaluation.ExtractionFailed(),
	}
}

func (r *Runner) assemble(ledgerPath string, threshold int, results []model.DocumentResult) *model.Run {
	matrices := make([]model.ConfusionMatrix, len(results))
	for i, res := range results {
		matrices[i] = res.Matrix
	}
	return &model.Run{
		CreatedAt:  time.Now().UTC(),
		LedgerPath: ledgerPath,
		Threshold:  threshold,
		Documents:  results,
		Totals:     evaluation.Aggregate(matrices...),
	}
}

// Rematch re-scores a previous run's extracted records at a new threshold
// without extracting again. Documents that failed extraction stay false
// negatives.
func (r *Runner) Rematch(ctx context.Context, previous *model.Run, ledger []model.LedgerRow, threshold int) (*model.Run, error) {
	if previous == nil {
		return nil, errors.New("no previous run to rematch")
	}
	if err := matcher.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	results := make([]model.DocumentResult, len(previous.Documents))
	for i, prev := range previous.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if prev.Record == nil || !prev.Record.Usable() {
			reason := prev.Error
			if reason == "" {
				reason = errEmptyRecord
			}
			results[i] = failed(Document{ID: prev.Document, ExpectedSource: prev.ExpectedSource}, reason)
			continue
		}
		results[i] = r.evaluate(ledger, prev.Document, prev.ExpectedSource, prev.Record, threshold)
		results[i].RawText = prev.RawText
	}

	return r.assemble(previous.LedgerPath, threshold, results), nil
}

type progress struct {
	fn    ProgressFunc
	total int
	count int
	mu    sync.Mutex
}

func newProgress(total int, fn ProgressFunc) *progress {
	return &progress{fn: fn, total: total}
}

func (p *progress) done(result model.DocumentResult) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	p.fn(p.count, p.total, result)
}
