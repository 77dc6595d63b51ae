package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

func ledgerRow(date, amount, currency, vendor, source string, index int) model.LedgerRow {
	d, _ := model.ParseDate(date)
	return model.LedgerRow{
		Date:     &d,
		Amount:   decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Currency: currency,
		Vendor:   vendor,
		Source:   source,
		Index:    index,
	}
}

func testLedger() []model.LedgerRow {
	return []model.LedgerRow{
		ledgerRow("2024-01-15", "125.50", "USD", "Acme Corp", "invoice_001.json", 0),
		ledgerRow("2024-02-01", "42.00", "EUR", "Globex Hosting", "statement_17.json", 1),
	}
}

func extracted(date, amount, currency, vendor string) *extract.Extraction {
	return &extract.Extraction{
		Record:  &model.DocumentRecord{Date: date, Amount: amount, Currency: currency, Vendor: vendor},
		RawText: vendor,
	}
}

// newBatch wires a mock extractor that yields one TP, one FN, one TN and one FP.
func newBatch(t *testing.T) (*extract.MockExtractor, *Runner, Request) {
	t.Helper()
	ex := &extract.MockExtractor{}
	ex.On("Extract", mock.Anything, "docs/invoice_001.png").Return(extracted("2024-01-15", "125.50", "USD", "ACME Corp"), nil)
	ex.On("Extract", mock.Anything, "docs/invoice_002.png").Return(nil, errors.New("OCR returned no text"))
	ex.On("Extract", mock.Anything, "docs/invoice_003.png").Return(extracted("2024-03-01", "999.99", "USD", "Initech"), nil)
	ex.On("Extract", mock.Anything, "docs/invoice_004.png").Return(extracted("2024-02-01", "42", "EUR", "Globex Trading"), nil)

	runner := NewRunner(ex, matcher.Default(), Config{Workers: 2})
	req := Request{
		LedgerPath: "ledger.csv",
		Ledger:     testLedger(),
		Documents: runner.Documents([]string{
			"docs/invoice_001.png",
			"docs/invoice_002.png",
			"docs/invoice_003.png",
			"docs/invoice_004.png",
		}),
		Threshold: matcher.DefaultThreshold,
	}
	return ex, runner, req
}

func TestDocuments(t *testing.T) {
	runner := NewRunner(&extract.MockExtractor{}, matcher.Default(), Config{SourceSuffix: ".pdf"})
	docs := runner.Documents([]string{"/tmp/in/invoice_001.json", "scan.2024.png"})

	require.Len(t, docs, 2)
	assert.Equal(t, Document{ID: "invoice_001", Path: "/tmp/in/invoice_001.json", ExpectedSource: "invoice_001.pdf"}, docs[0])
	assert.Equal(t, "scan.2024", docs[1].ID)
	assert.Equal(t, "scan.2024.pdf", docs[1].ExpectedSource)
}

func TestRunner_Run(t *testing.T) {
	ex, runner, req := newBatch(t)

	var mu sync.Mutex
	var seen []int
	runner.OnProgress(func(done, total int, _ model.DocumentResult) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		seen = append(seen, done)
	})

	run, err := runner.Run(context.Background(), req)
	require.NoError(t, err)
	ex.AssertExpectations(t)

	require.Len(t, run.Documents, 4)
	wantOutcomes := []model.Outcome{model.OutcomeTP, model.OutcomeFN, model.OutcomeTN, model.OutcomeFP}
	for i, want := range wantOutcomes {
		assert.Equal(t, want, run.Documents[i].Outcome(), run.Documents[i].Document)
	}

	assert.Equal(t, "invoice_001", run.Documents[0].Document)
	assert.Equal(t, "invoice_001.json", run.Documents[0].ExpectedSource)
	assert.Equal(t, 100, run.Documents[0].Matches[0].Score)

	failedDoc := run.Documents[1]
	assert.True(t, failedDoc.Failed())
	assert.Contains(t, failedDoc.Error, "OCR returned no text")
	assert.NotNil(t, failedDoc.Matches)
	assert.Empty(t, failedDoc.Matches)

	assert.Equal(t, model.Counts{TP: 1, FP: 1, TN: 1, FN: 1}, run.Totals.Counts)
	assert.InDelta(t, 50.0, run.Totals.Accuracy, 0.001)
	assert.Equal(t, "ledger.csv", run.LedgerPath)
	assert.Equal(t, 70, run.Threshold)

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, seen)
}

func TestRunner_RunInvalidThreshold(t *testing.T) {
	_, runner, req := newBatch(t)
	req.Threshold = 101

	_, err := runner.Run(context.Background(), req)
	require.ErrorIs(t, err, matcher.ErrInvalidThreshold)
}

func TestRunner_RunCanceled(t *testing.T) {
	ex := &extract.MockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).Return(extracted("2024-01-15", "1", "USD", "Acme"), nil).Maybe()

	runner := NewRunner(ex, matcher.Default(), Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, Request{
		Ledger:    testLedger(),
		Documents: runner.Documents([]string{"a.png", "b.png"}),
		Threshold: 70,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunTimeout(t *testing.T) {
	ex := &extract.MockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	runner := NewRunner(ex, matcher.Default(), Config{Workers: 1, Timeout: 20 * time.Millisecond})
	_, err := runner.Run(context.Background(), Request{
		Ledger:    testLedger(),
		Documents: runner.Documents([]string{"slow.png"}),
		Threshold: 70,
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_Rematch(t *testing.T) {
	ex, runner, req := newBatch(t)

	first, err := runner.Run(context.Background(), req)
	require.NoError(t, err)
	calls := len(ex.Calls)

	strict, err := runner.Rematch(context.Background(), first, req.Ledger, 100)
	require.NoError(t, err)
	assert.Len(t, ex.Calls, calls, "rematch must not extract again")

	assert.Equal(t, 100, strict.Threshold)
	assert.Equal(t, model.OutcomeTP, strict.Documents[0].Outcome())
	assert.Equal(t, model.OutcomeFN, strict.Documents[1].Outcome())
	assert.Equal(t, "OCR returned no text", strict.Documents[1].Error)
	assert.Equal(t, model.OutcomeTN, strict.Documents[3].Outcome(), "vendor mismatch keeps the score below 100")
	assert.Equal(t, model.Counts{TP: 1, TN: 2, FN: 1}, strict.Totals.Counts)

	_, err = runner.Rematch(context.Background(), first, req.Ledger, -1)
	require.ErrorIs(t, err, matcher.ErrInvalidThreshold)

	_, err = runner.Rematch(context.Background(), nil, req.Ledger, 70)
	require.Error(t, err)
}

func TestRunner_EmptyRecordIsFalseNegative(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "receipt_404.json")
	blank := filepath.Join(dir, "receipt_405.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(blank, []byte(`{"date":"N/A","amount":"","currency":"n/a","vendor":null}`), 0o600))

	runner := NewRunner(extract.NewRouter(nil), matcher.Default(), Config{Workers: 1})
	run, err := runner.Run(context.Background(), Request{
		Ledger:    testLedger(),
		Documents: runner.Documents([]string{empty, blank}),
		Threshold: 70,
	})
	require.NoError(t, err)

	require.Len(t, run.Documents, 2)
	for _, doc := range run.Documents {
		assert.Equal(t, model.OutcomeFN, doc.Outcome(), doc.Document)
		assert.Equal(t, model.Counts{FN: 1}, doc.Matrix.Counts)
		assert.Equal(t, "extraction returned an empty record", doc.Error)
		assert.Nil(t, doc.Record)
	}
	assert.Equal(t, model.Counts{FN: 2}, run.Totals.Counts)
	assert.Zero(t, run.Totals.Accuracy)
}

func TestRunner_RematchEmptyStoredRecord(t *testing.T) {
	previous := &model.Run{
		LedgerPath: "ledger.csv",
		Threshold:  70,
		Documents: []model.DocumentResult{{
			Document:       "receipt_404",
			ExpectedSource: "receipt_404.json",
			Record:         &model.DocumentRecord{Vendor: "N/A"},
		}},
	}

	run, err := NewRunner(nil, matcher.Default(), Config{}).Rematch(context.Background(), previous, testLedger(), 0)
	require.NoError(t, err)

	require.Len(t, run.Documents, 1)
	assert.Equal(t, model.OutcomeFN, run.Documents[0].Outcome())
	assert.Equal(t, "extraction returned an empty record", run.Documents[0].Error)
}
