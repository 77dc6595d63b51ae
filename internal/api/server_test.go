package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

type fakeRuns struct {
	runs map[string]*model.Run
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]model.RunSummary, error) {
	var out []model.RunSummary
	for _, r := range f.runs {
		out = append(out, model.RunSummary{ID: r.ID, LedgerPath: r.LedgerPath, Threshold: r.Threshold, Documents: len(r.Documents)})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*model.Run, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
}

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runs := &fakeRuns{runs: map[string]*model.Run{
		"run-1": {ID: "run-1", LedgerPath: "ledger.csv", Threshold: 70, CreatedAt: time.Now()},
	}}
	return api.NewServer(api.DefaultConfig(), nil, runs, logger)
}

func do(t *testing.T, s *api.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

const acmeDocument = `{"date":"2024-01-15","amount":"125.50","currency":"EUR","vendor":"Acme"}`

const sampleLedger = `[
	{"date":"2024-01-15","amount":"125.50","currency":"EUR","vendor":"Acme","source":"invoice_001.json"},
	{"date":"2024-01-15","amount":"99.00","currency":"EUR","vendor":"Acme","source":"invoice_002.json"},
	{"date":"2023-06-01","amount":125.5,"currency":"USD","vendor":"Globex Corporation","source":"invoice_003.json"}
]`

func TestServer_Health(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode[dto.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestServer_Score(t *testing.T) {
	s := newTestServer(t)

	body := `{"row":{"date":"2024-01-15","amount":"125.50","currency":"EUR","vendor":"Acme"},"document":` + acmeDocument + `}`
	rec := do(t, s, http.MethodPost, "/api/score", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.ScoreResponse](t, rec)
	assert.Equal(t, 100, resp.Score)
	assert.Equal(t, resp.Score, resp.Breakdown.Score)
	assert.NotEmpty(t, resp.Breakdown.Fields)
}

func TestServer_Select(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
		wantCode   string
	}{
		{
			name:       "default threshold",
			body:       `{"ledger":` + sampleLedger + `,"document":` + acmeDocument + `}`,
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "threshold zero keeps every amount match",
			body:       `{"ledger":` + sampleLedger + `,"document":` + acmeDocument + `,"threshold":0}`,
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:       "missing document",
			body:       `{"ledger":` + sampleLedger + `}`,
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{
			name:       "threshold out of range",
			body:       `{"ledger":[],"document":` + acmeDocument + `,"threshold":101}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name:       "malformed JSON",
			body:       `{"ledger":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeBadRequest,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/select", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantCode != "" {
				apiErr := decode[dto.APIError](t, rec)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}

			resp := decode[dto.SelectResponse](t, rec)
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.Matches, tt.wantCount)
			for i := 1; i < len(resp.Matches); i++ {
				assert.GreaterOrEqual(t, resp.Matches[i-1].Score, resp.Matches[i].Score)
			}
		})
	}

	rec := do(t, s, http.MethodPost, "/api/select", `{"ledger":`+sampleLedger+`,"document":`+acmeDocument+`}`)
	resp := decode[dto.SelectResponse](t, rec)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "invoice_001.json", resp.Matches[0].Row.Source)
	assert.Equal(t, 100, resp.Matches[0].Score)
	assert.Equal(t, 70, resp.Threshold)
}

func TestServer_Classify(t *testing.T) {
	s := newTestServer(t)
	top := `{"row":{"amount":"125.50","source":"invoice_001.json"},"match_score":100}`
	other := `{"row":{"amount":"125.50","source":"invoice_003.json"},"match_score":80}`

	tests := []struct {
		name       string
		body       string
		want       model.Outcome
		wantMatrix [2][2]int
		wantStatus int
	}{
		{
			name:       "true positive",
			body:       `{"ledger":` + sampleLedger + `,"matches":[` + top + `,` + other + `],"expected_source":"invoice_001.json"}`,
			want:       model.OutcomeTP,
			wantMatrix: [2][2]int{{0, 0}, {0, 1}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "false negative",
			body:       `{"ledger":` + sampleLedger + `,"matches":[],"expected_source":"invoice_002.json"}`,
			want:       model.OutcomeFN,
			wantMatrix: [2][2]int{{0, 0}, {1, 0}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "true negative",
			body:       `{"ledger":` + sampleLedger + `,"matches":[],"expected_source":"invoice_999.json"}`,
			want:       model.OutcomeTN,
			wantMatrix: [2][2]int{{1, 0}, {0, 0}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unsorted matches",
			body:       `{"ledger":[],"matches":[` + other + `,` + top + `],"expected_source":"x"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/classify", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			resp := decode[dto.MatrixResponse](t, rec)
			assert.Equal(t, tt.want, resp.Outcome)
			assert.Equal(t, tt.wantMatrix, resp.Matrix)
		})
	}
}

func TestServer_Aggregate(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/aggregate", `{"matrices":[{"tp":1},{"fn":1},{"tn":1},{"tp":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.MatrixResponse](t, rec)
	assert.Equal(t, [2][2]int{{1, 0}, {1, 2}}, resp.Matrix)
	assert.Equal(t, model.Outcome(""), resp.Outcome)
	assert.InDelta(t, 75.0, resp.Accuracy, 1e-9)
	assert.InDelta(t, 100.0, resp.Precision, 1e-9)
	assert.InDelta(t, 200.0/3, resp.Recall, 1e-9)

	rec = do(t, s, http.MethodPost, "/api/aggregate", `{"matrices":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[dto.MatrixResponse](t, rec)
	assert.Zero(t, resp.Accuracy)

	rec = do(t, s, http.MethodPost, "/api/aggregate", `{"matrices":[{"tp":-1}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_Benchmark(t *testing.T) {
	s := newTestServer(t)

	truth := `[{"date":"2024-01-15","amount":125.5,"currency":"EUR","vendor":"Acme","source":"a.json"},
		{"date":"2024-01-16","amount":"40","currency":"EUR","vendor":"Globex","source":"b.json"}]`
	predicted := `[{"date":"2024-01-15","amount":"125.50","currency":"EUR","vendor":"Acme","source":"a.json"},
		{"date":"2024-01-16","amount":"40","currency":"EUR","vendor":"Globex","source":"b.json"}]`

	rec := do(t, s, http.MethodPost, "/api/benchmark", `{"ground_truth":`+truth+`,"predicted":`+predicted+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[evaluation.BenchmarkReport](t, rec)
	assert.Equal(t, 2, report.Joined)
	assert.InDelta(t, 100.0, report.Accuracy, 1e-9)

	rec = do(t, s, http.MethodPost, "/api/benchmark", `{"ground_truth":[{"vendor":"Acme"}],"predicted":`+predicted+`}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/benchmark", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Runs(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.RunListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "run-1", list.Runs[0].ID)

	rec = do(t, s, http.MethodGet, "/api/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[model.Run](t, rec)
	assert.Equal(t, "ledger.csv", run.LedgerPath)

	rec = do(t, s, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RunsNotMountedWithoutStore(t *testing.T) {
	s := api.NewServer(api.DefaultConfig(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/score", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Shutdown(t *testing.T) {
	require.NoError(t, newTestServer(t).Shutdown(context.Background()))
}
