package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

func newTestVisionClient(t *testing.T, handler http.HandlerFunc) *VisionClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewVisionClient(VisionConfig{
		BaseURL:    server.URL + "/",
		APIKey:     "test-key",
		MaxRetries: 3,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	client.retryOpts.InitialDelay = time.Millisecond
	client.retryOpts.MaxDelay = 5 * time.Millisecond
	return client
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(body)
}

func TestNewVisionClient(t *testing.T) {
	_, err := NewVisionClient(VisionConfig{})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	client, err := NewVisionClient(VisionConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.mistral.ai/v1", client.baseURL)
	assert.Equal(t, "pixtral-12b-2409", client.model)
	assert.Equal(t, 131072, client.maxTokens)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestVisionClient_Extract(t *testing.T) {
	var calls atomic.Int32
	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string            `json:"model"`
			Messages []json.RawMessage `json:"messages"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 1) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "pixtral-12b-2409", req.Model)

		switch calls.Add(1) {
		case 1:
			assert.Contains(t, string(req.Messages[0]), "data:image/png;base64,")
			_, _ = fmt.Fprint(w, completion("ACME CORP\nInvoice date 15/01/2024\nTOTAL 125.50 USD"))
		default:
			assert.Contains(t, string(req.Messages[0]), "TOTAL 125.50 USD")
			_, _ = fmt.Fprint(w, completion("```json\n{\"date\": \"2024-01-15\", \"amount\": 125.50, \"currency\": \"USD\", \"vendor\": \"ACME Corp\"}\n```"))
		}
	})

	path := writeFile(t, "invoice.png", pngHeader)
	got, err := client.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, &model.DocumentRecord{Date: "2024-01-15", Amount: "125.50", Currency: "USD", Vendor: "ACME Corp"}, got.Record)
	assert.True(t, strings.HasPrefix(got.RawText, "ACME CORP"))
}

func TestVisionClient_Errors(t *testing.T) {
	tests := []struct {
		handler   http.HandlerFunc
		name      string
		wantCalls int32
	}{
		{
			name: "bad request is not retried",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"message":"invalid model"}`, http.StatusBadRequest)
			},
			wantCalls: 1,
		},
		{
			name: "server errors are retried",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			},
			wantCalls: 3,
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, `{"choices": []}`)
			},
			wantCalls: 3,
		},
		{
			name: "empty transcription",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = fmt.Fprint(w, completion("   "))
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			})

			path := writeFile(t, "invoice.png", pngHeader)
			_, err := client.Extract(context.Background(), path)
			require.ErrorIs(t, err, common.ErrExtractionFailed)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestVisionClient_UnparseableAnalysis(t *testing.T) {
	var calls atomic.Int32
	client := newTestVisionClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = fmt.Fprint(w, completion("some text"))
			return
		}
		_, _ = fmt.Fprint(w, completion("I could not find an invoice."))
	})

	path := writeFile(t, "invoice.png", pngHeader)
	_, err := client.Extract(context.Background(), path)
	require.ErrorIs(t, err, common.ErrExtractionFailed)
	assert.Contains(t, err.Error(), "failed to parse extracted data")
}
