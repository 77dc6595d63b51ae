package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/service"
)

// VisionConfig configures the chat-completions client.
type VisionConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxRetries  int
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// VisionClient extracts records from images in two calls: transcription,
// then structured analysis of the transcribed text.
type VisionClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	apiKey      string
	model       string
	retryOpts   service.RetryOptions
	maxTokens   int
	temperature float64
}

// NewVisionClient creates a client for a Mistral-compatible API.
func NewVisionClient(cfg VisionConfig) (*VisionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: extraction API key is required", common.ErrMissingConfig)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "pixtral-12b-2409"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 131072
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &VisionClient{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      slog.Default().With("component", "vision"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type chatMessage struct {
	Content any    `json:"content"`
	Role    string `json:"role"`
}

type contentPart struct {
	ImageURL *imageURL `json:"image_url,omitempty"`
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract implements Extractor.
func (c *VisionClient) Extract(ctx context.Context, path string) (*Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rawText, err := c.transcribe(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: transcription of %s: %w", common.ErrExtractionFailed, path, err)
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: %s: OCR returned no text", common.ErrExtractionFailed, path)
	}
	c.logger.Debug("Transcribed document", "path", path, "chars", len(rawText))

	record, err := c.analyze(ctx, rawText)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis of %s: %w", common.ErrExtractionFailed, path, err)
	}

	c.logger.Info("Extracted document",
		"path", path,
		"date", record.Date,
		"amount", record.Amount,
		"currency", record.Currency,
		"vendor", record.Vendor)

	return &Extraction{Record: record, RawText: rawText}, nil
}

func (c *VisionClient) transcribe(ctx context.Context, image []byte) (string, error) {
	prompt, err := ocrPrompt()
	if err != nil {
		return "", err
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s",
		mimetype.Detect(image).String(),
		base64.StdEncoding.EncodeToString(image))

	return c.complete(ctx, []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
		},
	}})
}

func (c *VisionClient) analyze(ctx context.Context, rawText string) (*model.DocumentRecord, error) {
	prompt, err := analysisPrompt(rawText)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	var record model.DocumentRecord
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &record); err != nil {
		return nil, fmt.Errorf("failed to parse extracted data: %w", err)
	}
	return &record, nil
}

// complete sends one chat request with retry and returns the first choice.
func (c *VisionClient) complete(ctx context.Context, messages []chatMessage) (string, error) {
	jsonBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var content string
	err = common.WithRetry(ctx, func() error {
		var callErr error
		content, callErr = c.post(ctx, jsonBody)
		return callErr
	}, c.retryOpts)
	return content, err
}

func (c *VisionClient) post(ctx context.Context, jsonBody []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", common.ErrRateLimit, string(body))
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", common.Transient(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	case resp.StatusCode != http.StatusOK:
		return "", common.Permanent(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no completion choices returned")
	}

	return response.Choices[0].Message.Content, nil
}

var _ Extractor = (*VisionClient)(nil)
