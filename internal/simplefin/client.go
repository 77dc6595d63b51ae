// Package simplefin fetches bank transactions from a SimpleFIN bridge as
// ledger rows.
package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/service"
)

// Config holds SimpleFIN settings. AccessURL skips the token claim.
type Config struct {
	Token     string `mapstructure:"token"`
	AccessURL string `mapstructure:"access_url"`
	StateFile string `mapstructure:"state_file"`
}

// Client reads transactions from a SimpleFIN access URL.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	accessURL  string
	retryOpts  service.RetryOptions
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// NewClient creates a client, claiming cfg.Token when no access URL is
// configured or saved in cfg.StateFile.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	accessURL := cfg.AccessURL
	if accessURL == "" {
		if cfg.StateFile == "" {
			return nil, fmt.Errorf("%w: simplefin.state_file is required", common.ErrMissingConfig)
		}
		auth, err := LoadOrClaim(ctx, httpClient, cfg.Token, cfg.StateFile)
		if err != nil {
			return nil, err
		}
		accessURL = auth.AccessURL
	}

	return &Client{
		accessURL:  strings.TrimRight(accessURL, "/"),
		httpClient: httpClient,
		logger:     slog.Default().With("component", "simplefin"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
	}, nil
}

// Fetch returns the posted transactions of every account between start and
// end inclusive. Amounts are unsigned.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error) {
	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("start-date", strconv.FormatInt(start.Unix(), 10))
	// end-date is exclusive.
	q.Set("end-date", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	u.RawQuery = q.Encode()

	var set accountSet
	err = common.WithRetry(ctx, func() error {
		var err error
		set, err = c.get(ctx, u.String())
		return err
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported a problem", "message", msg)
	}

	var rows []model.LedgerRow
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			if tx.Pending {
				continue
			}
			row, err := convertTransaction(acct, tx)
			if err != nil {
				return nil, err
			}
			if row.Date.Before(dayStart(start)) || row.Date.After(end) {
				continue
			}
			rows = append(rows, row)
		}
	}

	c.logger.Info("Fetched SimpleFIN transactions",
		"accounts", len(set.Accounts),
		"rows", len(rows))
	return rows, nil
}

func (c *Client) get(ctx context.Context, target string) (accountSet, error) {
	var set accountSet

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return set, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return set, common.Transient(fmt.Errorf("failed to fetch accounts: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return set, common.ErrRateLimit
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(resp.Body)
		return set, common.Transient(fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return set, common.Permanent(fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return set, common.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return set, nil
}

func convertTransaction(acct account, tx transaction) (model.LedgerRow, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
	if err != nil {
		return model.LedgerRow{}, fmt.Errorf("failed to parse amount %q: %w", tx.Amount, err)
	}

	posted := time.Unix(tx.Posted, 0).UTC()
	date := time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)

	vendor := strings.TrimSpace(tx.Payee)
	if vendor == "" {
		vendor = strings.TrimSpace(tx.Description)
	}

	return model.LedgerRow{
		Date:     &date,
		Amount:   decimal.NewNullDecimal(amount.Abs()),
		Currency: strings.ToUpper(strings.TrimSpace(acct.Currency)),
		Vendor:   vendor,
		Extra: map[string]string{
			"transaction_id": tx.ID,
			"account":        acct.ID,
			"description":    tx.Description,
		},
	}, nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
