// Package plaid fetches bank transactions from the Plaid API as ledger rows.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/service"
)

const pageSize = int32(500)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string `mapstructure:"client_id"`
	Secret      string `mapstructure:"secret"`
	Environment string `mapstructure:"environment"` // sandbox or production
	AccessToken string `mapstructure:"access_token"`
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	case c.Secret == "":
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	case c.AccessToken == "":
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	case c.Environment != "sandbox" && c.Environment != "production":
		return fmt.Errorf("%w: plaid environment must be sandbox or production, got %q", common.ErrInvalidConfig, c.Environment)
	}
	return nil
}

// Client pulls transactions for one Plaid item.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	accessToken string
}

// NewClient creates a Plaid client from a validated configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Fetch returns every transaction posted between start and end, inclusive.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if start.After(end) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", start.Format(model.DateLayout),
		"end_date", end.Format(model.DateLayout))

	var all []plaid.Transaction
	offset := int32(0)

	for {
		var page []plaid.Transaction

		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				start.Format(model.DateLayout),
				end.Format(model.DateLayout),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.classifyError(err)
			}

			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, c.retryOpts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	rows := make([]model.LedgerRow, 0, len(all))
	for _, pt := range all {
		row := c.mapTransaction(pt)
		row.Index = len(rows)
		rows = append(rows, row)
	}

	c.logger.Info("Fetched all transactions", "count", len(rows))
	return rows, nil
}

func (c *Client) classifyError(err error) error {
	plaidError := extractPlaidError(err)
	if plaidError == nil {
		return fmt.Errorf("%w: %w", common.ErrPlaidConnection, err)
	}
	if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
		return common.Transient(fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidError.ErrorMessage))
	}
	return common.Permanent(fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage))
}

// mapTransaction converts a Plaid transaction into a ledger row. Plaid signs
// outflows positive; the row keeps the magnitude only.
func (c *Client) mapTransaction(pt plaid.Transaction) model.LedgerRow {
	vendor := strings.TrimSpace(pt.GetMerchantName())
	if vendor == "" {
		vendor = strings.TrimSpace(pt.GetName())
	}

	currency := pt.GetIsoCurrencyCode()
	if currency == "" {
		currency = pt.GetUnofficialCurrencyCode()
	}

	row := model.LedgerRow{
		Vendor:   vendor,
		Currency: currency,
		Amount:   decimal.NewNullDecimal(decimal.NewFromFloat(pt.GetAmount()).Abs()),
		Extra: map[string]string{
			"transaction_id": pt.GetTransactionId(),
			"account":        pt.GetAccountId(),
		},
	}

	if date, ok := model.ParseDate(pt.GetDate()); ok {
		row.Date = &date
	} else {
		c.logger.Warn("Failed to parse transaction date", "date", pt.GetDate(), "transaction_id", pt.GetTransactionId())
	}

	return row
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

var _ service.LedgerSource = (*Client)(nil)
