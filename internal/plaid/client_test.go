package plaid

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

func validConfig() Config {
	return Config{
		ClientID:    "test-client-id",
		Secret:      "test-secret",
		Environment: "sandbox",
		AccessToken: "test-token",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		wantErr error
		mutate  func(*Config)
		name    string
		errMsg  string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing client ID",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid client ID is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Secret = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid secret is required",
		},
		{
			name:    "missing access token",
			mutate:  func(c *Config) { c.AccessToken = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "plaid access token is required",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "development" },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "sandbox or production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(validConfig())
	require.NoError(t, err)
	assert.NotNil(t, client.client)
	assert.Equal(t, "test-token", client.accessToken)

	_, err = NewClient(Config{})
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestClient_Fetch_Validation(t *testing.T) {
	client := &Client{
		accessToken: "test-token",
		logger:      slog.Default().With("component", "plaid-test"),
	}

	//nolint:staticcheck // nil context is the case under test
	_, err := client.Fetch(nil, time.Now().AddDate(0, -1, 0), time.Now())
	require.ErrorContains(t, err, "context cannot be nil")

	_, err = client.Fetch(context.Background(), time.Now(), time.Now().AddDate(0, -1, 0))
	require.ErrorContains(t, err, "start date must be before end date")
}

func TestMapTransaction(t *testing.T) {
	client := &Client{logger: slog.Default()}

	tests := []struct {
		setup        func(*plaid.Transaction)
		name         string
		wantVendor   string
		wantCurrency string
		wantAmount   string
		wantDate     string
	}{
		{
			name: "merchant name preferred",
			setup: func(pt *plaid.Transaction) {
				pt.SetName("ACME CORP 000123")
				pt.SetMerchantName("Acme Corp")
				pt.SetAmount(125.5)
				pt.SetIsoCurrencyCode("USD")
				pt.SetDate("2024-01-15")
			},
			wantVendor:   "Acme Corp",
			wantCurrency: "USD",
			wantAmount:   "125.5",
			wantDate:     "2024-01-15",
		},
		{
			name: "refund keeps magnitude",
			setup: func(pt *plaid.Transaction) {
				pt.SetName("Globex Refund")
				pt.SetAmount(-42)
				pt.SetUnofficialCurrencyCode("BTC")
				pt.SetDate("2024-02-01")
			},
			wantVendor:   "Globex Refund",
			wantCurrency: "BTC",
			wantAmount:   "42",
			wantDate:     "2024-02-01",
		},
		{
			name: "unreadable date",
			setup: func(pt *plaid.Transaction) {
				pt.SetName("Initech")
				pt.SetAmount(10)
				pt.SetDate("soon")
			},
			wantVendor: "Initech",
			wantAmount: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pt plaid.Transaction
			tt.setup(&pt)

			row := client.mapTransaction(pt)
			assert.Equal(t, tt.wantVendor, row.Vendor)
			assert.Equal(t, tt.wantCurrency, row.Currency)
			assert.Equal(t, tt.wantAmount, row.AmountString())
			assert.Equal(t, tt.wantDate, row.DateString())
			assert.Empty(t, row.Source)
		})
	}
}

func TestMockSource(t *testing.T) {
	mock := &MockSource{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rows, err := mock.Fetch(context.Background(), start, end)
	require.NoError(t, err)
	assert.Empty(t, rows)

	want := []model.LedgerRow{{Vendor: "Acme", Index: 0}}
	mock.FetchFn = func(context.Context, time.Time, time.Time) ([]model.LedgerRow, error) {
		return want, nil
	}
	rows, err = mock.Fetch(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, want, rows)

	require.Len(t, mock.Calls, 2)
	assert.Equal(t, start, mock.Calls[1].Start)
	assert.Equal(t, end, mock.Calls[1].End)
}
