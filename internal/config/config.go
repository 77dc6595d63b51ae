// Package config turns viper state into the typed settings each component expects.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/pipeline"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/plaid"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/sheets"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/simplefin"
)

// DefaultDatabasePath is where runs and cached extractions are stored.
const DefaultDatabasePath = "~/.config/billmatch/billmatch.db"

// DefaultSimpleFINStateFile keeps the claimed SimpleFIN access URL.
const DefaultSimpleFINStateFile = "~/.config/billmatch/simplefin_auth.json"

// DefaultServerPort is the port the HTTP API listens on.
const DefaultServerPort = 8080

// SetDefaults registers the default value of every known key.
func SetDefaults() {
	m := matcher.DefaultConfig()
	viper.SetDefault("matching.threshold", m.Threshold)
	viper.SetDefault("matching.date_tolerance_days", m.DateToleranceDays)
	viper.SetDefault("matching.weights.date", m.Weights.Date)
	viper.SetDefault("matching.weights.currency", m.Weights.Currency)
	viper.SetDefault("matching.weights.vendor", m.Weights.Vendor)

	p := pipeline.DefaultConfig()
	viper.SetDefault("evaluation.workers", p.Workers)
	viper.SetDefault("evaluation.source_suffix", p.SourceSuffix)
	viper.SetDefault("evaluation.timeout", p.Timeout)

	viper.SetDefault("extraction.base_url", "https://api.mistral.ai/v1")
	viper.SetDefault("extraction.model", "pixtral-12b-2409")
	viper.SetDefault("extraction.max_retries", 3)
	viper.SetDefault("extraction.timeout", 30*time.Second)
	viper.SetDefault("extraction.max_tokens", 131072)
	viper.SetDefault("extraction.temperature", 0.0)
	viper.SetDefault("extraction.cache", true)

	viper.SetDefault("storage.database_path", DefaultDatabasePath)
	viper.SetDefault("plaid.environment", "sandbox")
	viper.SetDefault("simplefin.state_file", DefaultSimpleFINStateFile)
	viper.SetDefault("server.port", DefaultServerPort)
	viper.SetDefault("ui.theme", "default")
}

// LoadMatcherConfig reads the matching.* keys.
func LoadMatcherConfig() (matcher.Config, error) {
	cfg := matcher.DefaultConfig()
	if viper.IsSet("matching.threshold") {
		cfg.Threshold = viper.GetInt("matching.threshold")
	}
	if viper.IsSet("matching.date_tolerance_days") {
		cfg.DateToleranceDays = viper.GetInt("matching.date_tolerance_days")
	}
	if viper.IsSet("matching.weights.date") {
		cfg.Weights.Date = viper.GetFloat64("matching.weights.date")
	}
	if viper.IsSet("matching.weights.currency") {
		cfg.Weights.Currency = viper.GetFloat64("matching.weights.currency")
	}
	if viper.IsSet("matching.weights.vendor") {
		cfg.Weights.Vendor = viper.GetFloat64("matching.weights.vendor")
	}

	if err := matcher.ValidateThreshold(cfg.Threshold); err != nil {
		return cfg, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if cfg.DateToleranceDays < 0 {
		return cfg, fmt.Errorf("%w: matching.date_tolerance_days cannot be negative", common.ErrInvalidConfig)
	}
	if _, err := matcher.NewScorer(cfg.Weights, cfg.DateToleranceDays); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEvaluationConfig reads the evaluation.* keys.
func LoadEvaluationConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if viper.IsSet("evaluation.workers") {
		cfg.Workers = viper.GetInt("evaluation.workers")
	}
	if v := viper.GetString("evaluation.source_suffix"); v != "" {
		cfg.SourceSuffix = v
	}
	cfg.Timeout = viper.GetDuration("evaluation.timeout")

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("%w: evaluation.workers must be positive", common.ErrInvalidConfig)
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("%w: evaluation.timeout cannot be negative", common.ErrInvalidConfig)
	}
	return cfg, nil
}

// ExtractionConfig holds the vision client settings and whether results are cached.
type ExtractionConfig struct {
	Vision extract.VisionConfig
	Cache  bool
}

// LoadExtractionConfig reads the extraction.* keys. The API key falls back to
// MISTRAL_API_KEY; an empty key is not an error here since offline JSON
// documents need no client.
func LoadExtractionConfig() (ExtractionConfig, error) {
	cfg := ExtractionConfig{
		Vision: extract.VisionConfig{
			BaseURL:     viper.GetString("extraction.base_url"),
			APIKey:      viper.GetString("extraction.api_key"),
			Model:       viper.GetString("extraction.model"),
			MaxRetries:  viper.GetInt("extraction.max_retries"),
			Timeout:     viper.GetDuration("extraction.timeout"),
			MaxTokens:   viper.GetInt("extraction.max_tokens"),
			Temperature: viper.GetFloat64("extraction.temperature"),
		},
		Cache: viper.GetBool("extraction.cache"),
	}
	if cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = os.Getenv("MISTRAL_API_KEY")
	}

	if cfg.Vision.MaxRetries < 0 {
		return cfg, fmt.Errorf("%w: extraction.max_retries cannot be negative", common.ErrInvalidConfig)
	}
	if cfg.Vision.Timeout < 0 {
		return cfg, fmt.Errorf("%w: extraction.timeout cannot be negative", common.ErrInvalidConfig)
	}
	if cfg.Vision.Temperature < 0 || cfg.Vision.Temperature > 2 {
		return cfg, fmt.Errorf("%w: extraction.temperature must be between 0 and 2", common.ErrInvalidConfig)
	}
	return cfg, nil
}

// LoadPlaidConfig reads and validates the plaid.* keys.
func LoadPlaidConfig() (*plaid.Config, error) {
	cfg := plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
		AccessToken: viper.GetString("plaid.access_token"),
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSimpleFINConfig reads the simplefin.* keys. Either an access URL or a
// setup token is required; SIMPLEFIN_TOKEN is used when no token is set.
func LoadSimpleFINConfig() (simplefin.Config, error) {
	cfg := simplefin.Config{
		Token:     viper.GetString("simplefin.token"),
		AccessURL: viper.GetString("simplefin.access_url"),
		StateFile: ExpandPath(viper.GetString("simplefin.state_file")),
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("SIMPLEFIN_TOKEN")
	}
	if cfg.StateFile == "" {
		cfg.StateFile = ExpandPath(DefaultSimpleFINStateFile)
	}
	if cfg.AccessURL == "" && cfg.Token == "" {
		if _, err := os.Stat(cfg.StateFile); err != nil {
			return cfg, fmt.Errorf("%w: set simplefin.token or simplefin.access_url", common.ErrMissingConfig)
		}
	}
	return cfg, nil
}

// DatabasePath returns the expanded storage.database_path.
func DatabasePath() string {
	path := viper.GetString("storage.database_path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// ServerPort returns server.port.
func ServerPort() (int, error) {
	port := viper.GetInt("server.port")
	if port == 0 {
		port = DefaultServerPort
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: server.port %d out of range", common.ErrInvalidConfig, port)
	}
	return port, nil
}

// LoadSheetsConfig reads the sheets.* keys. Unset keys fall back to the
// GOOGLE_SHEETS_* variables the Google tooling already uses.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()
	cfg.ServiceAccountPath = ExpandPath(stringOrEnv("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	cfg.ClientID = stringOrEnv("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = stringOrEnv("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = stringOrEnv("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.SpreadsheetID = stringOrEnv("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := stringOrEnv("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		cfg.SpreadsheetName = name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringOrEnv returns the viper value for key, or the env variable when the key is unset.
func stringOrEnv(key, env string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(env)
}

// ExpandPath resolves a leading ~ to the home directory and expands
// environment variables. Paths stay unchanged when no home directory is known.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
