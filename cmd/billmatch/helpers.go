package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/ledger"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/plaid"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/simplefin"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/storage"
)

// Ledger names recorded for runs fetched from a bank feed.
const (
	plaidLedger     = "plaid"
	simplefinLedger = "simplefin"
)

// addLedgerFlags registers the flags that choose a ledger source.
func addLedgerFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("ledger", "l", "", "Ledger file (.csv, .ofx, .qfx)")
	cmd.Flags().Bool("plaid", false, "Fetch the ledger from Plaid instead of a file")
	cmd.Flags().Bool("simplefin", false, "Fetch the ledger from a SimpleFIN bridge instead of a file")
	cmd.Flags().String("from", "", "Bank feed window start (YYYY-MM-DD, default 90 days ago)")
	cmd.Flags().String("to", "", "Bank feed window end (YYYY-MM-DD, default today)")
}

// ledgerFlagsSet reports whether any ledger source flag was given.
func ledgerFlagsSet(cmd *cobra.Command) bool {
	path, _ := cmd.Flags().GetString("ledger")
	usePlaid, _ := cmd.Flags().GetBool("plaid")
	useSimpleFIN, _ := cmd.Flags().GetBool("simplefin")
	return path != "" || usePlaid || useSimpleFIN
}

// loadLedger reads the ledger chosen by the ledger flags and returns it with
// the name recorded on runs.
func loadLedger(cmd *cobra.Command) ([]model.LedgerRow, string, error) {
	path, _ := cmd.Flags().GetString("ledger")
	usePlaid, _ := cmd.Flags().GetBool("plaid")
	useSimpleFIN, _ := cmd.Flags().GetBool("simplefin")

	sources := 0
	for _, set := range []bool{path != "", usePlaid, useSimpleFIN} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, "", fmt.Errorf("--ledger, --plaid and --simplefin are mutually exclusive")
	}

	switch {
	case usePlaid || useSimpleFIN:
		start, end, err := feedWindow(cmd)
		if err != nil {
			return nil, "", err
		}
		if usePlaid {
			rows, err := fetchPlaid(cmd.Context(), start, end)
			return rows, plaidLedger, err
		}
		rows, err := fetchSimpleFIN(cmd.Context(), start, end)
		return rows, simplefinLedger, err
	case path != "":
		path = config.ExpandPath(path)
		rows, err := ledger.Open(cmd.Context(), path)
		return rows, path, err
	default:
		return nil, "", fmt.Errorf("a ledger is required: use --ledger, --plaid or --simplefin")
	}
}

func feedWindow(cmd *cobra.Command) (time.Time, time.Time, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -90)

	parse := func(flag string, into *time.Time) error {
		v, _ := cmd.Flags().GetString(flag)
		if v == "" {
			return nil
		}
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			return fmt.Errorf("invalid --%s date %q: %w", flag, v, err)
		}
		*into = t
		return nil
	}
	if err := parse("from", &start); err != nil {
		return start, end, err
	}
	if err := parse("to", &end); err != nil {
		return start, end, err
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--to must not be before --from")
	}
	return start, end, nil
}

func fetchPlaid(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error) {
	cfg, err := config.LoadPlaidConfig()
	if err != nil {
		return nil, common.NewUserError("Plaid is not configured", err)
	}
	client, err := plaid.NewClient(*cfg)
	if err != nil {
		return nil, err
	}
	return ledger.Fetch(ctx, client, start, end)
}

func fetchSimpleFIN(ctx context.Context, start, end time.Time) ([]model.LedgerRow, error) {
	cfg, err := config.LoadSimpleFINConfig()
	if err != nil {
		return nil, common.NewUserError("SimpleFIN is not configured", err)
	}
	client, err := simplefin.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ledger.Fetch(ctx, client, start, end)
}

// newMatcher builds the matcher from the matching.* settings.
func newMatcher() (*matcher.Matcher, error) {
	cfg, err := config.LoadMatcherConfig()
	if err != nil {
		return nil, err
	}
	return matcher.New(cfg)
}

// thresholdFor returns the --threshold flag when given, else the configured one.
func thresholdFor(cmd *cobra.Command, m *matcher.Matcher) (int, error) {
	if !cmd.Flags().Changed("threshold") {
		return m.Threshold(), nil
	}
	threshold, _ := cmd.Flags().GetInt("threshold")
	if err := matcher.ValidateThreshold(threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}

// openStorage opens the run database and brings its schema up to date.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// newExtractor routes JSON records and images to the right backend. Images
// need an API key; results are cached in store when caching is enabled.
func newExtractor(store extract.Store) (extract.Extractor, error) {
	cfg, err := config.LoadExtractionConfig()
	if err != nil {
		return nil, err
	}

	var vision extract.Extractor
	if cfg.Vision.APIKey != "" {
		client, err := extract.NewVisionClient(cfg.Vision)
		if err != nil {
			return nil, err
		}
		vision = client
	} else {
		slog.Debug("No extraction API key configured, only JSON documents can be read")
	}

	var extractor extract.Extractor = extract.NewRouter(vision)
	if cfg.Cache && store != nil {
		extractor = extract.NewCachingExtractor(extractor, store)
	}
	return extractor, nil
}

// collectFiles expands glob patterns and directories into a sorted,
// de-duplicated list of regular files.
func collectFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		pattern = config.ExpandPath(pattern)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("No files found matching pattern", "pattern", pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if !info.IsDir() {
				add(match)
				continue
			}

			entries, err := os.ReadDir(match)
			if err != nil {
				return nil, fmt.Errorf("failed to read directory %s: %w", match, err)
			}
			for _, entry := range entries {
				if entry.Type().IsRegular() {
					add(filepath.Join(match, entry.Name()))
				}
			}
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no documents found")
	}
	return files, nil
}
