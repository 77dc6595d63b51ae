package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
)

// AuthState is the saved result of claiming a setup token.
type AuthState struct {
	ClaimedAt  time.Time `json:"claimed_at"`
	AccessURL  string    `json:"access_url"`
	ClaimToken string    `json:"claim_token_hint"`
}

// LoadOrClaim returns the access URL saved in stateFile, claiming token and
// saving the result when no usable state exists.
func LoadOrClaim(ctx context.Context, httpClient *http.Client, token, stateFile string) (*AuthState, error) {
	if auth, err := loadAuthState(stateFile); err == nil && auth.AccessURL != "" {
		slog.Debug("Using saved SimpleFIN access URL",
			"claimed_at", auth.ClaimedAt.Format("2006-01-02"),
			"state_file", stateFile)
		return auth, nil
	}

	if token == "" {
		return nil, fmt.Errorf("%w: simplefin.token is required to claim access", common.ErrMissingConfig)
	}

	slog.Info("Claiming SimpleFIN setup token")
	accessURL, err := claimToken(ctx, httpClient, token)
	if err != nil {
		return nil, fmt.Errorf("failed to claim token: %w", err)
	}

	auth := &AuthState{
		AccessURL:  accessURL,
		ClaimedAt:  time.Now().UTC(),
		ClaimToken: tokenHint(token),
	}
	if err := saveAuthState(stateFile, auth); err != nil {
		return nil, fmt.Errorf("failed to save auth state: %w", err)
	}
	return auth, nil
}

// claimToken exchanges a base64 claim URL for an access URL. A token can be
// claimed only once.
func claimToken(ctx context.Context, httpClient *http.Client, token string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("%w: failed to decode SimpleFIN token: %w", common.ErrInvalidConfig, err)
		}
	}

	claimURL := string(decoded)
	if !isHTTPURL(claimURL) {
		return "", fmt.Errorf("%w: decoded token is not a URL", common.ErrInvalidConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to claim SimpleFIN access: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !isHTTPURL(accessURL) {
		return "", fmt.Errorf("invalid access URL received")
	}
	return accessURL, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func loadAuthState(path string) (*AuthState, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var auth AuthState
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func saveAuthState(path string, auth *AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// tokenHint keeps the ends of a token for identification.
func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short_token"
}
