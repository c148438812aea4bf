package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuth user credentials are an alternative to a service account for
// spreadsheets owned by a personal account. The token is produced once by
// cmd/oauth-init.
const (
	envOAuthClientJSON = "GOOGLE_OAUTH_CLIENT_JSON"
	envOAuthClientFile = "GOOGLE_OAUTH_CLIENT_FILE"
	envOAuthTokenJSON  = "GOOGLE_OAUTH_TOKEN_JSON"
	envOAuthTokenFile  = "GOOGLE_OAUTH_TOKEN_FILE"
)

var errNoOAuthClient = errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")

// readEnvOrFile returns the inline value of jsonKey, or the contents of the
// file named by fileKey. Both unset yields nil, nil.
func readEnvOrFile(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return b, nil
}

// OAuthConfigFromEnv loads the OAuth client scoped to spreadsheets.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	b, err := readEnvOrFile(envOAuthClientJSON, envOAuthClientFile)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errNoOAuthClient
	}
	cfg, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	return cfg, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// oauthTokenSource reports ok=false when no OAuth client is configured, so
// the caller can fall back to service account credentials.
func oauthTokenSource(ctx context.Context) (oauth2.TokenSource, bool, error) {
	cfg, err := OAuthConfigFromEnv()
	if errors.Is(err, errNoOAuthClient) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	b, err := readEnvOrFile(envOAuthTokenJSON, envOAuthTokenFile)
	if err != nil {
		return nil, true, err
	}
	if b == nil {
		return nil, true, errors.New("missing OAuth token (run oauth-init, then set GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, true, fmt.Errorf("decode oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), true, nil
}
