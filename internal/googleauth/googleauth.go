// Package googleauth builds authenticated HTTP clients for Google APIs
// from an OAuth2 credentials file and a cached token.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Client returns an authenticated HTTP client for the given scopes. It
// reads the OAuth2 app credentials from credentialsPath and reuses the
// cached token at tokenPath; when no usable token exists it runs the
// interactive authorization flow and caches the result.
func Client(ctx context.Context, credentialsPath, tokenPath string, scopes ...string) (*http.Client, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	token, err := cachedToken(tokenPath)
	if err != nil {
		token, err = authorize(ctx, cfg, tokenPath)
		if err != nil {
			return nil, fmt.Errorf("failed to authorize: %w", err)
		}
	}

	return cfg.Client(ctx, token), nil
}

func cachedToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// authorize walks the operator through the out-of-band OAuth2 code flow on
// the terminal and caches the exchanged token.
func authorize(ctx context.Context, cfg *oauth2.Config, tokenPath string) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL in your browser:\n%s\n\n", authURL)
	fmt.Print("Enter authorization code: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("failed to read auth code: %w", err)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	if data, err := json.MarshalIndent(token, "", "  "); err == nil {
		if err := os.WriteFile(tokenPath, data, 0600); err != nil {
			fmt.Printf("Warning: failed to cache token: %v\n", err)
		}
	}

	return token, nil
}
