package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// TokenSource supplies bearer tokens for backend calls. Invalidate marks the
// given token stale so the next Token call fetches a fresh one; passing a
// token that already got replaced is a no-op, which is what collapses
// concurrent refreshes into one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(stale string)
}

// StaticTokenSource returns the same token forever. Useful for tests and
// services fronted by a sidecar that injects credentials.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }
func (s StaticTokenSource) Invalidate(string)                     {}

// ClientCredentialsSource fetches tokens from an OAuth2 token endpoint using
// the client_credentials grant and caches the result until invalidated.
type ClientCredentialsSource struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu    sync.Mutex
	token string
}

// Token returns the cached token, fetching one when the cache is empty.
func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// Invalidate drops the cached token if it is still the one the caller saw
// fail. A later token survives, so N callers racing on the same 401 trigger
// exactly one refresh.
func (s *ClientCredentialsSource) Invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == stale {
		s.token = ""
	}
}

func (s *ClientCredentialsSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.ClientID)
	form.Set("client_secret", s.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("restclient: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("restclient: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("restclient: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("restclient: token endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("restclient: parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("restclient: token response has no access_token")
	}
	return payload.AccessToken, nil
}
