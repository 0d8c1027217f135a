package onshape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// StaticTokenSource returns a fixed token and cannot refresh. Used in
// tests and for pre-provisioned long-lived tokens.
type StaticTokenSource struct {
	Token string
}

func (s *StaticTokenSource) AccessToken(ctx context.Context) (string, error) {
	if s.Token == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return s.Token, nil
}

func (s *StaticTokenSource) Refresh(ctx context.Context) error {
	return fmt.Errorf("static token source cannot refresh")
}

// OAuthTokenSource holds an access/refresh token pair and exchanges the
// refresh token at the token endpoint when asked. Safe for concurrent
// use.
type OAuthTokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewOAuthTokenSource creates a refreshing token source seeded with the
// initial token pair.
func NewOAuthTokenSource(tokenURL, clientID, clientSecret, accessToken, refreshToken string) *OAuthTokenSource {
	return &OAuthTokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

func (s *OAuthTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return "", fmt.Errorf("no access token available")
	}
	return s.accessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges the refresh token for a new pair. The endpoint may
// rotate the refresh token; when it does the new one replaces the old.
func (s *OAuthTokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.refreshToken)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access token")
	}

	s.accessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		s.refreshToken = tr.RefreshToken
	}
	return nil
}
