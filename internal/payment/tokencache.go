package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zariya-jewels/backend-store/internal/obs"
)

// refreshMargin is subtracted from the provider expiry so a token is never
// presented right at its deadline.
const refreshMargin = 60 * time.Second

// TokenCache holds one provider's OAuth bearer token and lazily refreshes it
// via a client-credentials request once the expiry margin is reached. It is an
// explicit object passed to every caller needing authentication; the clock is
// injectable for tests.
type TokenCache struct {
	Provider      string
	AuthURL       string
	ClientID      string
	ClientSecret  string
	ClientVersion string
	HTTP          *http.Client
	Now           func() time.Time

	mu        sync.Mutex
	token     string
	tokenType string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Token returns a bearer token and its type, refreshing when the cached one is
// within the safety margin of its expiry. The mutex also collapses concurrent
// refreshes into one auth round trip; a duplicate refresh would be harmless
// since every token the endpoint issues is independently valid.
func (c *TokenCache) Token(ctx context.Context) (string, string, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return "", "", &ConfigurationError{Provider: c.providerLabel(), Field: "oauth client credentials"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt.Add(-refreshMargin)) {
		return c.token, c.tokenType, nil
	}

	token, tokenType, expiresAt, err := c.fetch(ctx)
	result := "success"
	if err != nil {
		result = "error"
	}
	if obs.ProviderTokenRefreshTotal != nil {
		obs.ProviderTokenRefreshTotal.WithLabelValues(c.providerLabel(), result).Inc()
	}
	if err != nil {
		return "", "", err
	}

	c.token = token
	c.tokenType = tokenType
	c.expiresAt = expiresAt
	return c.token, c.tokenType, nil
}

func (c *TokenCache) fetch(ctx context.Context) (string, string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	if strings.TrimSpace(c.ClientVersion) != "" {
		form.Set("client_version", c.ClientVersion)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", time.Time{}, &AuthError{Provider: c.providerLabel(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", time.Time{}, &AuthError{Provider: c.providerLabel(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", time.Time{}, &AuthError{Provider: c.providerLabel(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", time.Time{}, &AuthError{
			Provider: c.providerLabel(),
			Err:      fmt.Errorf("auth endpoint returned %d", resp.StatusCode),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", time.Time{}, &AuthError{Provider: c.providerLabel(), Err: err}
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", "", time.Time{}, &AuthError{
			Provider: c.providerLabel(),
			Err:      fmt.Errorf("auth endpoint returned no token"),
		}
	}

	tokenType := parsed.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	var expiresAt time.Time
	switch {
	case parsed.ExpiresAt > 0:
		expiresAt = time.Unix(parsed.ExpiresAt, 0)
	case parsed.ExpiresIn > 0:
		expiresAt = c.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	default:
		expiresAt = c.now().Add(5 * time.Minute)
	}
	return parsed.AccessToken, tokenType, expiresAt, nil
}

func (c *TokenCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *TokenCache) providerLabel() string {
	if strings.TrimSpace(c.Provider) == "" {
		return "phonepe"
	}
	return c.Provider
}
