package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// ErrNoRefreshToken is returned when a refresh is needed but impossible
var ErrNoRefreshToken = errors.New("no refresh token available")

// TokenSource supplies bearer tokens. Refresh is called once when the
// platform rejects the current token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Token is an access token with its expiry
type Token struct {
	Token  string
	Expiry time.Time
}

// RefreshingTokens caches the access token and trades the refresh token for
// a new one against the platform's access_token endpoint.
type RefreshingTokens struct {
	mu           sync.Mutex
	access       Token
	refreshToken string
	http         *resty.Client
}

// NewRefreshingTokens creates a token source. baseURL is the platform API root.
func NewRefreshingTokens(baseURL, accessToken, refreshToken string) *RefreshingTokens {
	return &RefreshingTokens{
		access:       Token{Token: accessToken, Expiry: time.Now().Add(45 * time.Minute)},
		refreshToken: refreshToken,
		http:         resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
	}
}

// Token returns the cached access token, refreshing it once it is about to expire
func (t *RefreshingTokens) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	access := t.access
	t.mu.Unlock()

	if access.Token != "" && access.Expiry.After(time.Now().Add(time.Minute)) {
		return access.Token, nil
	}
	return t.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token
func (t *RefreshingTokens) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetAuthToken(t.refreshToken).
		Post("/v1/access_token")
	if err != nil {
		return "", &TransportError{Endpoint: "access_token", Err: err}
	}

	body, err := payload.Parse(resp.Body())
	if err != nil {
		return "", fmt.Errorf("access_token: %w", err)
	}
	if resp.IsError() {
		return "", &PlatformError{
			Endpoint: "access_token",
			Status:   resp.StatusCode(),
			Code:     int(body.Int("error")),
			Message:  body.String("message"),
		}
	}

	token := body.String("payload.access_token.token")
	if token == "" {
		return "", fmt.Errorf("access_token: response carries no token")
	}
	expiresIn := body.Int("payload.access_token.expires_in")
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	t.access = Token{Token: token, Expiry: time.Now().Add(time.Duration(expiresIn) * time.Second)}
	return token, nil
}

// StaticToken is a TokenSource for a fixed token, mostly useful in tests
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error)   { return string(s), nil }
func (s StaticToken) Refresh(context.Context) (string, error) { return "", ErrNoRefreshToken }
