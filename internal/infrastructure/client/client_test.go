package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/resilience"
)

func testConfig(url string) config.APIConfig {
	return config.APIConfig{
		BaseURL:         url,
		AppID:           "app-1",
		Timeout:         config.Duration(2 * time.Second),
		RetryMax:        0,
		BreakerFailures: 2,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestRequestJSONDecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/vatom/inventory/hash", r.URL.Path)
		assert.Equal(t, "app-1", r.Header.Get("App-Id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, map[string]any{"payload": map[string]any{"hash": "abc"}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), StaticToken("tok"))
	body, err := c.RequestJSON(context.Background(), Endpoint{Name: "hash", Method: http.MethodGet, Path: "/v1/user/vatom/inventory/hash"})
	require.NoError(t, err)
	assert.Equal(t, "abc", body.String("hash"))

	var out struct {
		Hash string `json:"hash"`
	}
	require.NoError(t, c.Request(context.Background(), Endpoint{Name: "hash", Method: http.MethodGet, Path: "/v1/user/vatom/inventory/hash"}, &out))
	assert.Equal(t, "abc", out.Hash)
}

func TestPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": CodeVatomNotFound, "message": "vatom not found"})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	_, err := c.RequestJSON(context.Background(), Endpoint{Name: "get", Method: http.MethodPost, Path: "/v1/user/vatom/get", Body: map[string]any{"ids": []string{"x"}}})
	require.Error(t, err)

	pe, ok := IsPlatform(err)
	require.True(t, ok)
	assert.Equal(t, CodeVatomNotFound, pe.Code)
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.Equal(t, "vatom not found", pe.Message)
	assert.False(t, IsTransport(err))
	// answers from the platform never trip the breaker
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestTransportErrorOpensBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(testConfig(url), nil)
	ep := Endpoint{Name: "hash", Method: http.MethodGet, Path: "/v1/user/vatom/inventory/hash"}

	for i := 0; i < 2; i++ {
		_, err := c.RequestJSON(context.Background(), ep)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	_, err := c.RequestJSON(context.Background(), ep)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.True(t, IsTransport(err))
}

func TestAuthFailureRefreshesOnce(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/access_token":
			assert.Equal(t, "Bearer refresh", r.Header.Get("Authorization"))
			refreshes.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"payload": map[string]any{
				"access_token": map[string]any{"token": "fresh", "expires_in": 3600},
			}})
		case "/v1/user/vatom/inventory/hash":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": CodeTokenExpired, "message": "token expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"payload": map[string]any{"hash": "h1"}})
		}
	}))
	defer srv.Close()

	tokens := NewRefreshingTokens(srv.URL, "stale", "refresh")
	c := New(testConfig(srv.URL), tokens)

	body, err := c.RequestJSON(context.Background(), Endpoint{Name: "hash", Method: http.MethodGet, Path: "/v1/user/vatom/inventory/hash"})
	require.NoError(t, err)
	assert.Equal(t, "h1", body.String("hash"))
	assert.Equal(t, int32(1), refreshes.Load())

	tok, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

func TestAuthFailureWithoutRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": CodeUnauthorized, "message": "nope"})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), StaticToken("tok"))
	_, err := c.RequestJSON(context.Background(), Endpoint{Name: "hash", Method: http.MethodGet, Path: "/x"})
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}
