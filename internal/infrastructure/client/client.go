package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/vatomsync/internal/shared/id"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// Endpoint describes one platform API call
type Endpoint struct {
	// Name labels the call in logs and metrics ("inventory_hash")
	Name   string
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// Client wraps resty with rate limiting, circuit breaking and token refresh
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	tokens  TokenSource
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithMetrics adds request metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "api") }
}

// New creates the platform client
func New(cfg config.APIConfig, tokens TokenSource, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	// hand the last response to resty so platform errors get decoded
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout.Std()).
		SetHeader("User-Agent", "vatomsync/1.0").
		SetHeader("Accept", "application/json")
	if cfg.AppID != "" {
		restyClient.SetHeader("App-Id", cfg.AppID)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	c := &Client{
		resty:   restyClient,
		limiter: limiter,
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	threshold := cfg.BreakerFailures
	if threshold == 0 {
		threshold = 10
	}
	c.breaker = resilience.New("platform-api", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// only an unreachable platform should open the circuit
		IsFailure: IsTransport,
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Request performs the call and decodes the envelope payload into out
func (c *Client) Request(ctx context.Context, ep Endpoint, out any) error {
	body, err := c.RequestJSON(ctx, ep)
	if err != nil {
		return err
	}
	if err := body.Decode(out); err != nil {
		return fmt.Errorf("%s: %w", ep.Name, err)
	}
	return nil
}

// RequestJSON performs the call and returns the raw envelope payload. An
// authentication failure triggers a single token refresh and retry.
func (c *Client) RequestJSON(ctx context.Context, ep Endpoint) (payload.Value, error) {
	token, err := c.token(ctx)
	if err != nil {
		return payload.Null(), err
	}

	body, err := c.execute(ctx, ep, token)
	if pe, ok := IsPlatform(err); ok && pe.IsAuth() && c.tokens != nil {
		c.logger.Debug("Access token rejected, refreshing", zap.String("endpoint", ep.Name))
		token, rerr := c.tokens.Refresh(ctx)
		if rerr != nil {
			return payload.Null(), fmt.Errorf("%s: token refresh failed: %w", ep.Name, rerr)
		}
		body, err = c.execute(ctx, ep, token)
	}
	return body, err
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

func (c *Client) execute(ctx context.Context, ep Endpoint, token string) (payload.Value, error) {
	var body payload.Value
	start := time.Now()
	status := "transport_error"

	err := c.breaker.Execute(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Endpoint: ep.Name, Err: fmt.Errorf("rate limit: %w", err)}
		}

		req := c.resty.R().
			SetContext(ctx).
			SetHeader("X-Request-ID", id.NewRequestID().String())
		if token != "" {
			req.SetAuthToken(token)
		}
		if len(ep.Query) > 0 {
			req.SetQueryParams(ep.Query)
		}
		if ep.Body != nil {
			req.SetBody(ep.Body)
		}

		resp, err := req.Execute(ep.Method, ep.Path)
		if err != nil {
			return &TransportError{Endpoint: ep.Name, Err: err}
		}
		status = strconv.Itoa(resp.StatusCode())

		envelope, perr := payload.Parse(resp.Body())
		if resp.IsError() || (perr == nil && envelope.Has("error") && !envelope.Has("payload")) {
			return &PlatformError{
				Endpoint: ep.Name,
				Status:   resp.StatusCode(),
				Code:     int(envelope.Int("error")),
				Message:  envelope.String("message"),
			}
		}
		if perr != nil {
			return fmt.Errorf("%s: %w", ep.Name, perr)
		}

		body, _ = envelope.Field("payload")
		return nil
	})

	if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
		err = &TransportError{Endpoint: ep.Name, Err: err}
		status = "circuit_open"
	}

	c.metrics.RecordAPIRequest(ep.Name, status, time.Since(start))
	if err != nil {
		c.logger.Debug("Platform request failed", zap.String("endpoint", ep.Name), zap.Error(err))
	}
	return body, err
}
