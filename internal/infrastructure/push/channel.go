package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/client"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/shared/id"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

var (
	ErrNotConnected = errors.New("push channel is not connected")
	ErrClosed       = errors.New("push channel is closed")
)

// Channel is a reconnecting WebSocket push client
type Channel struct {
	cfg     config.PushConfig
	appID   string
	tokens  client.TokenSource
	dialer  *websocket.Dialer
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu          sync.RWMutex
	conn        *websocket.Conn
	messageSubs map[id.SubscriptionID]func(types.Message)
	connectSubs map[id.SubscriptionID]func()
	closed      bool
	cancel      context.CancelFunc
	done        chan struct{}

	writeMu sync.Mutex
}

// Option customizes a Channel
type Option func(*Channel)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.logger = logging.Component(l, "push") }
}

// WithMetrics adds connection and message metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithDialer replaces the default WebSocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// New creates a channel; call Start to connect
func New(cfg config.PushConfig, appID string, tokens client.TokenSource, opts ...Option) *Channel {
	c := &Channel{
		cfg:         cfg,
		appID:       appID,
		tokens:      tokens,
		dialer:      websocket.DefaultDialer,
		logger:      zap.NewNop(),
		messageSubs: make(map[id.SubscriptionID]func(types.Message)),
		connectSubs: make(map[id.SubscriptionID]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.ReconnectMin <= 0 {
		c.cfg.ReconnectMin = config.Duration(time.Second)
	}
	if c.cfg.ReconnectMax < c.cfg.ReconnectMin {
		c.cfg.ReconnectMax = c.cfg.ReconnectMin
	}
	return c
}

// Subscribe registers fn for every received message. The returned function
// removes the subscription.
func (c *Channel) Subscribe(fn func(types.Message)) func() {
	sid := id.NewSubscriptionID()
	c.mu.Lock()
	c.messageSubs[sid] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.messageSubs, sid)
		c.mu.Unlock()
	}
}

// OnConnected registers fn for every successful (re)connection
func (c *Channel) OnConnected(fn func()) func() {
	sid := id.NewSubscriptionID()
	c.mu.Lock()
	c.connectSubs[sid] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.connectSubs, sid)
		c.mu.Unlock()
	}
}

// Connected reports whether a connection is currently open
func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Start launches the connect/read loop. It returns immediately.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Send writes a JSON command frame
func (c *Channel) Send(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops the loop and closes the connection
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.cfg.ReconnectMin.Std()
	for {
		conn, err := c.dial(ctx)
		c.metrics.RecordPushConnection(err)
		if err == nil {
			backoff = c.cfg.ReconnectMin.Std()
			c.serve(ctx, conn)
		} else {
			c.logger.Warn("Push channel connect failed", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.ReconnectMax.Std())
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid push url: %w", err)
	}

	q := u.Query()
	if c.appID != "" {
		q.Set("app_id", c.appID)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("push token: %w", err)
		}
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve owns conn until it fails. Messages are delivered on this goroutine
// so subscribers observe arrival order.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	connectSubs := make([]func(), 0, len(c.connectSubs))
	for _, fn := range c.connectSubs {
		connectSubs = append(connectSubs, fn)
	}
	c.mu.Unlock()

	c.logger.Info("Push channel connected")
	for _, fn := range connectSubs {
		fn()
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Push channel read failed", zap.Error(err))
			}
			break
		}

		var msg types.Message
		if err := sonic.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.logger.Warn("Dropping malformed push frame", zap.Error(err), zap.Int("bytes", len(data)))
			c.metrics.RecordPushMessage("malformed", errors.New("malformed"))
			continue
		}
		c.metrics.RecordPushMessage(msg.Type, nil)
		c.deliver(msg)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Channel) deliver(msg types.Message) {
	c.mu.RLock()
	subs := make([]func(types.Message), 0, len(c.messageSubs))
	for _, fn := range c.messageSubs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(msg)
	}
}
