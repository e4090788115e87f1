// Package realtime keeps the websocket event connection to the console
// backend and turns its change notifications into cache invalidations.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
)

const (
	DefaultReconnectDelay = 5 * time.Second

	// CloseAuthFailed is sent by the backend when the handshake token is
	// rejected. Like a normal close it ends the connection for good.
	CloseAuthFailed = 4001

	writeWait = 5 * time.Second
)

var errNoToken = errors.New("realtime: no access token")

// TokenFunc returns the access token used for the handshake.
type TokenFunc func(ctx context.Context) (string, error)

type Options struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8000/api/v1/ws.
	URL   string
	Token TokenFunc
	Cache Invalidator

	// ReconnectDelay is the fixed wait between attempts.
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Callbacks run on the supervisor goroutine and must not block.
	OnStateChange func(State)
	OnEvent       func(Event, []querycache.Key)
}

// Conn supervises one websocket connection. A single goroutine owns the
// socket and the reconnect timer; Start and Stop replace or end it.
type Conn struct {
	url     string
	token   TokenFunc
	cache   Invalidator
	delay   time.Duration
	dialer  *websocket.Dialer
	log     *slog.Logger
	metrics *metrics.Metrics

	onState func(State)
	onEvent func(Event, []querycache.Key)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	ws     *websocket.Conn
	state  State
}

func New(opts Options) *Conn {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Discard()
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	return &Conn{
		url:     opts.URL,
		token:   opts.Token,
		cache:   opts.Cache,
		delay:   delay,
		dialer:  dialer,
		log:     log.With("component", "realtime"),
		metrics: m,
		onState: opts.OnStateChange,
		onEvent: opts.OnEvent,
	}
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start connects in the background, tearing down any existing connection
// first.
func (c *Conn) Start() {
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.supervise(ctx, gen)
}

// Stop closes the socket with a normal close and cancels any pending
// reconnect. It does not wait for the supervisor goroutine, so it is safe
// to call from session event handlers.
func (c *Conn) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.setState(gen, Disconnected)
}

func (c *Conn) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.ws != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
		c.ws = nil
	}
}

// setState applies s only if gen is still the current generation.
func (c *Conn) setState(gen uint64, s State) {
	c.mu.Lock()
	if gen != c.gen || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.metrics.RealtimeState.Set(float64(s))
	c.log.Debug("realtime state changed", "state", s.String())
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Conn) supervise(ctx context.Context, gen uint64) {
	policy := backoff.NewConstantBackOff(c.delay)

	for {
		code, err := c.session(ctx, gen)
		if ctx.Err() != nil {
			return
		}

		switch {
		case errors.Is(err, errNoToken):
			c.log.Info("realtime not started", "err", err)
			c.setState(gen, Disconnected)
			return
		case err == nil && (code == websocket.CloseNormalClosure || code == CloseAuthFailed):
			c.log.Info("realtime connection closed", "code", code)
			c.setState(gen, Disconnected)
			return
		}

		c.setState(gen, Reconnecting)
		c.metrics.RealtimeReconnects.Inc()

		wait := policy.NextBackOff()
		c.log.Warn("realtime connection lost, reconnecting", "code", code, "err", err, "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials once and reads until the socket closes. It returns the close
// code sent by the peer, or an error for anything that was not a close.
// Connecting is reported only once a token is in hand.
func (c *Conn) session(ctx context.Context, gen uint64) (int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errNoToken, err)
	}
	if token == "" {
		return 0, errNoToken
	}
	c.setState(gen, Connecting)

	target, err := dialURL(c.url, token)
	if err != nil {
		return 0, err
	}

	ws, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return 0, fmt.Errorf("dial realtime: %w", err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = ws.Close()
		return 0, context.Canceled
	}
	c.ws = ws
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		_ = ws.Close()
	}()

	c.setState(gen, Connected)
	c.log.Info("realtime connected")

	for {
		mt, frame, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code, nil
			}
			return websocket.CloseAbnormalClosure, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.handle(frame)
	}
}

func (c *Conn) handle(frame []byte) {
	ev, err := ParseEvent(frame)
	if err != nil {
		c.metrics.RealtimeEvents.WithLabelValues("malformed").Inc()
		c.log.Warn("dropping malformed realtime frame", "err", err, "bytes", len(frame))
		return
	}

	keys := Apply(ev, c.cache)
	if keys == nil {
		c.metrics.RealtimeEvents.WithLabelValues("unknown").Inc()
		if ev.Type == "ERROR" {
			c.log.Warn("realtime error from backend", "message", ev.Message)
		} else {
			c.log.Debug("ignoring realtime event", "type", ev.Type)
		}
	} else {
		c.metrics.RealtimeEvents.WithLabelValues(ev.Type).Inc()
	}

	if c.onEvent != nil {
		c.onEvent(ev, keys)
	}
}

func dialURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
