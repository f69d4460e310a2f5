package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/metrics"
)

// State is the connection state of the realtime channel
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Change is one row-change notification from the store's subscribe stream.
// The stream sends row ids as JSON numbers.
type Change struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     int64  `json:"id"`
}

// Handler receives change notifications
type Handler func(Change)

// Client is a reconnecting client for the store's SSE subscribe endpoint.
// Changes are dispatched in wire arrival order on a single goroutine; there
// is no delivery guarantee across reconnects, changes emitted while the
// channel is down are simply missed. That is why the Refresher keeps a
// polling fallback.
type Client struct {
	url            string
	reconnectDelay time.Duration
	autoReconnect  bool
	http           *http.Client
	log            zerolog.Logger

	mu       sync.Mutex
	state    State
	handlers map[string][]Handler
	catchAll []Handler
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Client
type Option func(*Client)

// WithAutoReconnect enables automatic reconnection after a dropped stream
func WithAutoReconnect(enabled bool) Option {
	return func(c *Client) { c.autoReconnect = enabled }
}

// WithReconnectDelay overrides the fixed delay between reconnect attempts
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// NewClient creates a realtime client for the given subscribe URL
func NewClient(url string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:            url,
		reconnectDelay: 3 * time.Second,
		autoReconnect:  true,
		http:           &http.Client{},
		log:            log,
		state:          StateDisconnected,
		handlers:       make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnTable registers a handler for changes to one table
func (c *Client) OnTable(table string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[table] = append(c.handlers[table], h)
}

// OnAny registers a handler for changes to any table
func (c *Client) OnAny(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catchAll = append(c.catchAll, h)
}

// Connect starts the channel. It returns immediately; the stream runs on a
// background goroutine until Disconnect or the context ends.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateConnecting
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx)
	}()
}

// Disconnect stops the channel. Any pending reconnect is canceled and no
// handler fires after Disconnect returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.setState(StateDisconnected)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context) {
	for {
		c.setState(StateConnecting)

		err := c.stream(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("realtime stream dropped")
		}

		c.setState(StateDisconnected)

		if !c.autoReconnect {
			return
		}

		metrics.RecordSyncReconnect()
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// stream opens the SSE connection and dispatches events until it drops
func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.setState(StateConnected)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		c.dispatch(data)
	}

	return scanner.Err()
}

// dispatch routes one wire message. The stream's own housekeeping messages
// are not forwarded: {type:connected} is swallowed, {type:error} is logged.
func (c *Client) dispatch(data string) {
	var msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Change
	}
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		c.log.Error().Err(err).Str("data", data).Msg("failed to decode realtime message")
		return
	}

	switch msg.Type {
	case "connected":
		return
	case "error":
		c.log.Error().Str("message", msg.Message).Msg("realtime stream error")
		return
	}

	if msg.Table == "" {
		return
	}

	c.mu.Lock()
	handlers := append([]Handler{}, c.handlers[msg.Table]...)
	handlers = append(handlers, c.catchAll...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg.Change)
	}
}
