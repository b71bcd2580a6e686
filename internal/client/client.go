// Package client provides a websocket client for the wterm server with a
// reconnect supervisor: exponentially backed-off redial after unintended
// disconnects, a capped retry budget, and surfaced state transitions so a
// UI can tell "reconnecting" from "gave up".
package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/wterm/internal/logger"
)

// State is the supervisor's connection state.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// ErrNotConnected is returned by Send when no live connection exists.
var ErrNotConnected = errors.New("not connected")

// Options configures a Conn. Zero delay and attempt values fall back to
// the defaults (1s initial, 30s cap, 10 attempts).
type Options struct {
	URL string

	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int

	// OnMessage receives each raw frame from the server.
	OnMessage func(data []byte)
	// OnStateChange observes supervisor transitions; attempt is the
	// upcoming retry number, 0 outside of reconnection.
	OnStateChange func(state State, attempt int)
}

func (o *Options) fillDefaults() {
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
}

// Conn is a supervised websocket connection.
type Conn struct {
	opts Options

	mu     sync.Mutex
	ws     *websocket.Conn
	state  State
	closed bool

	done chan struct{}
}

// Dial starts the supervisor. It returns immediately; the first connection
// attempt happens on the supervisor goroutine.
func Dial(opts Options) *Conn {
	opts.fillDefaults()
	c := &Conn{
		opts:  opts,
		state: StateConnecting,
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// State returns the current supervisor state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send marshals v and writes it to the live connection.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the supervisor down. An intentional close never triggers
// reconnection.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		ws.Close()
	}
	c.setState(StateClosed, 0)
}

// run is the supervisor loop: connect, pump until the connection dies,
// back off, retry. A successful connection resets the attempt counter.
func (c *Conn) run() {
	attempt := 0
	for {
		ws, _, err := websocket.DefaultDialer.Dial(c.opts.URL, nil)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				ws.Close()
				return
			}
			c.ws = ws
			c.mu.Unlock()

			attempt = 0
			c.setState(StateConnected, 0)
			c.readLoop(ws)

			c.mu.Lock()
			c.ws = nil
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
		} else if c.isClosed() {
			return
		} else {
			logger.Debug("Connection to %s failed: %v", c.opts.URL, err)
		}

		attempt++
		if attempt > c.opts.MaxAttempts {
			logger.Warn("Giving up on %s after %d attempts", c.opts.URL, c.opts.MaxAttempts)
			c.setState(StateFailed, attempt)
			return
		}

		delay := backoffDelay(attempt-1, c.opts.InitialDelay, c.opts.MaxDelay)
		logger.Info("Reconnecting to %s in %s (attempt %d/%d)", c.opts.URL, delay, attempt, c.opts.MaxAttempts)
		c.setState(StateReconnecting, attempt)

		select {
		case <-time.After(delay):
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			ws.Close()
			return
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(data)
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) setState(state State, attempt int) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state, attempt)
	}
}

// backoffDelay returns the wait before retry number attempt (0-based):
// the initial delay doubled per attempt, capped at max.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
