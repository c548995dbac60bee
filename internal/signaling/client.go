// Package signaling implements the signaling client:
// a persistent, auto-reconnecting WebSocket connection to the signaling
// hub, carrying JSON envelopes in both directions plus a heartbeat.
package signaling

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/airan/internal/util"
)

const heartbeatText = "@heart"

// Client is a process-wide signaling connection. One instance lives for the
// process lifetime.
type Client struct {
	baseURL           string
	sessionID         string
	hostname          string
	heartbeatInterval time.Duration

	events chan Event

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sched *scheduler // owned by the supervise goroutine only
}

// New creates a Client. Call Connect to start it.
func New(wsURL, sessionID, hostname string, heartbeatInterval time.Duration) *Client {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Client{
		baseURL:           wsURL,
		sessionID:         sessionID,
		hostname:          hostname,
		heartbeatInterval: heartbeatInterval,
		events:            make(chan Event, 64),
	}
}

// Events returns the Client's event stream. The caller should drain it for
// the Client's lifetime.
func (c *Client) Events() <-chan Event { return c.events }

// dialURL builds "wsUrl?sessionId=<local_id>&hostname=<host>".
func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("signaling: invalid URL %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("sessionId", c.sessionID)
	q.Set("hostname", c.hostname)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect starts the supervisor goroutine, which dials in the background
// and owns the read loop, the heartbeat, and the reconnect state machine for
// the remainder of the Client's life. It returns without waiting for the
// first dial, and always returns nil.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.supervise()

	return nil
}

// Close stops both timers and drops the socket.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

// SendText sends a best-effort text frame on the live connection.
func (c *Client) SendText(msg string) error {
	return c.send(websocket.TextMessage, []byte(msg))
}

// SendBinary sends a best-effort binary frame on the live connection.
func (c *Client) SendBinary(msg []byte) error {
	return c.send(websocket.BinaryMessage, msg)
}

func (c *Client) send(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return fmt.Errorf("signaling: not connected")
	}
	if err := c.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("signaling: send failed: %w", err)
	}
	if kind == websocket.TextMessage {
		util.Stats.AddSent(len(data))
	}
	return nil
}

// emit pushes an event, dropping it rather than blocking forever if the
// consumer has stalled and the buffer is full.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		util.LogWarning("signaling: event channel full, dropping %T", ev)
	}
}

// supervise is the top-level loop: connect, run until disconnected, then
// reconnect per the phase schedule, forever until ctx is cancelled.
func (c *Client) supervise() {
	defer c.wg.Done()

	c.sched = newScheduler()

	for {
		if c.ctx.Err() != nil {
			return
		}

		err := c.runOnce()
		if c.ctx.Err() != nil {
			return
		}

		c.emit(Disconnected{Err: err})

		delay, ph, attempt := c.sched.next()
		c.emit(ReconnectStatus{Phase: ph, Attempt: attempt, NextDelay: delay})

		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}
	}
}

// runOnce dials, then blocks serving the connection (heartbeat + read loop)
// until it disconnects or ctx is cancelled. On a successful dial it resets
// the reconnect scheduler.
func (c *Client) runOnce() error {
	dialURL, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("signaling: dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.emit(Connected{})
	c.sched.reset()

	hbCtx, hbCancel := context.WithCancel(c.ctx)
	go c.heartbeatLoop(hbCtx)

	err = c.readLoop(conn)

	hbCancel()
	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.mu.Unlock()
	conn.Close()

	return err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		util.Stats.AddRecv(len(data))
		switch kind {
		case websocket.TextMessage:
			c.emit(TextReceived{Text: string(data)})
		case websocket.BinaryMessage:
			c.emit(BinaryReceived{Data: data})
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.SendText(heartbeatText); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
