package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/storepins/pinboard/pkg/streaming"
)

const (
	sendChSize     = 256
	maxReconnect   = 10
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	defaultTimeout = 10 * time.Second
)

var (
	errNotConnected = errors.New("websocket not connected")
	errClosed       = errors.New("websocket connection closed")
	errSendFull     = errors.New("websocket send queue full")
)

type outbound struct {
	id   string
	data []byte
}

type result struct {
	resp streaming.Response
	err  error
}

// connection manages a WebSocket connection with a single write goroutine.
// Responses are routed back to the waiting request by envelope id.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan outbound
	done    chan struct{} // closed on shutdown
	closed  bool
	pending map[string]chan result

	wsURL   string
	secret  string
	backoff time.Duration

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan outbound, sendChSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan result),
		backoff: initialBackoff,
		logger:  logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(ctx context.Context, rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errClosed
	}
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				c.resolve(msg.id, result{err: errNotConnected})
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.resolve(msg.id, result{err: err})
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, msg.data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.resolve(msg.id, result{err: err})
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop reads responses from the server and hands each to the request
// waiting on its id. Any read error fails every pending request.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.failPending(fmt.Errorf("websocket read: %w", err))
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var resp streaming.Response
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID == "" {
			c.logger.Debug("Unroutable message received", "raw", string(message))
			continue
		}
		if !c.resolve(resp.ID, result{resp: resp}) {
			c.logger.Debug("Response for unknown request", "id", resp.ID, "for", resp.For)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff and restarts the read/write loops. broken is the
// connection that failed; a stale call for an already replaced connection
// is ignored.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		conn, err := c.dialOnce(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// request sends data tagged with id and blocks until the matching response
// arrives, the timeout expires, ctx is cancelled or the connection closes.
func (c *connection) request(ctx context.Context, id string, data []byte, timeout time.Duration) (streaming.Response, error) {
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return streaming.Response{}, errClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	select {
	case c.sendCh <- outbound{id: id, data: data}:
	default:
		return streaming.Response{}, errSendFull
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return streaming.Response{}, ctx.Err()
	case <-timer.C:
		return streaming.Response{}, fmt.Errorf("timeout waiting for response to %q", id)
	case <-c.done:
		return streaming.Response{}, errClosed
	}
}

// resolve delivers r to the request waiting on id. It reports whether a
// request was waiting.
func (c *connection) resolve(id string, r result) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		ch <- r
	}
	return ok
}

func (c *connection) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *connection) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
