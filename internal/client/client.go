// Package client is a player-side connection to a swapit server: it submits
// moves over the websocket with request ids, waits for the ack and resends
// on timeout, and hands session events to the caller.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/logger"
	"swapit/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

var (
	ErrClosed = errors.New("client: connection closed")
	ErrNoAck  = errors.New("client: move not acknowledged")
)

type Options struct {
	// Timeout is how long one attempt waits for its ack.
	Timeout time.Duration
	// Retries is the number of resends after the first attempt.
	Retries int
	// MinBackoff and MaxBackoff bound the pause between attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Dialer *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = 2 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

type Conn struct {
	ws   *websocket.Conn
	opts Options

	wmu sync.Mutex // gorilla allows one writer

	mu      sync.Mutex
	pending map[string]chan service.MoveAck

	events chan *broadcast.Envelope
	done   chan struct{}
	err    error
}

// frame is the part of every server message the reader routes on.
type frame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// WSURL turns an http(s) or ws(s) base address into the socket URL for token.
func WSURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Dial connects and waits for the server's ready frame, after which the
// connection is subscribed to its game and the lobby.
func Dial(ctx context.Context, serverURL, token string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	wsURL, err := WSURL(serverURL, token)
	if err != nil {
		return nil, err
	}

	ws, _, err := opts.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ws.SetReadDeadline(deadline)
	var first frame
	if err := ws.ReadJSON(&first); err != nil {
		ws.Close()
		return nil, fmt.Errorf("waiting for ready: %w", err)
	}
	if first.Type != "ready" {
		ws.Close()
		return nil, fmt.Errorf("expected ready, got %q", first.Type)
	}
	ws.SetReadDeadline(time.Time{})

	c := &Conn{
		ws:      ws,
		opts:    opts,
		pending: make(map[string]chan service.MoveAck),
		events:  make(chan *broadcast.Envelope, 128),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields decoded session events. It is closed when the connection ends.
func (c *Conn) Events() <-chan *broadcast.Envelope {
	return c.events
}

// Err reports why the connection ended, once Events is closed.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.err = err
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Debug("client: unreadable frame", "error", err)
			continue
		}

		switch f.Type {
		case "ack":
			var ack service.MoveAck
			if err := json.Unmarshal(raw, &ack); err != nil {
				continue
			}
			c.mu.Lock()
			ch := c.pending[ack.RequestID]
			c.mu.Unlock()
			if ch != nil {
				select {
				case ch <- ack:
				default:
				}
			}
		case "pong", "ready":
		case "error":
			logger.Warn("client: server error", "message", f.Message)
		default:
			env, err := broadcast.Decode(raw)
			if err != nil {
				logger.Warn("client: bad event", "type", f.Type, "error", err)
				continue
			}
			select {
			case c.events <- env:
			default:
				logger.Warn("client: event buffer full, dropping", "type", env.Type)
			}
		}
	}
}

func (c *Conn) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	return c.ws.WriteJSON(v)
}

// Move submits order and waits for its ack, resending under the same
// request id until the retries run out. The server counts a request id once,
// so a resend after a lost ack is not a second move.
func (c *Conn) Move(ctx context.Context, order domain.Order) (*service.MoveAck, error) {
	reqID := uuid.NewString()
	ch := make(chan service.MoveAck, 1)

	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	b := &backoff.Backoff{
		Min:    c.opts.MinBackoff,
		Max:    c.opts.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}
	msg := map[string]any{"type": "move", "request_id": reqID, "order": order}

	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.done:
				return nil, ErrClosed
			}
		}

		if err := c.writeJSON(msg); err != nil {
			return nil, fmt.Errorf("send move: %w", err)
		}

		timer := time.NewTimer(c.opts.Timeout)
		select {
		case ack := <-ch:
			timer.Stop()
			return &ack, nil
		case <-timer.C:
			logger.Debug("client: ack timeout", "request_id", reqID, "attempt", attempt+1)
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-c.done:
			timer.Stop()
			return nil, ErrClosed
		}
	}
	return nil, ErrNoAck
}

func (c *Conn) Ping() error {
	return c.writeJSON(map[string]string{"type": "ping"})
}

// Close sends a close frame and waits for the reader to stop.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()

	select {
	case <-c.done:
	case <-time.After(c.opts.Timeout):
	}
	return c.ws.Close()
}
