// Package stream connects the visualization engine to the Leadflow backend:
// the one-time snapshot fetch over HTTP and the live lead-event stream over
// WebSocket. It owns the boundary decode - dynamic JSON payloads become the
// closed, typed event set before they ever reach the store.
package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dyluth/leadflow/internal/board"
	"github.com/dyluth/leadflow/pkg/pipeline"
)

// Client owns exactly one live WebSocket subscription for an active project.
// Inbound messages are decoded into typed lead events and forwarded to the
// store in arrival order. Unknown message types are ignored; undecodable
// messages are surfaced on Errors() and skipped - neither is ever fatal to
// the stream. The connection closes on context cancellation or Close(); no
// automatic reconnect is attempted (events carry absolute values, so a caller
// that does reconnect cannot corrupt state by re-applying).
type Client struct {
	conn   *websocket.Conn
	store  *board.Store
	errors chan error
	done   chan struct{}
	once   sync.Once
}

// Attach dials the project's event stream and starts forwarding events into
// the store. The context governs both the dial and the connection lifetime:
// cancelling it tears the stream down.
func Attach(ctx context.Context, baseURL, projectID string, store *board.Store) (*Client, error) {
	url, err := StreamURL(baseURL, projectID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	c := &Client{
		conn:   conn,
		store:  store,
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}

	// Context cancellation closes the connection, which unblocks the read loop.
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	go c.readLoop()

	return c, nil
}

// Errors returns the channel of non-fatal stream errors (malformed messages).
// The channel is closed when the stream ends.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Done returns a channel closed when the stream has fully stopped. After Done
// no further events will reach the store, so it is safe to discard the store.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the subscription. Safe to call multiple times.
// The read loop stops before Close returns a second Done() read, guaranteeing
// no late event mutates a disposed store.
func (c *Client) Close() error {
	c.once.Do(func() {
		c.conn.Close()
	})
	return nil
}

// readLoop forwards decoded events to the store until the connection dies.
// One goroutine, one message at a time: arrival order is preserved.
func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.errors)
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// Normal teardown or a dead connection; either way the stream ends
			return
		}

		event, err := pipeline.DecodeEvent(data)
		if err != nil {
			if pipeline.IsUnknownEventType(err) {
				continue
			}
			select {
			case c.errors <- fmt.Errorf("dropping malformed stream message: %w", err):
			default:
			}
			continue
		}

		c.store.ApplyEvent(event)
	}
}

// StreamURL derives the WebSocket endpoint for a project's event stream from
// the backend's HTTP base URL.
func StreamURL(baseURL, projectID string) (string, error) {
	var wsBase string
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return "", fmt.Errorf("unsupported base URL scheme: %q", baseURL)
	}

	return fmt.Sprintf("%s/ws/projects/%s", strings.TrimSuffix(wsBase, "/"), projectID), nil
}
