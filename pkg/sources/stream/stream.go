// Package stream wraps a gorilla WebSocket connection with the read semantics
// the feed adapters need: a per-message idle deadline that surfaces as a
// stale-connection fault.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tc.com/oracle-relayer/pkg/sources"
)

// Conn is a single WebSocket session.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens a WebSocket connection with optional handshake headers.
func Dial(ctx context.Context, url string, headers http.Header) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// ReadMessage blocks for the next message, up to idleTimeout. An expired
// deadline is reported as ErrStaleConnection, a peer close as
// ErrConnectionClosed.
func (c *Conn) ReadMessage(idleTimeout time.Duration) ([]byte, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
		return nil, err
	}
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w (after %s)", sources.ErrStaleConnection, idleTimeout)
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			return nil, fmt.Errorf("%w: %v", sources.ErrConnectionClosed, err)
		}
		return nil, err
	}
	return msg, nil
}

// WriteJSON sends a JSON message with a bounded write deadline.
func (c *Conn) WriteJSON(v interface{}) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
