package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CloseNormal is the websocket close code for an intentional local
// closure; the session never reconnects after it.
const CloseNormal = websocket.CloseNormalClosure

// closeAbnormal is reported when the peer vanished without a close
// handshake.
const closeAbnormal = websocket.CloseAbnormalClosure

// WebsocketDialer dials real websocket connections.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// NewWebsocketDialer creates a dialer with a 10s handshake timeout.
func NewWebsocketDialer(logger *zap.Logger) *WebsocketDialer {
	return &WebsocketDialer{HandshakeTimeout: 10 * time.Second, Logger: logger}
}

// Dial validates the target, opens the websocket, and starts the read
// loop. Precondition failures are returned before any network activity.
func (d *WebsocketDialer) Dial(ctx context.Context, target Target) (Conn, error) {
	u, err := URL(target)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	c := &wsConn{
		ws:     ws,
		events: make(chan Event, 64),
		logger: d.Logger,
	}
	c.events <- Event{Type: Opened}
	go c.readLoop()
	return c, nil
}

// wsConn wraps one gorilla websocket connection.
type wsConn struct {
	ws     *websocket.Conn
	events chan Event
	logger *zap.Logger

	writeMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	localCode   int
	localReason string
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

// Send writes one text frame. It fails once the connection is closed;
// delivery is not guaranteed either way.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("connection closed")
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

// Close performs the close handshake. Closing an already-closed
// connection is a no-op.
func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.localCode = code
	c.localReason = reason
	c.mu.Unlock()

	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	c.writeMu.Unlock()

	_ = c.ws.Close()
}

// readLoop delivers inbound frames until the connection dies, then
// emits the single terminal Closed event and closes the events channel.
func (c *wsConn) readLoop() {
	defer close(c.events)

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.events <- Event{Type: Closed, Code: c.closeCode(err), Reason: c.closeReason(err)}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.events <- Event{Type: Message, Data: data}
	}
}

func (c *wsConn) closeCode(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.localCode
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return closeAbnormal
}

func (c *wsConn) closeReason(err error) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.localReason
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Text
	}
	return err.Error()
}
