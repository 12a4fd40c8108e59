package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"liveclass/internal/auth"
)

// Connection buffering and write limits
const (
	sendBufferSize = 100
	writeTimeout   = 5 * time.Second
)

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
// Identity is fixed at upgrade time from the verified bearer token
type Connection struct {
	conn      *websocket.Conn
	id        string
	identity  auth.Identity
	writeCh   chan []byte // FUNCTIONAL DISCOVERY: 100 buffer absorbs a classroom-sized burst
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket and starts its writer goroutine
func NewConnection(conn *websocket.Conn, identity auth.Identity) *Connection {
	c := newConnection(conn, identity)
	go c.writeLoop()
	return c
}

func newConnection(conn *websocket.Conn, identity auth.Identity) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		id:       uuid.NewString(),
		identity: identity,
		writeCh:  make(chan []byte, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a frame for the writer goroutine without blocking
// FUNCTIONAL DISCOVERY: The hub calls this from its event loop, so a slow
// client gets ErrSendBufferFull instead of stalling every room
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close cancels the writer and closes the socket once
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection has been closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ID returns the unique connection id
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the authenticated caller id
func (c *Connection) UserID() string {
	return c.identity.UserID
}

// IsAdmin reports whether the caller holds the admin claim
func (c *Connection) IsAdmin() bool {
	return c.identity.IsAdmin
}
