package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/krissistrunk/restaurant-realtime/src/types"
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID   string
	conn types.Conn
	hub  *Hub

	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time

	// alive is reset before each heartbeat probe and set on any inbound
	// message. Read and written without the hub lock.
	alive atomic.Bool

	// identity and channels are guarded by the hub mutex.
	identity *types.Identity
	channels map[string]struct{}
}

// NewClient creates a new client wrapper around conn. The client starts
// alive so the monitor never evicts it before a full probe cycle.
func NewClient(id string, conn types.Conn, h *Hub) *Client {
	c := &Client{
		ID:          id,
		conn:        conn,
		hub:         h,
		send:        make(chan []byte, h.sendBufferSize),
		done:        make(chan struct{}),
		connectedAt: h.clock.Now(),
		channels:    make(map[string]struct{}),
	}
	c.alive.Store(true)
	return c
}

// trySend enqueues data without blocking. It reports false when the send
// buffer is full or the client is already closed.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close releases the transport. Safe to call from any teardown path; only
// the first call has an effect. The send channel is never closed so racing
// senders can never panic, they observe done instead.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// ReadPump reads messages from the transport and feeds the protocol loop.
// Any read error funnels into the hub's single teardown path.
func (c *Client) ReadPump() {
	defer c.hub.Teardown(c)

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Any transport-level response counts as a liveness signal.
		c.alive.Store(true)
		c.hub.handleInbound(c, data)
	}
}

// WritePump drains the send buffer to the transport.
func (c *Client) WritePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(data); err != nil {
				c.hub.Teardown(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
