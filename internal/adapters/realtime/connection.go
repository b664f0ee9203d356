package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/identity"
)

// DefaultSendBuffer is the number of outbound messages a connection queues
// before it starts dropping.
const DefaultSendBuffer = 64

// Connection is one live client session. Its principal is fixed when it is
// created. Outbound messages go through a bounded queue drained by the
// connection's writer, so producers never block on a slow client.
type Connection struct {
	id        uuid.UUID
	principal identity.Principal

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

var _ bids.Bidder = (*Connection)(nil)

// NewConnection creates a connection for principal with a send queue of
// bufferSize messages.
func NewConnection(principal identity.Principal, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Connection{
		id:        uuid.New(),
		principal: principal,
		send:      make(chan []byte, bufferSize),
		done:      make(chan struct{}),
	}
}

func (c *Connection) SessionID() uuid.UUID {
	return c.id
}

func (c *Connection) Principal() identity.Principal {
	return c.principal
}

// Enqueue queues msg for delivery without blocking. It reports false when the
// connection is closed or its queue is full; the message is then dropped.
func (c *Connection) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Outbound is drained by the connection writer
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Close marks the connection closed. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Dropped counts messages discarded because the queue was full
func (c *Connection) Dropped() uint64 {
	return c.dropped.Load()
}
