package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrConnectionClosed is returned by a send to a connection whose
	// transport has gone away.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when the connection's outbound buffer is
	// full; the client is not draining fast enough to be considered alive.
	ErrSendBufferFull = errors.New("connection send buffer full")
)

// Connection is one live client session. The registry owns registration and
// removal; the transport layer drains Events() and calls Close when the
// underlying socket dies.
type Connection struct {
	id          string
	recipientID string

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConnection(recipientID string, bufferSize int) *Connection {
	return &Connection{
		id:          uuid.New().String(),
		recipientID: recipientID,
		send:        make(chan []byte, bufferSize),
		done:        make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// RecipientID returns the recipient this connection belongs to.
func (c *Connection) RecipientID() string { return c.recipientID }

// Events returns the outbound frame stream for the transport to drain.
func (c *Connection) Events() <-chan []byte { return c.send }

// Done is closed when the connection is terminated.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close terminates the connection. Idempotent; safe from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// push offers a frame to the connection without blocking. A closed connection
// or a full buffer is a send failure; the caller removes the connection.
func (c *Connection) push(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}
