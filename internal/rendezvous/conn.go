package rendezvous

import (
	"errors"
	"sync"

	"github.com/dkeye/duet/internal/domain"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Conn is one registered peer socket. Writes go through send and are
// serialized by the write pump.
type Conn struct {
	id   domain.PeerID
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(id domain.PeerID, ws *websocket.Conn) *Conn {
	return &Conn{id: id, conn: ws, send: make(chan []byte, 32)}
}

func (c *Conn) ID() domain.PeerID { return c.id }

func (c *Conn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
