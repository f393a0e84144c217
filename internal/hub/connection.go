package hub

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"flowshare/internal/protocol"
)

const sendBufferSize = 64

var errConnClosed = errors.New("connection closed")

// Conn wraps one peer's websocket. Outbound messages go through a buffered
// channel drained by writePump, so senders never block on a slow socket; a
// full buffer or a closed connection turns into a send error the caller
// treats as the peer being offline.
type Conn struct {
	ws      *websocket.Conn
	peerID  string
	codec   *protocol.Codec
	logger  *slog.Logger
	sendCh  chan protocol.Message
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, peerID string, logger *slog.Logger) *Conn {
	return &Conn{
		ws:      ws,
		peerID:  peerID,
		codec:   protocol.NewCodec(),
		logger:  logger,
		sendCh:  make(chan protocol.Message, sendBufferSize),
		closeCh: make(chan struct{}),
	}
}

func (c *Conn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	return c.ws.Close()
}

func (c *Conn) writePump() {
	defer c.Close()

	for {
		select {
		case msg := <-c.sendCh:
			data, err := c.codec.Encode(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", "peer", c.peerID, "type", msg.Type(), "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed", "peer", c.peerID, "error", err)
				return
			}
		case <-c.closeCh:
			return
		}
	}
}
