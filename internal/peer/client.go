// Package peer is the client side of the coordination protocol: one live
// websocket to the hub, automatic reconnection with a fresh identity, and
// helpers for uploading and downloading share payloads.
package peer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"flowshare/internal/protocol"
)

var ErrNotConnected = errors.New("not connected to hub")

const eventBufferSize = 256

type Client struct {
	config Config
	logger *logrus.Logger
	httpc  *http.Client
	codec  *protocol.Codec
	events chan protocol.Message
	done   chan struct{}

	// wmu serializes websocket writes; gorilla allows one writer at a time.
	wmu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	userID    string
	character string
	users     []protocol.UserInfo
	closed    bool
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	return &Client{
		config: cfg,
		logger: cfg.Logger,
		httpc:  &http.Client{},
		codec:  protocol.NewCodec(),
		events: make(chan protocol.Message, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// Events streams every message the hub delivers, after the client has folded
// it into its own view of identity and presence.
func (c *Client) Events() <-chan protocol.Message {
	return c.events
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) Character() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.character
}

// Users returns the latest presence list delivered by the hub.
func (c *Client) Users() []protocol.UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.UserInfo, len(c.users))
	copy(out, c.users)
	return out
}

// Run keeps the client connected until ctx is cancelled or Close is called.
// Every unexpected disconnect schedules exactly one reconnection attempt
// after the fixed delay, and each attempt is a brand-new peer: fresh id,
// fresh name, empty chat state.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			c.logger.WithError(err).Warn("Connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

// Close tears the client down for good; Run returns and no reconnection is
// attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) runOnce(ctx context.Context) error {
	userID := uuid.NewString()
	wsURL := httpToWS(c.config.ServerURL) + "/api/ws/" + userID

	c.logger.WithField("url", wsURL).Info("Connecting to hub")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return conn.Close()
	}
	c.conn = conn
	c.userID = userID
	c.character = ""
	c.users = nil
	c.mu.Unlock()

	c.logger.WithField("user_id", userID).Info("Connected to hub")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.WithError(err).Warn("Dropping malformed frame")
			continue
		}

		c.apply(msg)
		c.publish(msg)
	}
}

// apply folds service messages into the client's local view.
func (c *Client) apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.CharacterAssigned:
		c.mu.Lock()
		c.character = m.Character
		c.mu.Unlock()
		c.logger.WithField("character", m.Character).Info("Identity assigned")
	case *protocol.UserListUpdate:
		c.mu.Lock()
		c.users = m.Users
		c.mu.Unlock()
	}
}

func (c *Client) publish(msg protocol.Message) {
	select {
	case c.events <- msg:
	default:
		c.logger.WithField("type", msg.Type().String()).Warn("Event buffer full, dropping")
	}
}

func (c *Client) send(msg protocol.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Share asks the hub to fan a share out to the given peers.
func (c *Client) Share(toUserIDs []string, data protocol.ShareData) error {
	return c.send(&protocol.ShareNotification{ToUserIDs: toUserIDs, ShareData: data})
}

func (c *Client) RequestChat(toUserID string) error {
	return c.send(&protocol.ChatRequest{ToUserID: toUserID})
}

func (c *Client) AcceptChat(toUserID string) error {
	return c.send(&protocol.ChatAccept{ToUserID: toUserID})
}

func (c *Client) DeclineChat(toUserID string) error {
	return c.send(&protocol.ChatDecline{ToUserID: toUserID})
}

func (c *Client) SendPrivateMessage(toUserID, content string) error {
	return c.send(&protocol.PrivateMessage{ToUserID: toUserID, Content: content})
}

func httpToWS(base string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasPrefix(base, "https://") {
		return "wss://" + strings.TrimPrefix(base, "https://")
	}
	return "ws://" + strings.TrimPrefix(base, "http://")
}
