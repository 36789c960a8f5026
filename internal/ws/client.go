package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat_relay/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var errSessionClosed = errors.New("session closed")
var errSendBufferFull = errors.New("send buffer full")

// Client is one live connection. It implements registry.Session; the
// registry holds it (keyed by username) only between a successful
// authenticate event and disconnect.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool

	// Set by a successful authenticate event, empty before that.
	username string
	userID   string
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Deliver marshals the event and hands it to the write pump without
// blocking. A full buffer counts as a failed hand-off; the caller decides
// what that means.
func (c *Client) Deliver(eventType string, payload any) error {
	data, err := json.Marshal(domain.Event{Type: eventType, Payload: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSessionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close shuts down the write pump. Idempotent; also called on a superseded
// session when the same user authenticates on a new connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Debug("websocket read error", "error", err)
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs in the read pump goroutine, so events from one connection
// are handled strictly in arrival order.
func (c *Client) dispatch(data []byte) {
	var ev struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		c.server.log.Warn("malformed frame", "error", err)
		return
	}

	if ev.Type == domain.EventAuthenticate {
		c.handleAuthenticate(ev.Payload)
		return
	}
	if c.username == "" {
		c.server.log.Warn("event from unauthenticated connection dropped", "type", ev.Type)
		return
	}

	switch ev.Type {
	case domain.EventSendMessage:
		c.handleSendMessage(ev.Payload)
	case domain.EventTyping:
		c.handleTyping(ev.Payload)
	case domain.EventMarkAsRead:
		c.handleMarkAsRead(ev.Payload)
	default:
		c.server.log.Warn("unknown event type", "type", ev.Type)
	}
}

func (c *Client) handleAuthenticate(payload json.RawMessage) {
	var token string
	if err := json.Unmarshal(payload, &token); err != nil {
		c.Deliver(domain.EventAuthError, "Invalid token")
		return
	}

	claims, err := c.server.auth.Validate(token)
	if err != nil {
		// The connection stays open and unauthenticated; the client may
		// retry with a fresh token.
		c.Deliver(domain.EventAuthError, "Invalid token")
		return
	}

	if c.username != "" {
		// Already authenticated on this connection; registry state is
		// unchanged, so no presence transition to announce.
		c.Deliver(domain.EventAuthenticated, nil)
		return
	}

	c.username = claims.Username
	c.userID = claims.UserID

	prior := c.server.registry.Register(c.username, c)
	if prior != nil {
		// Duplicate login: the new connection supersedes the old one and
		// the old one is force-closed so it cannot keep receiving
		// broadcasts.
		prior.Close()
	} else {
		c.server.presence.Announce(c.username, true)
		c.server.journal.Record(domain.EventTypeUserOnline, c.username)
	}

	if err := c.server.users.SetOnline(context.Background(), c.username, true); err != nil {
		c.server.log.Warn("failed to set online status", "user", c.username, "error", err)
	}

	c.Deliver(domain.EventAuthenticated, nil)
	c.server.log.Info("client authenticated", "user", c.username)
}

func (c *Client) handleSendMessage(payload json.RawMessage) {
	var p struct {
		Receiver string `json:"receiver"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Receiver == "" || p.Message == "" {
		c.Deliver(domain.EventMessageError, "Failed to send message")
		return
	}

	msg, err := c.server.router.Send(context.Background(), c.username, p.Receiver, p.Message)
	if err != nil {
		c.server.log.Error("send failed", "sender", c.username, "receiver", p.Receiver, "error", err)
		c.Deliver(domain.EventMessageError, "Failed to send message")
		return
	}
	c.Deliver(domain.EventMessageSent, msg)
}

func (c *Client) handleTyping(payload json.RawMessage) {
	var p struct {
		Receiver string `json:"receiver"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	c.server.presence.RelayTyping(c.username, p.Receiver, p.IsTyping)
}

func (c *Client) handleMarkAsRead(payload json.RawMessage) {
	var p struct {
		MessageIDs []uuid.UUID `json:"messageIds"`
		Sender     string      `json:"sender"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || len(p.MessageIDs) == 0 {
		return
	}
	if err := c.server.router.MarkRead(context.Background(), c.username, p.MessageIDs, p.Sender); err != nil {
		c.server.log.Error("mark as read failed", "reader", c.username, "error", err)
	}
}

// disconnect runs once when the read pump exits. Only the connection that
// still owns the registry entry announces the offline transition; a
// superseded connection closing later must not.
func (c *Client) disconnect() {
	if c.username == "" {
		return
	}
	if !c.server.registry.Release(c.username, c) {
		return
	}

	c.server.presence.Announce(c.username, false)
	c.server.journal.Record(domain.EventTypeUserOffline, c.username)
	if err := c.server.users.SetOnline(context.Background(), c.username, false); err != nil {
		c.server.log.Warn("failed to set offline status", "user", c.username, "error", err)
	}
	c.server.log.Info("client disconnected", "user", c.username)
}
