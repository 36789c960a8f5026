package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one chat message between two users. ID and Timestamp are
// assigned at persistence time; Delivered and Read only ever transition
// false to true.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Delivered bool      `json:"delivered"`
	Read      bool      `json:"read"`
}

type User struct {
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Event is the wire envelope for every frame exchanged over the realtime
// channel, in both directions.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ReadReceipt is the payload of a messagesRead event.
type ReadReceipt struct {
	MessageIDs []uuid.UUID `json:"messageIds"`
	Reader     string      `json:"reader"`
}

// TypingNotice is the payload of a userTyping event.
type TypingNotice struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// Client -> server event types.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "sendMessage"
	EventTyping       = "typing"
	EventMarkAsRead   = "markAsRead"
)

// Server -> client event types.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "authError"
	EventNewMessage    = "newMessage"
	EventMessageSent   = "messageSent"
	EventMessageError  = "messageError"
	EventMessagesRead  = "messagesRead"
	EventUserOnline    = "userOnline"
	EventUserOffline   = "userOffline"
	EventUserTyping    = "userTyping"
)

// JournalEvent is the record shape published to the audit stream.
type JournalEvent struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal event types.
const (
	EventTypeMessageCreated = "MESSAGE_CREATED"
	EventTypeMessageRead    = "MESSAGE_READ"
	EventTypeUserOnline     = "USER_ONLINE"
	EventTypeUserOffline    = "USER_OFFLINE"
)
