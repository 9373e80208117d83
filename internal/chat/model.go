package chat

import (
	"encoding/json"
	"time"
)

// Status is the delivery state of a message. Transitions are monotonic:
// sent -> delivered -> read, enforced at the persistence layer.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Inbound event types (client -> server).
const (
	EventJoin         = "join"
	EventMessageSend  = "message:send"
	EventMessagesRead = "messages:read"
	EventTypingStart  = "typing:start"
	EventTypingStop   = "typing:stop"
)

// Outbound event types (server -> client). The typing events share names
// with their inbound counterparts.
const (
	EventUserStatus    = "user:status"
	EventMessageNew    = "message:new"
	EventMessageStatus = "message:status"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	Status         Status    `json:"status"`
	ReplyTo        *string   `json:"replyTo,omitempty"`
	ReplySnippet   *string   `json:"replySnippet,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Envelope is the wire frame for every websocket event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads.

type joinPayload struct {
	RecipientID string `json:"recipientId"`
}

type sendPayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

type readPayload struct {
	SenderID string `json:"senderId"`
}

type typingPayload struct {
	RecipientID string `json:"recipientId"`
}

// Outbound payloads.

type statusEvent struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}

type messageStatusEvent struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}

type typingEvent struct {
	UserID string `json:"userId"`
}
