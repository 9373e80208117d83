package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPayload marks a malformed inbound event: missing recipient,
// blank content, and the like. The event is dropped; the connection stays
// open.
var ErrInvalidPayload = errors.New("invalid payload")

// PersistenceError wraps a failed store call. The transition that triggered
// it is neither applied in memory nor emitted, so clients only ever see
// state the store durably recorded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MessageStore is the slice of the repository the lifecycle needs. The
// Mark* methods report whether the row actually transitioned, so the status
// machine stays monotonic under concurrent delivery and read acks.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	MarkDelivered(ctx context.Context, id string) (bool, error)
	MarkRead(ctx context.Context, id string) (bool, error)
	FindUnread(ctx context.Context, senderID, recipientID string) ([]*Message, error)
}

// PresenceReader answers the point-in-time online check used to pick a new
// message's initial status.
type PresenceReader interface {
	IsOnline(userID string) bool
}

// UnreadCounter maintains per-conversation unread tallies. Counter upkeep
// is best-effort: failures are logged, never surfaced.
type UnreadCounter interface {
	Increment(ctx context.Context, senderID, recipientID string) error
	Clear(ctx context.Context, readerID, senderID string) error
}

const replySnippetLen = 80

// Lifecycle owns message creation and the sent -> delivered -> read state
// machine. Every transition persists first and emits only after the store
// call succeeds.
type Lifecycle struct {
	store    MessageStore
	presence PresenceReader
	emit     Emitter
	unread   UnreadCounter
}

func NewLifecycle(store MessageStore, presence PresenceReader, emit Emitter, unread UnreadCounter) *Lifecycle {
	return &Lifecycle{
		store:    store,
		presence: presence,
		emit:     emit,
		unread:   unread,
	}
}

// Create validates and persists a new message with status sent, emits
// message:new to the conversation room, and — when the recipient has a live
// connection at this moment — immediately runs the delivered transition, so
// a single call can yield either status. The presence check is a snapshot:
// a message that misses a just-connected recipient stays sent until the
// next read acknowledgment corrects it.
func (l *Lifecycle) Create(ctx context.Context, senderID, recipientID, content, replyTo string) (*Message, error) {
	if recipientID == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: recipient and content are required", ErrInvalidPayload)
	}

	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: RoomName(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Status:         StatusSent,
		CreatedAt:      time.Now().UTC(),
	}

	if replyTo != "" {
		// A dangling reference degrades to a plain message.
		if ref, err := l.store.GetMessage(ctx, replyTo); err == nil {
			snippet := truncate(ref.Content, replySnippetLen)
			m.ReplyTo = &ref.ID
			m.ReplySnippet = &snippet
		}
	}

	if err := l.store.CreateMessage(ctx, m); err != nil {
		return nil, &PersistenceError{Op: "create message", Err: err}
	}

	if err := l.unread.Increment(ctx, senderID, recipientID); err != nil {
		log.Printf("unread counter for %s from %s: %v", recipientID, senderID, err)
	}

	l.emit.ToRoom(m.ConversationID, EventMessageNew, m)

	if l.presence.IsOnline(recipientID) {
		if _, err := l.MarkDelivered(ctx, m); err != nil {
			return m, err
		}
	}
	return m, nil
}

// MarkDelivered advances a message from sent to delivered. A message that
// is already delivered or read is left alone and nothing is emitted; a
// duplicate delivery check must never regress status.
func (l *Lifecycle) MarkDelivered(ctx context.Context, m *Message) (bool, error) {
	updated, err := l.store.MarkDelivered(ctx, m.ID)
	if err != nil {
		return false, &PersistenceError{Op: "mark delivered", Err: err}
	}
	if !updated {
		return false, nil
	}
	m.Status = StatusDelivered
	l.emit.ToRoom(m.ConversationID, EventMessageStatus, messageStatusEvent{MessageID: m.ID, Status: StatusDelivered})
	return true, nil
}

// MarkRead advances a message from sent or delivered to read.
func (l *Lifecycle) MarkRead(ctx context.Context, m *Message) (bool, error) {
	updated, err := l.store.MarkRead(ctx, m.ID)
	if err != nil {
		return false, &PersistenceError{Op: "mark read", Err: err}
	}
	if !updated {
		return false, nil
	}
	m.Status = StatusRead
	l.emit.ToRoom(m.ConversationID, EventMessageStatus, messageStatusEvent{MessageID: m.ID, Status: StatusRead})
	return true, nil
}

// MarkAllRead transitions every unread message from otherID to readerID and
// emits one message:status per message that actually moved. Calling it
// again right away finds nothing unread and emits nothing.
func (l *Lifecycle) MarkAllRead(ctx context.Context, readerID, otherID string) (int, error) {
	if otherID == "" {
		return 0, fmt.Errorf("%w: sender is required", ErrInvalidPayload)
	}

	msgs, err := l.store.FindUnread(ctx, otherID, readerID)
	if err != nil {
		return 0, &PersistenceError{Op: "scan unread", Err: err}
	}

	transitioned := 0
	for _, m := range msgs {
		updated, err := l.MarkRead(ctx, m)
		if err != nil {
			return transitioned, err
		}
		if updated {
			transitioned++
		}
	}

	if err := l.unread.Clear(ctx, readerID, otherID); err != nil {
		log.Printf("clear unread counter for %s from %s: %v", readerID, otherID, err)
	}
	return transitioned, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
