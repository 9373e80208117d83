package chat

import (
	"context"
	"database/sql"
	"errors"
)

var ErrMessageNotFound = errors.New("message not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	query := `INSERT INTO messages
	          (id, conversation_id, sender_id, recipient_id, content, status,
	           reply_to, reply_snippet, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.SenderID, m.RecipientID, m.Content,
		m.Status, m.ReplyTo, m.ReplySnippet, m.CreatedAt)
	return err
}

func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	m := &Message{}
	query := `SELECT id, conversation_id, sender_id, recipient_id, content,
	                 status, reply_to, reply_snippet, created_at
	          FROM messages WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content,
		&m.Status, &m.ReplyTo, &m.ReplySnippet, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// MarkDelivered is a compare-and-set: only a message still in sent moves.
// It reports whether the row transitioned, so concurrent delivery checks
// can never regress or double-report a status.
func (r *Repository) MarkDelivered(ctx context.Context, id string) (bool, error) {
	query := `UPDATE messages SET status = 'delivered'
	          WHERE id = $1 AND status = 'sent'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRead moves a message from sent or delivered to read.
func (r *Repository) MarkRead(ctx context.Context, id string) (bool, error) {
	query := `UPDATE messages SET status = 'read'
	          WHERE id = $1 AND status IN ('sent', 'delivered')`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindUnread returns the sender's messages to the recipient that are not
// yet read, oldest first.
func (r *Repository) FindUnread(ctx context.Context, senderID, recipientID string) ([]*Message, error) {
	query := `SELECT id, conversation_id, sender_id, recipient_id, content,
	                 status, reply_to, reply_snippet, created_at
	          FROM messages
	          WHERE sender_id = $1 AND recipient_id = $2
	            AND status IN ('sent', 'delivered')
	          ORDER BY created_at`

	return r.queryMessages(ctx, query, senderID, recipientID)
}

// FindMessagesBetween returns the full history between two users in either
// direction, oldest first. History is keyed by the sender/recipient pair,
// not by the derived room name.
func (r *Repository) FindMessagesBetween(ctx context.Context, userA, userB string) ([]*Message, error) {
	query := `SELECT id, conversation_id, sender_id, recipient_id, content,
	                 status, reply_to, reply_snippet, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND recipient_id = $2)
	             OR (sender_id = $2 AND recipient_id = $1)
	          ORDER BY created_at`

	return r.queryMessages(ctx, query, userA, userB)
}

func (r *Repository) CountUnread(ctx context.Context, senderID, recipientID string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM messages
	          WHERE sender_id = $1 AND recipient_id = $2
	            AND status IN ('sent', 'delivered')`

	err := r.db.QueryRowContext(ctx, query, senderID, recipientID).Scan(&n)
	return n, err
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content,
			&m.Status, &m.ReplyTo, &m.ReplySnippet, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
