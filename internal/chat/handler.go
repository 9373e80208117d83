package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dmchat/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (dev mode)
	},
}

// TokenVerifier is the slice of the user service the websocket handshake
// needs, mirroring the interface the HTTP middleware consumes.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (string, error)
}

type Handler struct {
	hub       *Hub
	presence  *Registry
	lifecycle *Lifecycle
	typing    *TypingRelay
	verifier  TokenVerifier
	repo      *Repository
	unread    *UnreadCache
}

func NewHandler(hub *Hub, presence *Registry, lifecycle *Lifecycle, typing *TypingRelay, verifier TokenVerifier, repo *Repository, unread *UnreadCache) *Handler {
	return &Handler{
		hub:       hub,
		presence:  presence,
		lifecycle: lifecycle,
		typing:    typing,
		verifier:  verifier,
		repo:      repo,
		unread:    unread,
	}
}

// ServeWs is the channel-open handshake. The credential is verified before
// the upgrade, so a refused connection never touches the presence registry.
// Once the identity is known the connection is registered, the dispatch
// table bound, and the router moved to its authenticated state before the
// read pump starts.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	userID, err := h.verifier.VerifyToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		OpenedAt: time.Now(),
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBufSize),
		router:   NewRouter(),
	}
	client.onClose = func() {
		h.presence.Disconnect(context.Background(), userID, client.ID)
	}

	h.bindRoutes(client)
	h.hub.Register(client)
	h.presence.Connect(r.Context(), userID, client.ID)
	client.router.Authenticate()

	go client.writePump()
	go client.readPump()
}

// bindRoutes builds the per-connection dispatch table: one handler per
// inbound event type, each closed over the owning client.
func (h *Handler) bindRoutes(c *Client) {
	c.router.Handle(EventJoin, func(ctx context.Context, data json.RawMessage) error {
		var p joinPayload
		if err := json.Unmarshal(data, &p); err != nil || p.RecipientID == "" {
			return fmt.Errorf("%w: join needs a recipientId", ErrInvalidPayload)
		}
		h.hub.Join(c, RoomName(c.UserID, p.RecipientID))
		return nil
	})

	c.router.Handle(EventMessageSend, func(ctx context.Context, data json.RawMessage) error {
		var p sendPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := h.lifecycle.Create(ctx, c.UserID, p.RecipientID, p.Content, p.ReplyTo)
		return err
	})

	c.router.Handle(EventMessagesRead, func(ctx context.Context, data json.RawMessage) error {
		var p readPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := h.lifecycle.MarkAllRead(ctx, c.UserID, p.SenderID)
		return err
	})

	c.router.Handle(EventTypingStart, func(ctx context.Context, data json.RawMessage) error {
		var p typingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil // typing is best-effort, drop silently
		}
		h.typing.Start(c.UserID, p.RecipientID)
		return nil
	})

	c.router.Handle(EventTypingStop, func(ctx context.Context, data json.RawMessage) error {
		var p typingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil
		}
		h.typing.Stop(c.UserID, p.RecipientID)
		return nil
	})
}

// GetConversationMessages serves the history between the caller and a peer,
// oldest first.
func (h *Handler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := r.Context().Value(middleware.UserKey).(string)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	peerID := chi.URLParam(r, "peerID")
	if peerID == "" {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	msgs, err := h.repo.FindMessagesBetween(r.Context(), callerID, peerID)
	if err != nil {
		http.Error(w, "failed to fetch messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

// GetUnreadCount serves the caller's unread count for one peer from the
// Redis cache, falling back to Postgres on a miss.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	callerID, ok := r.Context().Value(middleware.UserKey).(string)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	peerID := chi.URLParam(r, "peerID")
	if peerID == "" {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	count, err := h.unread.Count(r.Context(), callerID, peerID)
	if err != nil {
		http.Error(w, "failed to fetch unread count", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"count": count})
}
