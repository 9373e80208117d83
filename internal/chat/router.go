package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
)

// errNotAuthenticated is returned by Dispatch for any event arriving before
// the connection's identity was verified. It is fatal to the connection.
var errNotAuthenticated = errors.New("event received before authentication")

// HandlerFunc processes one inbound event's payload.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

// Router is the per-connection dispatch table. It has two states: a
// connection starts unauthenticated, where every event is rejected, and
// moves to authenticated exactly once, after the handshake credential has
// been verified and the connection registered. The table is built and the
// state flipped before the read pump starts, so Dispatch needs no locking:
// only the read pump calls it.
type Router struct {
	authenticated bool
	handlers      map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle binds an inbound event type to its handler.
func (r *Router) Handle(event string, fn HandlerFunc) {
	r.handlers[event] = fn
}

// Authenticate marks the connection's identity as verified. There is no way
// back to the unauthenticated state.
func (r *Router) Authenticate() {
	r.authenticated = true
}

// Dispatch routes one raw inbound frame. Malformed frames and unrecognized
// event types are dropped, not fatal; handler errors are surfaced to the
// caller for logging but keep the connection open. Only pre-authentication
// traffic returns an error that closes the connection.
func (r *Router) Dispatch(ctx context.Context, raw []byte) error {
	if !r.authenticated {
		return errNotAuthenticated
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("dropping malformed frame: %v", err)
		return nil
	}
	if env.Event == "" {
		log.Printf("dropping frame without an event type")
		return nil
	}

	fn, ok := r.handlers[env.Event]
	if !ok {
		log.Printf("ignoring unknown event type %q", env.Event)
		return nil
	}

	if err := fn(ctx, env.Data); err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			log.Printf("dropping %s: %v", env.Event, err)
			return nil
		}
		return err
	}
	return nil
}
