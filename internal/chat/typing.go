package chat

import (
	"sync"
	"time"
)

// DefaultTypingExpiry bounds how long a typing indicator can live without a
// refresh. A lost typing:stop never wedges the indicator: the relay
// synthesizes one when the actor goes silent.
const DefaultTypingExpiry = 2 * time.Second

// TypingRelay forwards ephemeral typing signals to the conversation room,
// always excluding the actor's own connections. Nothing is persisted and a
// malformed target is ignored; typing is best-effort.
type TypingRelay struct {
	emit   Emitter
	expiry time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTypingRelay(emit Emitter, expiry time.Duration) *TypingRelay {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingRelay{
		emit:   emit,
		expiry: expiry,
		timers: make(map[string]*time.Timer),
	}
}

// Start relays typing:start to the room and (re)arms the expiry timer for
// this actor/target pair.
func (t *TypingRelay) Start(actorID, targetID string) {
	if targetID == "" {
		return
	}
	key := actorID + ">" + targetID

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.expiry, func() {
		t.expire(actorID, targetID)
	})
	t.mu.Unlock()

	room := RoomName(actorID, targetID)
	t.emit.ToRoomExcept(room, actorID, EventTypingStart, typingEvent{UserID: actorID})
}

// Stop cancels any pending expiry and relays typing:stop.
func (t *TypingRelay) Stop(actorID, targetID string) {
	if targetID == "" {
		return
	}
	key := actorID + ">" + targetID

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	room := RoomName(actorID, targetID)
	t.emit.ToRoomExcept(room, actorID, EventTypingStop, typingEvent{UserID: actorID})
}

// expire fires when the actor went silent past the expiry window. The map
// entry doubles as the emit guard: if an explicit stop raced in first, the
// entry is gone and nothing fires twice.
func (t *TypingRelay) expire(actorID, targetID string) {
	key := actorID + ">" + targetID

	t.mu.Lock()
	if _, ok := t.timers[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	room := RoomName(actorID, targetID)
	t.emit.ToRoomExcept(room, actorID, EventTypingStop, typingEvent{UserID: actorID})
}
