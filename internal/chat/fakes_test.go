package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// emittedEvent records one call to the fake emitter.
type emittedEvent struct {
	Room      string
	Except    string
	Event     string
	Data      any
	Broadcast bool
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (f *fakeEmitter) ToRoom(room, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Room: room, Event: event, Data: data})
}

func (f *fakeEmitter) ToRoomExcept(room, exceptUserID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Room: room, Except: exceptUserID, Event: event, Data: data})
}

func (f *fakeEmitter) Broadcast(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{Event: event, Data: data, Broadcast: true})
}

func (f *fakeEmitter) byEvent(event string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("store down")

// fakeMessageStore is an in-memory MessageStore whose Mark* methods apply
// the same compare-and-set rules as the SQL repository.
type fakeMessageStore struct {
	mu         sync.Mutex
	messages   map[string]*Message
	failCreate bool
	failUpdate bool
	failScan   bool
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*Message)}
}

func (s *fakeMessageStore) CreateMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errStoreDown
	}
	stored := *m
	s.messages[m.ID] = &stored
	return nil
}

func (s *fakeMessageStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeMessageStore) MarkDelivered(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return false, errStoreDown
	}
	m, ok := s.messages[id]
	if !ok || m.Status != StatusSent {
		return false, nil
	}
	m.Status = StatusDelivered
	return true, nil
}

func (s *fakeMessageStore) MarkRead(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return false, errStoreDown
	}
	m, ok := s.messages[id]
	if !ok || m.Status == StatusRead {
		return false, nil
	}
	m.Status = StatusRead
	return true, nil
}

func (s *fakeMessageStore) FindUnread(ctx context.Context, senderID, recipientID string) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failScan {
		return nil, errStoreDown
	}
	var out []*Message
	for _, m := range s.messages {
		if m.SenderID == senderID && m.RecipientID == recipientID && m.Status != StatusRead {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeMessageStore) status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		return m.Status
	}
	return ""
}

// fakePresence answers IsOnline from a fixed set.
type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(userID string) bool { return f.online[userID] }

// noopUnread satisfies UnreadCounter without Redis.
type noopUnread struct{}

func (noopUnread) Increment(ctx context.Context, senderID, recipientID string) error { return nil }
func (noopUnread) Clear(ctx context.Context, readerID, senderID string) error        { return nil }

// fakePresenceStore records SetOnline calls for the registry tests.
type fakePresenceStore struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakePresenceStore) SetOnline(ctx context.Context, userID string, online bool, lastSeen *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, online)
	return nil
}

func (f *fakePresenceStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
