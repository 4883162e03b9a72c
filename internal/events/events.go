package events

import (
	"context"
	"sync"
	"time"
)

// Type identifies the kind of group activity being broadcast.
type Type string

const (
	TypeMemberJoined     Type = "membro.entrou"
	TypeGoalCreated      Type = "meta.criada"
	TypeGoalUpdated      Type = "meta.atualizada"
	TypeGoalDeleted      Type = "meta.removida"
	TypeSmallGoalToggled Type = "meta-pequena.alternada"
)

// Event describes a single piece of group activity for the live feed.
type Event struct {
	GroupID   string    `json:"grupoId"`
	Type      Type      `json:"tipo"`
	ActorID   string    `json:"userId"`
	GoalID    string    `json:"metaId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs group activity to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	groupID string
	ch      chan Event
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one group's activity and returns a
// channel which will receive events. The channel is closed when the provided
// context ends.
func (s *Stream) Subscribe(ctx context.Context, groupID string) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{groupID: groupID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers of its group.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.groupID != evt.GroupID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports how many clients are currently attached.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
