package transcript

import (
	"context"
	"sync"
)

// Compile-time check that *Ring satisfies [Provider].
var _ Provider = (*Ring)(nil)

// defaultRingCapacity bounds the retained transcript when no explicit
// capacity is given.
const defaultRingCapacity = 200

// Ring is an in-memory, capacity-bounded [Provider]. It backs tests and
// embeddings that feed messages programmatically; the Discord provider is
// used in production.
type Ring struct {
	mu           sync.RWMutex
	capacity     int
	messages     []Message
	participants []string
}

// NewRing returns a Ring retaining at most capacity messages. A
// non-positive capacity selects the default of 200.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Ring{capacity: capacity}
}

// Append adds msg as the newest transcript entry, evicting the oldest entry
// when the ring is full.
func (r *Ring) Append(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if len(r.messages) > r.capacity {
		r.messages = r.messages[len(r.messages)-r.capacity:]
	}
}

// SetParticipants replaces the master name list.
func (r *Ring) SetParticipants(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append([]string(nil), names...)
}

// Messages implements [Provider.Messages].
func (r *Ring) Messages(_ context.Context) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Message(nil), r.messages...), nil
}

// Last implements [Provider.Last].
func (r *Ring) Last(_ context.Context) (Message, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if !r.messages[i].IsSystem {
			return r.messages[i], true, nil
		}
	}
	return Message{}, false, nil
}

// Participants implements [Provider.Participants].
func (r *Ring) Participants(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.participants...), nil
}
