// Package mock provides a recording [roster.Surface] for tests.
package mock

import (
	"fmt"
	"sync"

	"github.com/MrWong99/stagehand/internal/roster"
)

// Compile-time check that *Surface satisfies [roster.Surface].
var _ roster.Surface = (*Surface)(nil)

// Event records one surface effect.
type Event struct {
	Op   string // "attach", "move", "detach"
	Name string
	Side roster.Side
	Slot int
}

// Surface records every effect the engine emits. Safe for concurrent use.
type Surface struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

// handle is the opaque token this surface hands out.
type handle struct {
	id   int
	name string
}

// Attach implements [roster.Surface.Attach].
func (s *Surface) Attach(name string, side roster.Side, slot int) roster.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.events = append(s.events, Event{Op: "attach", Name: name, Side: side, Slot: slot})
	return &handle{id: s.nextID, name: name}
}

// Move implements [roster.Surface.Move].
func (s *Surface) Move(h roster.Handle, name string, side roster.Side, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Op: "move", Name: name, Side: side, Slot: slot})
}

// Detach implements [roster.Surface.Detach].
func (s *Surface) Detach(h roster.Handle, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hh, ok := h.(*handle)
	if !ok || hh.name != name {
		panic(fmt.Sprintf("mock: detach with foreign handle for %q", name))
	}
	s.events = append(s.events, Event{Op: "detach", Name: name})
}

// Events returns a copy of all recorded effects in order.
func (s *Surface) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Reset clears the recorded effects.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
