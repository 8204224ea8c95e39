// Package surface renders slot assignments to overlay clients. The [Stage]
// accumulates attach/move/detach effects into slot records; the [Server]
// streams versioned JSON snapshots to websocket subscribers (typically a
// browser source in OBS).
package surface

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/stagehand/internal/roster"
)

// MaxVisiblePerSide caps how many slots per side an overlay renders. Slots
// beyond the cap stay assigned but are reported hidden.
const MaxVisiblePerSide = 4

// Slot is one rendered position on the overlay.
type Slot struct {
	Name       string `json:"name"`
	Side       string `json:"side"` // "left", "right", "focus"
	Index      int    `json:"index"`
	Expression string `json:"expression,omitempty"`
	Sprite     string `json:"sprite,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
}

// Snapshot is the full overlay state at one revision. Revisions increase by
// one per publish; clients discard anything older than what they hold.
type Snapshot struct {
	Revision     uint64 `json:"revision"`
	TransitionMS int64  `json:"transition_ms"`
	Slots        []Slot `json:"slots"`
}

// Compile-time check that *Stage satisfies [roster.Surface].
var _ roster.Surface = (*Stage)(nil)

// Stage is the slot record keeper behind the overlay. It satisfies
// [roster.Surface], so a roster engine drives it directly. Safe for
// concurrent use.
type Stage struct {
	mu    sync.Mutex
	slots map[*slotToken]*Slot
}

// slotToken is the opaque handle identity for one attached name.
type slotToken struct{ name string }

// NewStage returns an empty Stage.
func NewStage() *Stage {
	return &Stage{slots: make(map[*slotToken]*Slot)}
}

// Attach implements [roster.Surface.Attach].
func (s *Stage) Attach(name string, side roster.Side, slot int) roster.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := &slotToken{name: name}
	s.slots[tok] = &Slot{Name: name, Side: sideName(side), Index: slot}
	return tok
}

// Move implements [roster.Surface.Move].
func (s *Stage) Move(h roster.Handle, name string, side roster.Side, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := h.(*slotToken)
	if !ok {
		slog.Error("surface: move with foreign handle", "name", name)
		return
	}
	rec, ok := s.slots[tok]
	if !ok {
		slog.Error("surface: move for unattached handle", "name", name)
		return
	}
	rec.Side = sideName(side)
	rec.Index = slot
}

// Detach implements [roster.Surface.Detach].
func (s *Stage) Detach(h roster.Handle, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := h.(*slotToken)
	if !ok {
		slog.Error("surface: detach with foreign handle", "name", name)
		return
	}
	delete(s.slots, tok)
}

// SetExpression records the expression and sprite reference for name's slot.
// Unknown names are ignored; classification can outlive a departure.
func (s *Stage) SetExpression(name, expr, sprite string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.slots {
		if strings.EqualFold(rec.Name, name) {
			rec.Expression = expr
			rec.Sprite = sprite
			return
		}
	}
}

// Slots returns the current slot records ordered focus first, then left and
// right by index. Slots past [MaxVisiblePerSide] on a side are marked hidden.
func (s *Stage) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Slot, 0, len(s.slots))
	for _, rec := range s.slots {
		slot := *rec
		slot.Hidden = slot.Side != "focus" && slot.Index >= MaxVisiblePerSide
		out = append(out, slot)
	}

	slices.SortFunc(out, func(a, b Slot) int {
		if a.Side != b.Side {
			return sideRank(a.Side) - sideRank(b.Side)
		}
		return a.Index - b.Index
	})
	return out
}

func sideName(side roster.Side) string {
	switch side {
	case roster.SideLeft:
		return "left"
	case roster.SideRight:
		return "right"
	default:
		return "focus"
	}
}

func sideRank(side string) int {
	switch side {
	case "focus":
		return 0
	case "left":
		return 1
	default:
		return 2
	}
}
