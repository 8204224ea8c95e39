package roster

import (
	"log/slog"
	"slices"
)

// Engine owns the roster state and reconciles it against each refreshed
// presence list. It is not safe for concurrent use: the stage director
// serializes all calls on one logical thread.
type Engine struct {
	names   []string
	left    []string
	right   []string
	current string
	handles map[string]Handle
	surface Surface
}

// NewEngine returns an empty Engine driving the given surface.
func NewEngine(surface Surface) *Engine {
	return &Engine{
		handles: make(map[string]Handle),
		surface: surface,
	}
}

// Refresh reconciles the roster against desired, the freshly resolved
// presence list, under the given capacities. The sequence is: remove
// departed names, shrink over-capacity sides into the overflow queue, add
// arrivals, re-place or evict the overflow, then backfill spare capacity
// from the unplaced remainder.
//
// Calling Refresh twice with the same desired list and capacities is a
// no-op the second time.
func (e *Engine) Refresh(desired []string, caps Capacities) {
	e.removeDeparted(desired)
	purgatory := e.shrink(caps)
	e.addArrivals(desired, caps)

	// Most recently displaced first; what still cannot fit is evicted, not
	// requeued.
	for _, name := range purgatory {
		if !e.place(name, caps) {
			e.evict(name)
		}
	}

	e.backfill(caps)
}

// Snapshot returns a copy of the current roster state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Names:   append([]string(nil), e.names...),
		Left:    append([]string(nil), e.left...),
		Right:   append([]string(nil), e.right...),
		Current: e.current,
	}
}

// Clear detaches every slot and resets the engine to its initial state.
// Called when the stage stops or restarts.
func (e *Engine) Clear() {
	for name, h := range e.handles {
		e.surface.Detach(h, name)
	}
	e.names = nil
	e.left = nil
	e.right = nil
	e.current = ""
	e.handles = make(map[string]Handle)
}

// removeDeparted drops every tracked name absent from desired, detaching
// its slot if it has one.
func (e *Engine) removeDeparted(desired []string) {
	want := make(map[string]struct{}, len(desired))
	for _, name := range desired {
		want[name] = struct{}{}
	}

	var removed []string
	for _, name := range e.names {
		if _, ok := want[name]; !ok {
			removed = append(removed, name)
		}
	}

	for _, name := range removed {
		if h, ok := e.handles[name]; ok {
			e.surface.Detach(h, name)
			delete(e.handles, name)
		} else if e.isPlaced(name) {
			// Internal bookkeeping lost the handle for a placed name. Log
			// the inconsistency and carry on; the refresh must not fail.
			slog.Error("roster: placed name has no handle", "name", name)
		}

		e.left = deleteName(e.left, name)
		e.right = deleteName(e.right, name)
		if e.current == name {
			e.current = ""
		}
		e.names = deleteName(e.names, name)
	}
}

// shrink pops the most recently appended names off any side exceeding its
// capacity and returns them, most recently displaced first.
func (e *Engine) shrink(caps Capacities) []string {
	var purgatory []string
	for caps.Left >= 0 && len(e.left) > caps.Left {
		purgatory = append(purgatory, e.left[len(e.left)-1])
		e.left = e.left[:len(e.left)-1]
	}
	for caps.Right >= 0 && len(e.right) > caps.Right {
		purgatory = append(purgatory, e.right[len(e.right)-1])
		e.right = e.right[:len(e.right)-1]
	}
	return purgatory
}

// addArrivals appends names new to the roster. The first arrival on an
// empty focus becomes current; the rest go through side selection and may
// remain unplaced when both sides are full.
func (e *Engine) addArrivals(desired []string, caps Capacities) {
	known := make(map[string]struct{}, len(e.names))
	for _, name := range e.names {
		known[name] = struct{}{}
	}

	for _, name := range desired {
		if _, ok := known[name]; ok {
			continue
		}
		known[name] = struct{}{}
		e.names = append(e.names, name)

		if e.current == "" {
			e.current = name
			e.handles[name] = e.surface.Attach(name, SideFocus, 0)
			continue
		}
		e.place(name, caps)
	}
}

// place assigns name to a side if capacity allows. Growth is biased to the
// side with fewer members, left-preferred on ties; a full right side also
// diverts to left. The asymmetry decides which side a participant lands on.
func (e *Engine) place(name string, caps Capacities) bool {
	leftFree := caps.Left < 0 || len(e.left) < caps.Left
	rightFree := caps.Right < 0 || len(e.right) < caps.Right
	rightFull := caps.Right >= 0 && len(e.right) >= caps.Right

	if leftFree && (len(e.left) <= len(e.right) || rightFull) {
		e.left = append(e.left, name)
		e.ensureSlot(name, SideLeft, len(e.left)-1)
		return true
	}
	if rightFree {
		e.right = append(e.right, name)
		e.ensureSlot(name, SideRight, len(e.right)-1)
		return true
	}
	return false
}

// ensureSlot moves an existing handle or attaches a fresh one.
func (e *Engine) ensureSlot(name string, side Side, slot int) {
	if h, ok := e.handles[name]; ok {
		e.surface.Move(h, name, side, slot)
		return
	}
	e.handles[name] = e.surface.Attach(name, side, slot)
}

// evict detaches a name's slot without removing it from the roster. The
// name stays tracked and may be re-placed by a later backfill.
func (e *Engine) evict(name string) {
	if h, ok := e.handles[name]; ok {
		e.surface.Detach(h, name)
		delete(e.handles, name)
	}
}

// backfill places unassigned tracked names, most recently added first,
// while either side has spare capacity.
func (e *Engine) backfill(caps Capacities) {
	placed := make(map[string]struct{}, len(e.left)+len(e.right)+1)
	for _, name := range e.left {
		placed[name] = struct{}{}
	}
	for _, name := range e.right {
		placed[name] = struct{}{}
	}
	if e.current != "" {
		placed[e.current] = struct{}{}
	}

	var queue []string
	for i := len(e.names) - 1; i >= 0; i-- {
		if _, ok := placed[e.names[i]]; !ok {
			queue = append(queue, e.names[i])
		}
	}

	for len(queue) > 0 && e.hasSpare(caps) {
		name := queue[0]
		queue = queue[1:]
		if !e.place(name, caps) {
			break
		}
	}
}

func (e *Engine) hasSpare(caps Capacities) bool {
	return caps.Left < 0 || len(e.left) < caps.Left ||
		caps.Right < 0 || len(e.right) < caps.Right
}

func (e *Engine) isPlaced(name string) bool {
	return slices.Contains(e.left, name) ||
		slices.Contains(e.right, name) ||
		e.current == name
}

func deleteName(list []string, name string) []string {
	if i := slices.Index(list, name); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}
