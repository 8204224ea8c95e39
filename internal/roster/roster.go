// Package roster maintains the stage roster: the ordered list of tracked
// participants and their assignment to the capacity-bounded left and right
// slot groups. Every refresh reconciles the previous assignment against a
// freshly resolved presence list, keeping visual slots stable for names
// that stay present.
package roster

// Side identifies a visual slot group.
type Side string

const (
	// SideLeft and SideRight are the two capacity-bounded groups.
	SideLeft  Side = "left"
	SideRight Side = "right"

	// SideFocus holds the single most-recently-arrived participant.
	SideFocus Side = "focus"
)

// Handle is the externally owned token for one visible slot. The engine
// stores handles opaquely and hands them back to the surface on detach.
type Handle any

// Surface receives the visual effects of roster reconciliation. The surface
// owns placement, animation, and the handle values; the engine only signals
// what changed. Implementations must tolerate being called once per effect
// per refresh.
type Surface interface {
	// Attach creates a slot for a newly placed name and returns its handle.
	Attach(name string, side Side, slot int) Handle

	// Move re-positions an existing slot, keeping its identity.
	Move(h Handle, name string, side Side, slot int)

	// Detach removes a slot. Called when a name leaves the roster or is
	// evicted after a capacity shrink.
	Detach(h Handle, name string)
}

// Capacities bounds the two slot groups. -1 means unbounded.
type Capacities struct {
	Left  int
	Right int
}

// Snapshot is a copy of the roster state taken after a refresh. External
// readers must go through snapshots; the live state belongs to the engine.
type Snapshot struct {
	// Names is the full tracked list, in arrival order.
	Names []string

	// Left and Right are the assigned groups, in assignment order.
	Left  []string
	Right []string

	// Current is the focus participant, empty when none.
	Current string
}
