package stage

import (
	"context"
	"slices"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/MrWong99/stagehand/internal/expression"
	"github.com/MrWong99/stagehand/internal/roster"
	"github.com/MrWong99/stagehand/internal/sprite"
	"github.com/MrWong99/stagehand/internal/surface"
	"github.com/MrWong99/stagehand/internal/transcript"
)

// fakeRenderer records every published slot list.
type fakeRenderer struct {
	mu        sync.Mutex
	published [][]surface.Slot
}

func (f *fakeRenderer) Publish(slots []surface.Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, slots)
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func unboundedSettings() Settings {
	return Settings{
		Enabled:      true,
		Capacities:   roster.Capacities{Left: -1, Right: -1},
		Interval:     time.Second,
		Debounce:     10 * time.Millisecond,
		RestartDelay: 0,
	}
}

func newTestDirector(t *testing.T, ring *transcript.Ring, s Settings, opts ...Option) (*Director, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	d := NewDirector(ring, surface.NewStage(), r, expression.NewMemStore(), s, opts...)
	return d, r
}

func TestDirector_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("message presence drives the roster", func(t *testing.T) {
		t.Parallel()
		ring := transcript.NewRing(16)
		ring.SetParticipants([]string{"Dana", "Alice", "Bob"})
		ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice waves at Bob"})

		d, r := newTestDirector(t, ring, unboundedSettings())
		d.Refresh(ctx, TriggerMessage)
		d.wg.Wait()

		snap := d.Snapshot()
		if snap.Current != "Alice" {
			t.Fatalf("want Alice in focus, got %q", snap.Current)
		}
		if !slices.Equal(snap.Left, []string{"Bob"}) {
			t.Fatalf("want Bob on the left, got %v", snap.Left)
		}
		if r.count() == 0 {
			t.Fatal("refresh must publish a snapshot")
		}
	})

	t.Run("user message forces the user to focus", func(t *testing.T) {
		t.Parallel()
		ring := transcript.NewRing(16)
		ring.SetParticipants([]string{"Dana", "Alice", "Bob"})
		ring.Append(transcript.Message{Speaker: "Dana", IsUser: true, Text: "Bob!"})

		d, _ := newTestDirector(t, ring, unboundedSettings())
		d.Refresh(ctx, TriggerMessage)
		d.wg.Wait()

		snap := d.Snapshot()
		if snap.Current != "Dana" {
			t.Fatalf("want the user in focus, got %q", snap.Current)
		}
		if !slices.Contains(snap.Names, "Bob") {
			t.Fatalf("want Bob tracked, got %v", snap.Names)
		}
	})

	t.Run("excluded names never appear", func(t *testing.T) {
		t.Parallel()
		ring := transcript.NewRing(16)
		ring.SetParticipants([]string{"Dana", "Alice", "Bob"})
		ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice and Bob"})

		s := unboundedSettings()
		s.Exclude = []string{"bob"}
		d, _ := newTestDirector(t, ring, s)
		d.Refresh(ctx, TriggerMessage)
		d.wg.Wait()

		if snap := d.Snapshot(); slices.Contains(snap.Names, "Bob") {
			t.Fatalf("excluded name placed: %v", snap.Names)
		}
	})

	t.Run("disabled stage does nothing", func(t *testing.T) {
		t.Parallel()
		ring := transcript.NewRing(16)
		ring.SetParticipants([]string{"Dana", "Alice"})
		ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice"})

		s := unboundedSettings()
		s.Enabled = false
		d, r := newTestDirector(t, ring, s)
		d.Refresh(ctx, TriggerPeriodic)

		if got := r.count(); got != 0 {
			t.Fatalf("disabled refresh must not publish, got %d", got)
		}
		if snap := d.Snapshot(); len(snap.Names) != 0 {
			t.Fatalf("disabled refresh must not place names: %v", snap.Names)
		}
	})

	t.Run("overlapping refresh is suppressed", func(t *testing.T) {
		t.Parallel()
		ring := transcript.NewRing(16)
		ring.SetParticipants([]string{"Dana", "Alice"})
		ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice"})

		d, r := newTestDirector(t, ring, unboundedSettings())
		d.busy.Store(true)
		d.Refresh(ctx, TriggerMessage)
		if got := r.count(); got != 0 {
			t.Fatalf("suppressed refresh must be a no-op, got %d publishes", got)
		}
		d.busy.Store(false)
	})
}

func TestDirector_Restart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ring := transcript.NewRing(16)
	ring.SetParticipants([]string{"Dana", "Alice", "Bob", "Carol"})
	ring.Append(transcript.Message{Speaker: "Alice", Text: "hello"})
	ring.Append(transcript.Message{Speaker: "Carol", Text: "hey"})

	d, r := newTestDirector(t, ring, unboundedSettings())

	if err := d.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	d.wg.Wait()

	// History order: Carol spoke last, then Alice; the silent rest follow
	// in participant order.
	snap := d.Snapshot()
	want := []string{"Carol", "Alice", "Dana", "Bob"}
	if !slices.Equal(snap.Names, want) {
		t.Fatalf("want history order %v, got %v", want, snap.Names)
	}
	if snap.Current != "Carol" {
		t.Fatalf("want most recent speaker in focus, got %q", snap.Current)
	}
	if r.count() < 2 {
		t.Fatalf("restart must publish tear-down and set-up, got %d", r.count())
	}
}

func TestDirector_ApplySettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ring := transcript.NewRing(16)
	ring.SetParticipants([]string{"Dana", "Alice"})
	ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice"})

	d, r := newTestDirector(t, ring, unboundedSettings())
	d.Refresh(ctx, TriggerMessage)
	d.wg.Wait()
	if snap := d.Snapshot(); len(snap.Names) == 0 {
		t.Fatal("setup failed")
	}

	s := unboundedSettings()
	s.Enabled = false
	before := r.count()
	d.ApplySettings(s)

	if snap := d.Snapshot(); len(snap.Names) != 0 {
		t.Fatalf("disabling must clear the stage, got %v", snap.Names)
	}
	if r.count() != before+1 {
		t.Fatal("disabling must publish the cleared stage")
	}
}

func TestDirector_Decorate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ring := transcript.NewRing(16)
	ring.SetParticipants([]string{"Dana", "Alice"})
	ring.Append(transcript.Message{Speaker: "Alice", Text: "Alice smiles"})

	store := expression.NewMemStore()
	if err := store.Set(ctx, "Alice", "joy"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	fsys := fstest.MapFS{"Alice/joy.png": {Data: []byte("img")}}
	r := &fakeRenderer{}
	st := surface.NewStage()
	d := NewDirector(ring, st, r, store, unboundedSettings(),
		WithLocator(sprite.NewLocatorFS(fsys)))

	d.Refresh(ctx, TriggerMessage)
	d.wg.Wait()

	for _, slot := range st.Slots() {
		if slot.Name != "Alice" {
			continue
		}
		if slot.Expression != "joy" || slot.Sprite != "Alice/joy.png" {
			t.Fatalf("want decorated slot, got %+v", slot)
		}
		return
	}
	t.Fatal("Alice slot not found")
}
