// Package presence decides which participants the latest transcript message
// shows as present, and in what order. Presence is a word-bounded name
// occurrence outside quoted/emphasised spans; ordering combines occurrence
// count, earliest position, and master-list priority, with special handling
// for the message's own speaker.
package presence

import (
	"slices"
	"strings"

	"github.com/MrWong99/stagehand/internal/scan"
	"github.com/MrWong99/stagehand/internal/transcript"
)

// Input carries the per-cycle context a resolution runs against. The master
// list and configuration fields are snapshotted by the caller for the
// duration of the call.
type Input struct {
	// Master is the priority-ordered list of all known participant names.
	Master []string

	// CustomMembers optionally overrides the master source; when non-empty,
	// its first entry is treated as the user's name.
	CustomMembers []string

	// Exclude holds lowercase names that are never counted as present.
	Exclude map[string]struct{}
}

// userName returns the name that represents the user: the first custom
// member when configured, else the head of the master list.
func (in Input) userName() string {
	if len(in.CustomMembers) > 0 {
		return in.CustomMembers[0]
	}
	if len(in.Master) > 0 {
		return in.Master[0]
	}
	return ""
}

// item is one present participant during a single resolution.
type item struct {
	name        string
	count       int
	first       int // absolute position of earliest match, -1 when absent
	masterIndex int
	forced      bool
}

// Resolver computes the ordered presence list for a message. It owns the
// pattern cache shared across resolutions and is safe for concurrent use.
type Resolver struct {
	counter *scan.Counter
}

// NewResolver returns a Resolver with a fresh pattern cache.
func NewResolver() *Resolver {
	return &Resolver{counter: scan.NewCounter()}
}

// Resolve returns the names judged present in msg, ordered by display
// priority.
//
// Ordering is count (descending), then earliest unbracketed position
// (ascending, absent last), then master-list position. Two speaker rules
// adjust the result afterwards: when the message is not the user's and the
// user would lead, the user is demoted exactly one slot; when the message
// is the user's, the user is forced to the front (synthesised if unmatched).
func (r *Resolver) Resolve(msg transcript.Message, in Input) []string {
	user := in.userName()

	if msg.Text == "" && msg.IsUser {
		if user == "" {
			return nil
		}
		return []string{user}
	}

	plain := scan.NonBracketSpans(msg.Text)

	var items []item
	for i, name := range in.Master {
		if _, excluded := in.Exclude[strings.ToLower(name)]; excluded {
			continue
		}
		tally := r.counter.Count(name, msg.Text, plain)
		if tally.Count == 0 {
			continue
		}
		items = append(items, item{
			name:        name,
			count:       tally.Count,
			first:       tally.First,
			masterIndex: i,
		})
	}

	if msg.IsUser && user != "" {
		idx := slices.IndexFunc(items, func(it item) bool { return it.name == user })
		if idx < 0 {
			items = append(items, item{name: user, count: 1, first: 0, forced: true})
		} else {
			items[idx].forced = true
		}
	}

	slices.SortStableFunc(items, compareItems)

	if !msg.IsUser && len(items) > 1 && items[0].name == user {
		// The user was merely mentioned; let the actual subject lead, but
		// push the user back one slot only.
		items[0], items[1] = items[1], items[0]
	}

	if msg.IsUser {
		if idx := slices.IndexFunc(items, func(it item) bool { return it.name == user }); idx > 0 {
			forced := items[idx]
			items = slices.Delete(items, idx, idx+1)
			items = slices.Insert(items, 0, forced)
		}
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names
}

// compareItems orders by descending count, ascending earliest position with
// absent (-1) treated as +infinity, then ascending master index. Unique
// names make this a strict total order.
func compareItems(a, b item) int {
	if a.count != b.count {
		return b.count - a.count
	}
	af, bf := a.first, b.first
	if af < 0 && bf >= 0 {
		return 1
	}
	if bf < 0 && af >= 0 {
		return -1
	}
	if af != bf {
		return af - bf
	}
	return a.masterIndex - b.masterIndex
}
