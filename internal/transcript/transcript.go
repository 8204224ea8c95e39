// Package transcript defines the chat transcript model consumed by the
// presence core and the provider contract for whatever hosts the
// conversation (Discord channel, test ring, embedding application).
package transcript

import (
	"context"
	"time"
)

// Message is a single immutable transcript entry.
type Message struct {
	// Text is the raw message body. May be empty.
	Text string

	// Speaker is the display name of whoever produced the message.
	Speaker string

	// IsUser reports whether the message was authored by the primary user
	// (as opposed to a character or another participant).
	IsUser bool

	// IsSystem marks housekeeping entries that never contribute presence.
	IsSystem bool

	// Sent is when the message was produced. Zero when the source does not
	// track timestamps.
	Sent time.Time
}

// Provider exposes one conversation to the presence core. Implementations
// are read-only from the core's perspective and must be safe for concurrent
// use.
type Provider interface {
	// Messages returns the retained transcript, oldest first.
	Messages(ctx context.Context) ([]Message, error)

	// Last returns the most recent non-system message. ok is false when the
	// transcript holds no such message.
	Last(ctx context.Context) (msg Message, ok bool, err error)

	// Participants returns the priority-ordered master name list for the
	// conversation (earlier entries win tie-breaks).
	Participants(ctx context.Context) ([]string, error)
}
