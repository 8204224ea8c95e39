package health

import (
	"context"
	"fmt"

	"github.com/MrWong99/stagehand/internal/transcript"
)

// Transcript returns a Checker that verifies the transcript provider answers.
func Transcript(p transcript.Provider) Checker {
	return Checker{
		Name: "transcript",
		Check: func(ctx context.Context) error {
			if _, err := p.Participants(ctx); err != nil {
				return fmt.Errorf("participants: %w", err)
			}
			return nil
		},
	}
}

// Pinger is the probe surface of a connection pool (satisfied by
// pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store returns a Checker that pings the expression store's database.
func Store(p Pinger) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}
