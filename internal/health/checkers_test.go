package health

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/stagehand/internal/transcript"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestTranscriptChecker(t *testing.T) {
	t.Parallel()

	c := Transcript(transcript.NewRing(8))
	if c.Name != "transcript" {
		t.Fatalf("want name transcript, got %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("healthy provider must pass: %v", err)
	}
}

func TestStoreChecker(t *testing.T) {
	t.Parallel()

	if err := Store(fakePinger{}).Check(context.Background()); err != nil {
		t.Fatalf("healthy store must pass: %v", err)
	}

	boom := errors.New("connection refused")
	if err := Store(fakePinger{err: boom}).Check(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want ping error, got %v", err)
	}
}
