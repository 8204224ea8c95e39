package presence

import (
	"slices"
	"testing"

	"github.com/MrWong99/stagehand/internal/transcript"
)

func resolve(t *testing.T, text string, isUser bool, master ...string) []string {
	t.Helper()
	r := NewResolver()
	return r.Resolve(
		transcript.Message{Text: text, IsUser: isUser},
		Input{Master: master},
	)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("count beats master priority", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "Alice says hello to Bob and Alice", false, "Alice", "Bob", "Carol")
		want := []string{"Alice", "Bob"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("earliest unbracketed index breaks count ties", func(t *testing.T) {
		t.Parallel()
		// The quoted Alice is excluded, so both names count once and the
		// earliest plain mention (Bob's) wins.
		got := resolve(t, `"Alice" Bob Alice`, false, "Alice", "Bob", "Carol")
		want := []string{"Bob", "Alice"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("position order ignores master priority", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "Carol then Bob", false, "Alice", "Bob", "Carol")
		want := []string{"Carol", "Bob"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("quoted mentions do not count", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, `"Alice" said Bob`, false, "Alice", "Bob")
		want := []string{"Bob"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("excluded names are never present", func(t *testing.T) {
		t.Parallel()
		r := NewResolver()
		got := r.Resolve(
			transcript.Message{Text: "Alice and Bob"},
			Input{
				Master:  []string{"UserName", "Alice", "Bob"},
				Exclude: map[string]struct{}{"alice": {}},
			},
		)
		want := []string{"Bob"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("empty user message yields just the user", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "", true, "UserName", "Bob")
		want := []string{"UserName"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("empty non-user message yields nothing", func(t *testing.T) {
		t.Parallel()
		if got := resolve(t, "", false, "UserName", "Bob"); len(got) != 0 {
			t.Fatalf("want empty, got %v", got)
		}
	})

	t.Run("empty user message without names yields nothing", func(t *testing.T) {
		t.Parallel()
		if got := resolve(t, "", true); len(got) != 0 {
			t.Fatalf("want empty, got %v", got)
		}
	})

	t.Run("user demoted one slot on non-user messages", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "UserName waves at Bob", false, "UserName", "Bob", "Carol")
		want := []string{"Bob", "UserName"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("user demoted exactly one slot, never further", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "UserName greets Bob and Carol", false, "UserName", "Bob", "Carol")
		if got[0] == "UserName" {
			t.Fatalf("user must not lead a non-user message: %v", got)
		}
		if got[1] != "UserName" {
			t.Fatalf("user must hold slot 1 after demotion: %v", got)
		}
	})

	t.Run("user not demoted when alone", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "UserName stands up", false, "UserName", "Bob")
		want := []string{"UserName"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("user forced to front of own message", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "Bob and Carol, meet UserName", true, "UserName", "Bob", "Carol")
		if got[0] != "UserName" {
			t.Fatalf("user must lead their own message: %v", got)
		}
		rest := got[1:]
		want := []string{"Bob", "Carol"}
		if !slices.Equal(rest, want) {
			t.Fatalf("forcing must keep remaining order stable: want %v, got %v", want, rest)
		}
	})

	t.Run("user synthesised on own message without mention", func(t *testing.T) {
		t.Parallel()
		got := resolve(t, "Bob, are you there?", true, "UserName", "Bob")
		want := []string{"UserName", "Bob"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})

	t.Run("custom members override user name", func(t *testing.T) {
		t.Parallel()
		r := NewResolver()
		got := r.Resolve(
			transcript.Message{Text: "", IsUser: true},
			Input{
				Master:        []string{"Alice", "Bob"},
				CustomMembers: []string{"Protagonist", "Alice"},
			},
		)
		want := []string{"Protagonist"}
		if !slices.Equal(got, want) {
			t.Fatalf("want %v, got %v", want, got)
		}
	})
}
