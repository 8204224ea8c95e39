package scan

import "testing"

func count(t *testing.T, c *Counter, name, text string) Tally {
	t.Helper()
	return c.Count(name, text, NonBracketSpans(text))
}

func TestCounter(t *testing.T) {
	t.Parallel()

	c := NewCounter()

	t.Run("simple occurrence", func(t *testing.T) {
		t.Parallel()
		got := count(t, c, "Alice", "Alice says hello")
		if got.Count != 1 || got.First != 0 {
			t.Fatalf("want {1 0}, got %+v", got)
		}
	})

	t.Run("case-insensitive", func(t *testing.T) {
		t.Parallel()
		got := count(t, c, "alice", "ALICE and Alice")
		if got.Count != 2 || got.First != 0 {
			t.Fatalf("want {2 0}, got %+v", got)
		}
	})

	t.Run("word-bounded, no substring matches", func(t *testing.T) {
		t.Parallel()
		if got := count(t, c, "Ann", "Annette spoke"); got.Count != 0 || got.First != -1 {
			t.Fatalf("want {0 -1}, got %+v", got)
		}
		if got := count(t, c, "Ann", "poor Ann, rich MaryAnn"); got.Count != 1 || got.First != 5 {
			t.Fatalf("want {1 5}, got %+v", got)
		}
	})

	t.Run("quoted occurrences not counted", func(t *testing.T) {
		t.Parallel()
		text := `"Alice" said Bob`
		if got := count(t, c, "Alice", text); got.Count != 0 {
			t.Fatalf("Alice: want 0, got %+v", got)
		}
		if got := count(t, c, "Bob", text); got.Count != 1 || got.First != 13 {
			t.Fatalf("Bob: want {1 13}, got %+v", got)
		}
	})

	t.Run("emphasis occurrences not counted", func(t *testing.T) {
		t.Parallel()
		got := count(t, c, "Carol", "*Carol smirks* Carol agrees")
		if got.Count != 1 || got.First != 15 {
			t.Fatalf("want {1 15}, got %+v", got)
		}
	})

	t.Run("first index across spans", func(t *testing.T) {
		t.Parallel()
		got := count(t, c, "Bob", `"intro" Bob and then Bob again`)
		if got.Count != 2 || got.First != 8 {
			t.Fatalf("want {2 8}, got %+v", got)
		}
	})

	t.Run("metacharacters in name are literal", func(t *testing.T) {
		t.Parallel()
		got := count(t, c, "R2.D2", "R2.D2 beeps at R2xD2")
		if got.Count != 1 || got.First != 0 {
			t.Fatalf("want {1 0}, got %+v", got)
		}
	})

	t.Run("adjacent repetitions are word-bounded separately", func(t *testing.T) {
		t.Parallel()
		if got := count(t, c, "Alice", "AliceAlice"); got.Count != 0 {
			t.Fatalf("concatenated: want 0, got %+v", got)
		}
		if got := count(t, c, "Alice", "Alice Alice"); got.Count != 2 {
			t.Fatalf("spaced: want 2, got %+v", got)
		}
	})

	t.Run("empty name never matches", func(t *testing.T) {
		t.Parallel()
		if got := count(t, c, "", "anything"); got.Count != 0 || got.First != -1 {
			t.Fatalf("want {0 -1}, got %+v", got)
		}
	})

	t.Run("pattern cache is reused", func(t *testing.T) {
		t.Parallel()
		local := NewCounter()
		first := local.pattern("Dana")
		second := local.pattern("dana")
		if first != second {
			t.Fatal("want identical cached pattern for case-variant names")
		}
	})
}
