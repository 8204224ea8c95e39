package roster

import (
	"math"
	"slices"
	"strings"

	"github.com/MrWong99/stagehand/internal/scan"
	"github.com/MrWong99/stagehand/internal/transcript"
)

// OrderFromHistory derives a priority order for names from the transcript:
// scanning most recent first, a name is placed the first time it appears as
// a message's speaker. Names first observed in the same message are ordered
// by the earliest word-bounded match position of each name within that
// message's text. Names that never spoke keep their input order at the end.
func OrderFromHistory(names []string, messages []transcript.Message) []string {
	counter := scan.NewCounter()

	remaining := make(map[string]struct{}, len(names))
	for _, name := range names {
		remaining[name] = struct{}{}
	}

	var ordered []string
	for i := len(messages) - 1; i >= 0 && len(remaining) > 0; i-- {
		msg := messages[i]
		if msg.IsSystem {
			continue
		}

		type hit struct {
			name string
			pos  int
		}
		var hits []hit
		plain := scan.NonBracketSpans(msg.Text)
		for _, name := range names {
			if _, ok := remaining[name]; !ok {
				continue
			}
			if !strings.EqualFold(msg.Speaker, name) {
				continue
			}
			pos := counter.Count(name, msg.Text, plain).First
			if pos < 0 {
				pos = math.MaxInt
			}
			hits = append(hits, hit{name: name, pos: pos})
		}

		slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })
		for _, h := range hits {
			ordered = append(ordered, h.name)
			delete(remaining, h.name)
		}
	}

	for _, name := range names {
		if _, ok := remaining[name]; ok {
			ordered = append(ordered, name)
		}
	}
	return ordered
}
