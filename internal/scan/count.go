package scan

import (
	"regexp"
	"strings"
	"sync"
)

// Tally is the result of counting one name within a message.
type Tally struct {
	// Count is the number of word-bounded occurrences found in plain spans.
	Count int

	// First is the absolute byte position of the earliest occurrence, or -1
	// when the name does not occur at all.
	First int
}

// Counter counts word-bounded, case-insensitive occurrences of names inside
// the plain (non-bracket) spans of a message. Compiled patterns are cached
// per lowercase name and reused across calls.
//
// The cache is unbounded: it only ever holds one entry per roster name, and
// rosters are small. All methods are safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewCounter returns a Counter with an empty pattern cache.
func NewCounter() *Counter {
	return &Counter{patterns: make(map[string]*regexp.Regexp)}
}

// Count tallies occurrences of name within the given plain spans of text.
// A match must be word-bounded: the characters immediately before and after
// the occurrence must be non-word characters or the string boundary, so
// "Ann" never matches inside "Annette". Matches within a span do not overlap.
func (c *Counter) Count(name, text string, plain []Span) Tally {
	t := Tally{First: -1}
	if name == "" {
		return t
	}
	re := c.pattern(name)

	for _, sp := range plain {
		sub := sp.Text(text)
		for _, loc := range re.FindAllStringIndex(sub, -1) {
			if !wordBounded(sub, loc[0], loc[1]) {
				continue
			}
			t.Count++
			abs := sp.Start + loc[0]
			if t.First < 0 || abs < t.First {
				t.First = abs
			}
		}
	}
	return t
}

// pattern returns the cached case-insensitive pattern for name, compiling
// it on first use. All regex metacharacters in the name are escaped.
func (c *Counter) pattern(name string) *regexp.Regexp {
	key := strings.ToLower(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.patterns[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(key))
	c.patterns[key] = re
	return re
}

// wordBounded reports whether the match at [start, end) in s is delimited
// by non-word characters or the string boundary on both sides.
func wordBounded(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

// isWordByte matches the \w character class: letters, digits, underscore.
func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
