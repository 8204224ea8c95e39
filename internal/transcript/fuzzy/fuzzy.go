// Package fuzzy maps transcript speaker display names onto master roster
// names. Chat frontends rarely agree with the roster byte for byte
// ("seraphina 🌙", "Sera", "seraphina-bot"), so speaker attribution uses
// phonetic candidate filtering (Double Metaphone) followed by Jaro-Winkler
// ranking instead of exact comparison.
package fuzzy

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score accepted for a
// phonetically-matched roster name. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(n *Normalizer) { n.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score accepted when no
// phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(n *Normalizer) { n.fuzzyThreshold = threshold }
}

// Normalizer resolves speaker display names to roster names. It is
// read-only after construction and safe for concurrent use.
type Normalizer struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Normalizer with the supplied options applied.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Resolve maps speaker to one of the given roster names. An exact
// case-insensitive match always wins. Otherwise phonetic candidates are
// ranked by Jaro-Winkler similarity; without a phonetic candidate a pure
// similarity pass runs against the higher fuzzy threshold. ok is false when
// nothing clears its threshold, in which case name equals speaker unchanged.
func (n *Normalizer) Resolve(speaker string, roster []string) (name string, ok bool) {
	trimmed := strings.TrimSpace(speaker)
	if trimmed == "" || len(roster) == 0 {
		return speaker, false
	}
	lower := strings.ToLower(trimmed)

	for _, r := range roster {
		if strings.EqualFold(r, trimmed) {
			return r, true
		}
	}

	speakerCodes := metaphoneCodes(strings.Fields(lower))

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, r := range roster {
		rosterLower := strings.ToLower(r)
		score := matchr.JaroWinkler(lower, rosterLower, false)
		phonetic := overlaps(speakerCodes, metaphoneCodes(strings.Fields(rosterLower)))

		switch {
		case phonetic && score >= n.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = r, score, true
			}
		case !bestPhonetic && score >= n.fuzzyThreshold && score > bestScore:
			best, bestScore = r, score
		}
	}

	if best == "" {
		return speaker, false
	}
	return best, true
}

// metaphoneCodes returns the union of non-empty Double Metaphone codes for
// the given tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, tok := range tokens {
		primary, secondary := matchr.DoubleMetaphone(tok)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
