// Package scan implements the low-level text analysis behind presence
// detection: extraction of bracket-delimited spans (quoted speech and
// asterisk emphasis) and word-bounded counting of participant names within
// the remaining plain text.
package scan

import "strings"

// Span marks a half-open byte range [Start, End) within a scanned string.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Text returns the substring of text covered by the span.
func (s Span) Text(text string) string { return text[s.Start:s.End] }

// ParseBracketSpans scans text left to right and returns every
// bracket-delimited span. A double quote or asterisk opens a span which is
// closed by the next occurrence of the same character; the closer belongs to
// the span and cannot open a new one. An unmatched opener extends its span
// to the end of the text and terminates the scan.
func ParseBracketSpans(text string) []Span {
	var spans []Span
	for i := 0; i < len(text); {
		c := text[i]
		if c != '"' && c != '*' {
			i++
			continue
		}
		rel := strings.IndexByte(text[i+1:], c)
		if rel < 0 {
			spans = append(spans, Span{Start: i, End: len(text)})
			break
		}
		end := i + 1 + rel + 1
		spans = append(spans, Span{Start: i, End: end})
		i = end
	}
	return spans
}

// NonBracketSpans returns the ordered complement of [ParseBracketSpans]
// within [0, len(text)). Empty spans are omitted; when no bracket spans
// exist the whole text is returned as a single span.
func NonBracketSpans(text string) []Span {
	if len(text) == 0 {
		return nil
	}
	brackets := ParseBracketSpans(text)
	if len(brackets) == 0 {
		return []Span{{Start: 0, End: len(text)}}
	}

	var plain []Span
	prev := 0
	for _, b := range brackets {
		if b.Start > prev {
			plain = append(plain, Span{Start: prev, End: b.Start})
		}
		prev = b.End
	}
	if prev < len(text) {
		plain = append(plain, Span{Start: prev, End: len(text)})
	}
	return plain
}
