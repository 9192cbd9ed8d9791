package quality

import (
	"regexp"
	"strings"
)

var (
	wsRun            = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)
	trailingPunct    = regexp.MustCompile(`[.,;:!?]+$`)
)

// Canonicalize normalizes a raw candidate string. The steps run in a
// fixed order and the result is a fixed point: canonicalizing an already
// canonical string returns it unchanged.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = wsRun.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	// The trailing punctuation run is normalized in one step: dangling
	// separators are dropped and any remaining terminal marks collapse
	// to the first one. Mixed tails like "..," would otherwise need a
	// second pass.
	s = trailingPunct.ReplaceAllStringFunc(s, func(run string) string {
		run = strings.Map(func(r rune) rune {
			if r == ',' || r == ';' || r == ':' {
				return -1
			}
			return r
		}, run)
		if len(run) > 1 {
			run = run[:1]
		}
		return run
	})
	return strings.TrimSpace(s)
}

// NormKey derives the deduplication key for a canonical string:
// lower-cased, with any single terminal mark stripped, so "Foo." and
// "foo" collapse into one statistics entry.
func NormKey(canonical string) string {
	k := strings.ToLower(canonical)
	return strings.TrimRight(k, ".!?")
}
