// Package selector implements the ordered backoff search over the
// template registry: L1 exact → L2 drop-TAM → L3 level+POS → L4
// level-only. Missing templates are represented in the result, never
// raised as errors.
package selector

import (
	"github.com/starford/ansuz/internal/contextkey"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/tree"
)

// Result is the outcome of one backoff search.
type Result struct {
	// Level is the first level that matched, or tree.LevelNone when the
	// registry has no entry even at L4.
	Level tree.SelectionLevel

	// Entry is the matched template. Nil iff Level is LevelNone.
	Entry *registry.TemplateEntry

	// MatchedKey is the context key that hit, "" on no match.
	MatchedKey string

	// MatchedLevelReason is set to "tam_dropped" when an L2 match was
	// reached by discarding TAM facts the node actually carries. Only
	// TAM-relevant nodes may carry it.
	MatchedLevelReason *string

	// Keys are the candidate keys the search walked, kept for the trace.
	Keys contextkey.Keys
}

// Backoff reports whether the match used any level other than L1.
// A no-template result does not count as backoff; the caller handles it
// through the model/fallback path instead.
func (r Result) Backoff() bool {
	return r.Level != tree.LevelExact && r.Level != tree.LevelNone
}

// Select runs the backoff search for n against the snapshot.
func Select(n *tree.Node, snap *registry.Snapshot) Result {
	keys := contextkey.Build(n)
	res := Result{Level: tree.LevelNone, Keys: keys}

	steps := []struct {
		level tree.SelectionLevel
		key   string
	}{
		{tree.LevelExact, keys.L1},
		{tree.LevelDropTAM, keys.L2},
		{tree.LevelPOS, keys.L3},
		{tree.LevelFallback, keys.L4},
	}

	for _, step := range steps {
		entry, ok := snap.Lookup(step.key)
		if !ok {
			continue
		}
		res.Level = step.level
		res.Entry = &entry
		res.MatchedKey = step.key
		if step.level == tree.LevelDropTAM && n.TAMRelevant() {
			reason := tree.ReasonTAMDropped
			res.MatchedLevelReason = &reason
		}
		return res
	}
	return res
}

// Trace renders the search result as a node SelectionTrace. The selection
// mode is filled in later by the assembler, which knows whether the text
// came from a rule, the model, or the two-stage flow.
func (r Result) Trace() tree.SelectionTrace {
	return tree.SelectionTrace{
		Level:              r.Level,
		ContextKeyL1:       r.Keys.L1,
		ContextKeyL2:       r.Keys.L2,
		ContextKeyL3:       r.Keys.L3,
		ContextKeyMatched:  r.MatchedKey,
		MatchedLevelReason: r.MatchedLevelReason,
	}
}
