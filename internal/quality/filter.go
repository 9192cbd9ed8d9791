package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/tree"
)

// sentenceMeta matches candidates that open by talking about "the
// sentence" itself instead of explaining the node. The alternation
// covers the misspellings observed in model output.
var sentenceMeta = regexp.MustCompile(`(?i)^(?:senten(?:ce|se)|sentance)\b`)

// temporalPrepositions head phrases that locate the action in time.
var temporalPrepositions = map[string]struct{}{
	"before": {}, "after": {}, "until": {}, "till": {},
	"while": {}, "during": {}, "since": {}, "when": {},
}

// concessionMarkers flag concession/reason wording that must not label a
// temporal prepositional phrase.
var concessionMarkers = []string{
	"concession", "although", "even though", "because", "reason",
}

// NodeContext carries the node facts the semantic checks need.
type NodeContext struct {
	Family       tree.NodeType
	PartOfSpeech string
	DepLabel     string
	Content      string
	HeadLexeme   string
	TAMBucket    string
}

// Verdict is the outcome of filtering one candidate.
type Verdict struct {
	Accepted  bool
	Canonical string
	NormKey   string
	// Reason is the rejection reason code; "" when accepted.
	Reason string
}

// Filter applies the rejection policy to raw candidates. Construction
// compiles the policy once; Check is safe for concurrent use.
type Filter struct {
	policy     Policy
	stopRes    []*regexp.Regexp
	stopSubs   []string
	metaAllow  map[string]struct{}
	shortAllow map[string]struct{}
}

// New compiles the policy into a Filter.
func New(p Policy) (*Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("quality: invalid policy: %w", err)
	}
	f := &Filter{
		policy:     p,
		metaAllow:  make(map[string]struct{}, len(p.MetaAllowlist)),
		shortAllow: make(map[string]struct{}, len(p.ShortAllowlist)),
	}
	for _, pat := range p.StopPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("quality: stop pattern %q: %w", pat, err)
		}
		f.stopRes = append(f.stopRes, re)
	}
	for _, s := range p.StopSubstrings {
		f.stopSubs = append(f.stopSubs, strings.ToLower(s))
	}
	for _, s := range p.MetaAllowlist {
		f.metaAllow[s] = struct{}{}
	}
	for _, s := range p.ShortAllowlist {
		f.shortAllow[strings.ToLower(s)] = struct{}{}
	}
	return f, nil
}

// Check canonicalizes raw and applies the rejection rules in their fixed
// order. The first matching rule wins and its reason is recorded.
func (f *Filter) Check(raw string, nc NodeContext) Verdict {
	canonical := Canonicalize(raw)
	v := Verdict{Canonical: canonical, NormKey: NormKey(canonical)}
	lower := strings.ToLower(canonical)

	// 1. Stop-list.
	for _, re := range f.stopRes {
		if re.MatchString(canonical) {
			v.Reason = ReasonLowQuality
			return v
		}
	}
	for _, sub := range f.stopSubs {
		if strings.Contains(lower, sub) {
			v.Reason = ReasonUnsuitable
			return v
		}
	}

	// 2. Sentence-like meta opening, unless the exact string is allowlisted.
	if sentenceMeta.MatchString(canonical) {
		if _, ok := f.metaAllow[canonical]; !ok {
			v.Reason = ReasonUnsuitable
			return v
		}
	}

	// 3. Short-string policy.
	if len(canonical) < f.policy.MinLength {
		if _, ok := f.shortAllow[lower]; !ok {
			v.Reason = ReasonTooShort
			return v
		}
	}

	// 4. Structural repetition.
	if f.repetitive(lower) {
		v.Reason = ReasonLowQuality
		return v
	}

	// 5. Semantic sanity against the node context.
	if semanticMismatch(lower, nc) {
		v.Reason = ReasonUnsuitable
		return v
	}

	v.Accepted = true
	return v
}

// repetitive flags candidates with a very low unique-token ratio or the
// same token three or more times in a row, the typical shape of
// POS-token spam.
func (f *Filter) repetitive(lower string) bool {
	tokens := strings.Fields(lower)
	run := 1
	for i := 1; i < len(tokens); i++ {
		if tokens[i] == tokens[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	if len(tokens) < 6 {
		return false
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	ratio := float64(len(seen)) / float64(len(tokens))
	return ratio < f.policy.MinUniqueTokenRatio
}

// semanticMismatch applies node-context-aware rules. Currently: a
// prepositional phrase headed by a temporal preposition must not be
// described with concession or reason wording.
func semanticMismatch(lower string, nc NodeContext) bool {
	if nc.Family != tree.Phrase {
		return false
	}
	head := strings.ToLower(nc.HeadLexeme)
	if head == "" {
		head = firstToken(nc.Content)
	}
	if _, temporal := temporalPrepositions[head]; !temporal {
		return false
	}
	for _, marker := range concessionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func firstToken(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ContextFor derives the filter context from a node.
func ContextFor(n *tree.Node) NodeContext {
	nc := NodeContext{
		Family:       n.Type,
		PartOfSpeech: strings.ToLower(n.PartOfSpeech),
		DepLabel:     strings.ToLower(n.DepLabel),
		Content:      n.Content,
	}
	if len(n.Children) > 0 {
		nc.HeadLexeme = strings.ToLower(strings.TrimSpace(n.Children[0].Content))
	}
	if n.TAMConstruction != nil {
		nc.TAMBucket = strings.ToLower(*n.TAMConstruction)
	}
	return nc
}
