// Package contextkey derives canonical template-lookup keys from node
// linguistic facts. Key building is a pure function: identical facts
// always yield identical keys, and missing facts degrade to the "_"
// wildcard instead of failing.
package contextkey

import (
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/tree"
)

// Wildcard stands in for any absent key component.
const Wildcard = "_"

// Keys holds the four candidate lookup keys for one node, most specific
// first. L1 includes the lexical hint, L2 drops TAM, L3 keeps only the
// level bucket and part of speech, L4 is the level bucket alone.
type Keys struct {
	L1 string
	L2 string
	L3 string
	L4 string
}

// Build derives the candidate keys for n. Each key is a pipe-joined tuple
// (level_bucket, part_of_speech, dep_label, tam_bucket, lexical_hint).
func Build(n *tree.Node) Keys {
	level := levelBucket(n)
	pos := component(n.PartOfSpeech)
	dep := component(n.DepLabel)
	tam := tamBucket(n)
	lex := lexicalHint(n)

	return Keys{
		L1: join(level, pos, dep, tam, lex),
		L2: join(level, pos, dep, Wildcard, lex),
		L3: join(level, pos, Wildcard, Wildcard, Wildcard),
		L4: join(level, Wildcard, Wildcard, Wildcard, Wildcard),
	}
}

func join(parts ...string) string {
	return strings.Join(parts, "|")
}

func component(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Wildcard
	}
	return s
}

func levelBucket(n *tree.Node) string {
	switch n.Type {
	case tree.Sentence:
		return "sentence"
	case tree.Phrase:
		return "phrase"
	case tree.Word:
		return "word"
	}
	return Wildcard
}

// tamBucket collapses the TAM facts into one token. A named composite
// construction wins outright; otherwise the non-null facts are joined in
// the fixed order tense.aspect.mood.voice.finiteness.
func tamBucket(n *tree.Node) string {
	if n.TAMConstruction != nil {
		return component(*n.TAMConstruction)
	}
	var parts []string
	for _, v := range []*string{n.Tense, n.Aspect, n.Mood, n.Voice, n.Finiteness} {
		if v != nil && strings.TrimSpace(*v) != "" {
			parts = append(parts, strings.ToLower(strings.TrimSpace(*v)))
		}
	}
	if len(parts) == 0 {
		return Wildcard
	}
	return strings.Join(parts, ".")
}

// lexicalHint is the lower-cased surface form for single-token Word nodes,
// the wildcard for everything else. Multi-word content never keys a lookup.
func lexicalHint(n *tree.Node) string {
	if n.Type != tree.Word {
		return Wildcard
	}
	c := strings.ToLower(strings.TrimSpace(n.Content))
	if c == "" || strings.ContainsAny(c, " \t\n|") {
		return Wildcard
	}
	return c
}

// FeatureSignature renders the morphology map deterministically:
// lower-cased names in sorted order, null values as the wildcard.
// Used for diagnostics, never for lookup.
func FeatureSignature(features map[string]*string) string {
	if len(features) == 0 {
		return Wildcard
	}
	parts := make([]string, 0, len(features))
	for k, v := range features {
		val := Wildcard
		if v != nil && strings.TrimSpace(*v) != "" {
			val = strings.ToLower(strings.TrimSpace(*v))
		}
		parts = append(parts, strings.ToLower(k)+"="+val)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
