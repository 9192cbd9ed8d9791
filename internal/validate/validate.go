// Package validate checks a finished tree against the output contract.
// Two strictness modes exist: v1 keeps the legacy field subset, v2_strict
// is the default and demands the full contract. Validation collects every
// violation it finds; batch diagnostics beat first-failure aborts when
// debugging a pipeline.
package validate

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/accounting"
	"github.com/starford/ansuz/internal/tree"
)

// Mode selects the contract strictness.
type Mode string

const (
	V1       Mode = "v1"
	V2Strict Mode = "v2_strict"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == V1 || m == V2Strict }

// ValidationError locates one contract violation.
type ValidationError struct {
	NodeID    string `json:"node_id"`
	FieldPath string `json:"field_path"`
	Message   string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("node %s: %s: %s", e.NodeID, e.FieldPath, e.Message)
}

// Tree validates the whole tree in mode against the structural rules,
// the per-node contract, and the backoff counter identities in sum.
// The returned slice is empty when the tree is valid.
func Tree(root *tree.Node, mode Mode, sum accounting.Summary) []ValidationError {
	v := &validator{mode: mode}

	if root == nil {
		v.add("", "root", "tree is empty")
		return v.errs
	}
	if root.Type != tree.Sentence {
		v.add(root.ID, "type", fmt.Sprintf("root must be a sentence, got %q", root.Type))
	}

	root.Walk(func(n *tree.Node) bool {
		v.checkNesting(n)
		v.checkFields(n)
		v.checkTAMConstruction(n)
		v.checkFlags(n)
		v.checkMatchedLevelReason(n)
		v.checkSiblingPayloads(n)
		return true
	})

	v.checkAccounting(root, sum)
	return v.errs
}

type validator struct {
	mode Mode
	errs []ValidationError
}

func (v *validator) add(nodeID, field, msg string) {
	v.errs = append(v.errs, ValidationError{NodeID: nodeID, FieldPath: field, Message: msg})
}

// checkNesting enforces Sentence⊇Phrase⊇Word, the Phrase arity floor,
// and span sanity: start<end, children contained, siblings disjoint.
func (v *validator) checkNesting(n *tree.Node) {
	switch n.Type {
	case tree.Sentence:
		for _, c := range n.Children {
			if c.Type != tree.Phrase {
				v.add(n.ID, "children", fmt.Sprintf("sentence child %s must be a phrase, got %q", c.ID, c.Type))
			}
		}
	case tree.Phrase:
		if len(n.Children) < 2 {
			v.add(n.ID, "children", fmt.Sprintf("phrase must have at least 2 children, got %d", len(n.Children)))
		}
		for _, c := range n.Children {
			if c.Type != tree.Word {
				v.add(n.ID, "children", fmt.Sprintf("phrase child %s must be a word, got %q", c.ID, c.Type))
			}
		}
	case tree.Word:
		if len(n.Children) != 0 {
			v.add(n.ID, "children", "word nodes must be leaves")
		}
	default:
		v.add(n.ID, "type", fmt.Sprintf("unknown node type %q", n.Type))
	}

	// v1 tolerates absent spans on legacy nodes; a present span must be
	// sane in both modes.
	spanAbsent := n.Span == tree.Span{}
	if spanAbsent {
		if v.mode == V2Strict {
			v.add(n.ID, "source_span", "source_span is required in v2_strict")
		}
		return
	}
	if n.Span.Start >= n.Span.End {
		v.add(n.ID, "source_span", fmt.Sprintf("span start %d must be below end %d", n.Span.Start, n.Span.End))
	}
	for i, c := range n.Children {
		if c.Span == (tree.Span{}) {
			continue
		}
		if !n.Span.Contains(c.Span) {
			v.add(c.ID, "source_span", fmt.Sprintf("child span %s escapes parent span %s", c.Span, n.Span))
		}
		for _, other := range n.Children[i+1:] {
			if other.Span != (tree.Span{}) && c.Span.Overlaps(other.Span) {
				v.add(c.ID, "source_span", fmt.Sprintf("sibling spans %s and %s overlap", c.Span, other.Span))
			}
		}
	}
}

// checkFields enforces per-node required fields. v2_strict additionally
// requires node identity, span, grammatical role, the v2 schema stamp,
// real-null TAM fields, and a non-empty note list.
func (v *validator) checkFields(n *tree.Node) {
	if err := validation.Validate(n.Content, validation.Required); err != nil {
		v.add(n.ID, "content", "content is required")
	}
	if v.mode != V2Strict {
		return
	}
	if err := validation.Validate(n.ID, validation.Required); err != nil {
		v.add(n.ID, "node_id", "node_id is required in v2_strict")
	}
	if err := validation.Validate(n.GrammaticalRole, validation.Required); err != nil {
		v.add(n.ID, "grammatical_role", "grammatical_role is required in v2_strict")
	}
	if n.SchemaVersion != tree.SchemaV2 {
		v.add(n.ID, "schema_version", fmt.Sprintf("schema_version must be %q in v2_strict, got %q", tree.SchemaV2, n.SchemaVersion))
	}
	if len(n.Notes) == 0 {
		v.add(n.ID, "notes", "notes must not be empty in v2_strict")
	}
	for name, f := range map[string]*string{
		"tense": n.Tense, "aspect": n.Aspect, "mood": n.Mood,
		"voice": n.Voice, "finiteness": n.Finiteness,
		"tam_construction": n.TAMConstruction,
	} {
		if f != nil && *f == "null" {
			v.add(n.ID, name, "nullable TAM fields must be real null, not the string \"null\"")
		}
	}
	for k, f := range n.Features {
		if f != nil && *f == "null" {
			v.add(n.ID, "features."+k, "feature values must be real null, not the string \"null\"")
		}
	}
}

// checkTAMConstruction enforces the modal_perfect constraint set.
func (v *validator) checkTAMConstruction(n *tree.Node) {
	if n.TAMConstruction == nil || *n.TAMConstruction != "modal_perfect" {
		return
	}
	if n.Mood == nil || *n.Mood != "modal" {
		v.add(n.ID, "mood", `tam_construction "modal_perfect" requires mood "modal"`)
	}
	if n.Aspect == nil || *n.Aspect != "perfect" {
		v.add(n.ID, "aspect", `tam_construction "modal_perfect" requires aspect "perfect"`)
	}
	if n.Tense != nil {
		v.add(n.ID, "tense", `tam_construction "modal_perfect" requires tense null`)
	}
}

// checkFlags enforces quality_flags consistency: backoff_used present
// iff the selection level is not L1_EXACT, and the boolean field agrees
// with the flag.
func (v *validator) checkFlags(n *tree.Node) {
	if n.TemplateSelection == nil {
		return
	}
	hasFlag := n.HasQualityFlag(tree.QualityFlagBackoff)
	nonExact := n.TemplateSelection.Level != tree.LevelExact
	if nonExact && !hasFlag {
		v.add(n.ID, "quality_flags", fmt.Sprintf("level %s requires the %s flag", n.TemplateSelection.Level, tree.QualityFlagBackoff))
	}
	if !nonExact && hasFlag {
		v.add(n.ID, "quality_flags", fmt.Sprintf("%s flag is illegal on an L1_EXACT match", tree.QualityFlagBackoff))
	}
	if n.BackoffUsed != nonExact {
		v.add(n.ID, "backoff_used", "backoff_used field disagrees with selection level")
	}
}

// checkMatchedLevelReason allows "tam_dropped" only on TAM-relevant nodes.
func (v *validator) checkMatchedLevelReason(n *tree.Node) {
	if n.TemplateSelection == nil || n.TemplateSelection.MatchedLevelReason == nil {
		return
	}
	if *n.TemplateSelection.MatchedLevelReason != tree.ReasonTAMDropped {
		v.add(n.ID, "template_selection.matched_level_reason",
			fmt.Sprintf("unknown matched_level_reason %q", *n.TemplateSelection.MatchedLevelReason))
		return
	}
	if !n.TAMRelevant() {
		v.add(n.ID, "template_selection.matched_level_reason",
			`"tam_dropped" is only legal on TAM-relevant sentence or phrase nodes`)
	}
}

// checkSiblingPayloads shape-checks external enrichment payloads when
// present. Their content belongs to other stages; their shape is gated
// here because this is the single point asserting contract compliance.
func (v *validator) checkSiblingPayloads(n *tree.Node) {
	if n.Translation != nil {
		if n.Translation.Language == "" {
			v.add(n.ID, "translation.language", "translation payload requires a language")
		}
		if n.Translation.Text == "" {
			v.add(n.ID, "translation.text", "translation payload requires text")
		}
	}
	if n.Phonetic != nil && n.Phonetic.IPA == "" {
		v.add(n.ID, "phonetic.ipa", "phonetic payload requires an ipa transcription")
	}
	for i, s := range n.Synonyms {
		if s == "" {
			v.add(n.ID, fmt.Sprintf("synonyms[%d]", i), "synonym entries must be non-empty")
		}
	}
	if n.CEFR != nil {
		if err := validation.Validate(n.CEFR.Level,
			validation.Required,
			validation.In("A1", "A2", "B1", "B2", "C1", "C2")); err != nil {
			v.add(n.ID, "cefr.level", fmt.Sprintf("invalid CEFR level %q", n.CEFR.Level))
		}
	}
}

// checkAccounting recomputes the backoff counters and checks both the
// recomputation and the arithmetic identities. Mismatches are contract
// errors, never silently corrected.
func (v *validator) checkAccounting(root *tree.Node, sum accounting.Summary) {
	fresh, ok := accounting.Verify(root, sum)
	if ok {
		return
	}
	v.add(root.ID, "backoff_counts",
		fmt.Sprintf("counters %+v do not match recomputed %+v", sum, fresh))
}
