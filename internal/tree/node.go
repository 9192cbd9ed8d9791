// Package tree defines the annotated sentence tree: the node data model,
// its structural invariants, and the enrichment/trace fields filled in by
// the annotation engine. Structural fields are fixed when the skeleton
// builder creates the tree and must never change afterwards.
package tree

import "fmt"

// NodeType is the closed set of node kinds. Sentence nodes contain Phrase
// nodes, Phrase nodes contain Word nodes, Word nodes are leaves.
type NodeType string

const (
	Sentence NodeType = "sentence"
	Phrase   NodeType = "phrase"
	Word     NodeType = "word"
)

// Valid reports whether t is one of the three known node types.
func (t NodeType) Valid() bool {
	switch t {
	case Sentence, Phrase, Word:
		return true
	}
	return false
}

// NoteKind classifies what a note explains.
type NoteKind string

const (
	KindSemantic      NoteKind = "semantic"
	KindSyntactic     NoteKind = "syntactic"
	KindMorphological NoteKind = "morphological"
	KindDiscourse     NoteKind = "discourse"
)

// NoteSource records where an accepted note came from.
type NoteSource string

const (
	SourceModel    NoteSource = "model"
	SourceRule     NoteSource = "rule"
	SourceFallback NoteSource = "fallback"
)

// Span is a half-open [Start, End) character range into the original sentence.
type Span struct {
	Start uint `json:"start"`
	End   uint `json:"end"`
}

// Contains reports whether other lies fully within s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share at least one position.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

// TypedNote is one explanatory note attached to a node.
type TypedNote struct {
	Text       string     `json:"text"`
	Kind       NoteKind   `json:"kind"`
	Confidence float64    `json:"confidence"`
	Source     NoteSource `json:"source"`
}

// RejectedCandidateStat aggregates every rejection of one canonical
// candidate text on one node. Reasons is kept sorted and duplicate-free.
type RejectedCandidateStat struct {
	Text    string   `json:"text"`
	Count   uint     `json:"count"`
	Reasons []string `json:"reasons"`
}

// SelectionLevel identifies which backoff level produced the template match.
type SelectionLevel string

const (
	LevelExact    SelectionLevel = "L1_EXACT"
	LevelDropTAM  SelectionLevel = "L2_DROP_TAM"
	LevelPOS      SelectionLevel = "L3_LEVEL_POS"
	LevelFallback SelectionLevel = "L4_LEVEL_FALLBACK"
	LevelNone     SelectionLevel = "NONE"
)

// SelectionMode identifies how the final note text was chosen.
type SelectionMode string

const (
	ModeRuleL1      SelectionMode = "rule_l1_exact"
	ModeRuleL2      SelectionMode = "rule_l2_drop_tam"
	ModeRuleBackoff SelectionMode = "rule_l3_backoff"
	ModeModel       SelectionMode = "model"
	ModeTwoStage    SelectionMode = "two_stage"
)

// SelectionTrace records the backoff search for one node.
type SelectionTrace struct {
	Level              SelectionLevel `json:"level"`
	ContextKeyL1       string         `json:"context_key_l1"`
	ContextKeyL2       string         `json:"context_key_l2"`
	ContextKeyL3       string         `json:"context_key_l3"`
	ContextKeyMatched  string         `json:"context_key_matched"`
	MatchedLevelReason *string        `json:"matched_level_reason"`
	SelectionMode      SelectionMode  `json:"selection_mode"`
}

// ReasonTAMDropped is the only defined matched_level_reason value. It is
// legal only on TAM-relevant nodes (Sentence/Phrase carrying TAM facts).
const ReasonTAMDropped = "tam_dropped"

// QualityFlagBackoff marks a node whose template came from a non-exact level.
const QualityFlagBackoff = "backoff_used"

// SchemaV2 is the schema_version stamped on nodes under the strict contract.
const SchemaV2 = "v2"

// Node is one node of the annotated tree. Children stays the last declared
// field: the presentation layer relies on it serializing last.
type Node struct {
	Type            NodeType `json:"type"`
	ID              string   `json:"node_id"`
	ParentID        *string  `json:"parent_id"`
	Content         string   `json:"content"`
	Span            Span     `json:"source_span"`
	PartOfSpeech    string   `json:"part_of_speech"`
	GrammaticalRole string   `json:"grammatical_role"`

	// TAM facts. A nil pointer is a true absent value; the string "null"
	// is forbidden at the boundary and never reintroduced here.
	Tense           *string `json:"tense"`
	Aspect          *string `json:"aspect"`
	Mood            *string `json:"mood"`
	Voice           *string `json:"voice"`
	Finiteness      *string `json:"finiteness"`
	TAMConstruction *string `json:"tam_construction"`

	DepLabel string             `json:"dep_label,omitempty"`
	HeadID   *string            `json:"head_id,omitempty"`
	Features map[string]*string `json:"features,omitempty"`

	SchemaVersion string `json:"schema_version,omitempty"`

	// Enrichment payload, written by the annotation engine.
	Notes           []TypedNote `json:"notes"`
	LinguisticNotes []string    `json:"linguistic_notes"`

	// Diagnostics and trace.
	QualityFlags           []string                `json:"quality_flags"`
	RejectedCandidates     []string                `json:"rejected_candidates,omitempty"`
	RejectedCandidateStats []RejectedCandidateStat `json:"rejected_candidate_stats,omitempty"`
	ReasonCodes            []string                `json:"reason_codes"`
	TemplateSelection      *SelectionTrace         `json:"template_selection,omitempty"`
	BackoffUsed            bool                    `json:"backoff_used"`
	BackoffInSubtree       bool                    `json:"backoff_in_subtree"`

	// External enrichment payloads (attached by later pipeline stages).
	Translation *TranslationPayload `json:"translation,omitempty"`
	Phonetic    *PhoneticPayload    `json:"phonetic,omitempty"`
	Synonyms    []string            `json:"synonyms,omitempty"`
	CEFR        *CEFRPayload        `json:"cefr,omitempty"`

	Children []*Node `json:"children"`
}

// TranslationPayload is attached by the external translation stage.
// Only its shape is checked here.
type TranslationPayload struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// PhoneticPayload is attached by the external phonetics stage.
type PhoneticPayload struct {
	IPA string `json:"ipa"`
}

// CEFRPayload is attached by the external proficiency-labelling stage.
type CEFRPayload struct {
	Level string `json:"level"`
}

// HasQualityFlag reports whether flag is present on the node.
func (n *Node) HasQualityFlag(flag string) bool {
	for _, f := range n.QualityFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddQualityFlag adds flag if absent, keeping QualityFlags sorted.
func (n *Node) AddQualityFlag(flag string) {
	if n.HasQualityFlag(flag) {
		return
	}
	i := 0
	for i < len(n.QualityFlags) && n.QualityFlags[i] < flag {
		i++
	}
	n.QualityFlags = append(n.QualityFlags, "")
	copy(n.QualityFlags[i+1:], n.QualityFlags[i:])
	n.QualityFlags[i] = flag
}

// TAMRelevant reports whether the node may legally carry the "tam_dropped"
// selection reason: Sentence or Phrase with at least one non-null TAM fact.
func (n *Node) TAMRelevant() bool {
	if n.Type != Sentence && n.Type != Phrase {
		return false
	}
	return n.Tense != nil || n.Aspect != nil || n.Mood != nil ||
		n.Voice != nil || n.Finiteness != nil || n.TAMConstruction != nil
}

// Walk visits n and every descendant in depth-first pre-order. Traversal
// stops early when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Descendants returns every node of the subtree rooted at n, root first.
func (n *Node) Descendants() []*Node {
	var out []*Node
	n.Walk(func(node *Node) bool {
		out = append(out, node)
		return true
	})
	return out
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.ParentID = clonePtr(n.ParentID)
	cp.Tense = clonePtr(n.Tense)
	cp.Aspect = clonePtr(n.Aspect)
	cp.Mood = clonePtr(n.Mood)
	cp.Voice = clonePtr(n.Voice)
	cp.Finiteness = clonePtr(n.Finiteness)
	cp.TAMConstruction = clonePtr(n.TAMConstruction)
	cp.HeadID = clonePtr(n.HeadID)
	if n.Features != nil {
		cp.Features = make(map[string]*string, len(n.Features))
		for k, v := range n.Features {
			cp.Features[k] = clonePtr(v)
		}
	}
	cp.Notes = append([]TypedNote(nil), n.Notes...)
	cp.LinguisticNotes = append([]string(nil), n.LinguisticNotes...)
	cp.QualityFlags = append([]string(nil), n.QualityFlags...)
	cp.RejectedCandidates = append([]string(nil), n.RejectedCandidates...)
	cp.ReasonCodes = append([]string(nil), n.ReasonCodes...)
	if n.RejectedCandidateStats != nil {
		cp.RejectedCandidateStats = make([]RejectedCandidateStat, len(n.RejectedCandidateStats))
		for i, s := range n.RejectedCandidateStats {
			cp.RejectedCandidateStats[i] = RejectedCandidateStat{
				Text:    s.Text,
				Count:   s.Count,
				Reasons: append([]string(nil), s.Reasons...),
			}
		}
	}
	if n.TemplateSelection != nil {
		ts := *n.TemplateSelection
		ts.MatchedLevelReason = clonePtr(n.TemplateSelection.MatchedLevelReason)
		cp.TemplateSelection = &ts
	}
	if n.Translation != nil {
		t := *n.Translation
		cp.Translation = &t
	}
	if n.Phonetic != nil {
		p := *n.Phonetic
		cp.Phonetic = &p
	}
	cp.Synonyms = append([]string(nil), n.Synonyms...)
	if n.CEFR != nil {
		c := *n.CEFR
		cp.CEFR = &c
	}
	if n.Children != nil {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s. Fixture and boundary helper.
func StringPtr(s string) *string { return &s }
