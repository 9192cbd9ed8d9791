package validate

import (
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/accounting"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tree"
)

// enrich stamps the minimum contract payload on every node so a fixture
// passes v2_strict: a note, an exact-match trace, and the schema stamp.
func enrich(root *tree.Node) {
	root.Walk(func(n *tree.Node) bool {
		n.SchemaVersion = tree.SchemaV2
		n.Notes = []tree.TypedNote{{Text: "a note", Kind: tree.KindSyntactic, Confidence: 1, Source: tree.SourceRule}}
		n.TemplateSelection = &tree.SelectionTrace{Level: tree.LevelExact}
		return true
	})
}

func hasError(errs []ValidationError, nodeID, fieldPart string) bool {
	for _, e := range errs {
		if e.NodeID == nodeID && strings.Contains(e.FieldPath, fieldPart) {
			return true
		}
	}
	return false
}

func TestTreeValidV2Strict(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	sum := accounting.Compute(root)

	errs := Tree(root, V2Strict, sum)
	if len(errs) != 0 {
		t.Fatalf("valid tree rejected: %v", errs)
	}
}

func TestTreeNilRoot(t *testing.T) {
	errs := Tree(nil, V2Strict, accounting.Summary{})
	if len(errs) != 1 || errs[0].FieldPath != "root" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestLegacyTreePassesV1FailsV2Strict(t *testing.T) {
	root := testutil.LegacyTree()
	// Legacy payloads carry a trace but no ids, spans, roles, or notes.
	root.Walk(func(n *tree.Node) bool {
		n.TemplateSelection = &tree.SelectionTrace{Level: tree.LevelExact}
		return true
	})
	sum := accounting.Compute(root)

	if errs := Tree(root, V1, sum); len(errs) != 0 {
		t.Fatalf("legacy tree rejected under v1: %v", errs)
	}

	errs := Tree(root, V2Strict, sum)
	if len(errs) == 0 {
		t.Fatal("legacy tree accepted under v2_strict")
	}
	var sawSpan, sawID, sawRole, sawNotes, sawSchema bool
	for _, e := range errs {
		switch {
		case e.FieldPath == "source_span":
			sawSpan = true
		case e.FieldPath == "node_id":
			sawID = true
		case e.FieldPath == "grammatical_role":
			sawRole = true
		case e.FieldPath == "notes":
			sawNotes = true
		case e.FieldPath == "schema_version":
			sawSchema = true
		}
	}
	if !sawSpan || !sawID || !sawRole || !sawNotes || !sawSchema {
		t.Errorf("missing expected v2_strict violations: span=%v id=%v role=%v notes=%v schema=%v",
			sawSpan, sawID, sawRole, sawNotes, sawSchema)
	}
}

func TestTreeNestingViolations(t *testing.T) {
	root := testutil.ModalPerfectTree()

	// A word directly under the sentence.
	root.Children = append(root.Children, &tree.Node{
		Type: tree.Word, ID: "wx", Content: "stray",
		Span:            tree.Span{Start: 64, End: 65},
		GrammaticalRole: "stray",
	})
	enrich(root)
	sum := accounting.Compute(root)

	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "s1", "children") {
		t.Errorf("sentence word child not flagged: %v", errs)
	}
}

func TestTreePhraseArity(t *testing.T) {
	root := testutil.ModalPerfectTree()
	root.Children[0].Children = root.Children[0].Children[:1]
	enrich(root)
	sum := accounting.Compute(root)

	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "children") {
		t.Errorf("one-child phrase not flagged: %v", errs)
	}
}

func TestTreeSpanSanity(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)

	// Inverted span.
	root.Children[0].Children[0].Span = tree.Span{Start: 10, End: 3}
	// Child escaping its parent.
	root.Children[1].Children[0].Span = tree.Span{Start: 0, End: 44}

	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "w1", "source_span") {
		t.Errorf("inverted span not flagged: %v", errs)
	}
	if !hasError(errs, "w7", "source_span") {
		t.Errorf("escaping child span not flagged: %v", errs)
	}
}

func TestTreeSiblingOverlap(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	root.Children[0].Children[1].Span = tree.Span{Start: 2, End: 12}

	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	var sawOverlap bool
	for _, e := range errs {
		if strings.Contains(e.Message, "overlap") {
			sawOverlap = true
		}
	}
	if !sawOverlap {
		t.Errorf("sibling overlap not flagged: %v", errs)
	}
}

func TestTreeModalPerfectConstraints(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	vp := root.Children[0]

	// Correct combination passes.
	sum := accounting.Compute(root)
	if errs := Tree(root, V2Strict, sum); len(errs) != 0 {
		t.Fatalf("well-formed modal_perfect rejected: %v", errs)
	}

	// Wrong mood.
	vp.Mood = tree.StringPtr("indicative")
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "mood") {
		t.Errorf("wrong mood not flagged: %v", errs)
	}
	vp.Mood = tree.StringPtr("modal")

	// Tense must stay null.
	vp.Tense = tree.StringPtr("past")
	errs = Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "tense") {
		t.Errorf("non-null tense not flagged: %v", errs)
	}
}

func TestTreeStringNullSentinel(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	root.Children[1].Voice = tree.StringPtr("null")
	root.Children[0].Children[0].Features = map[string]*string{"number": tree.StringPtr("null")}

	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "p2", "voice") {
		t.Errorf("string null in TAM not flagged: %v", errs)
	}
	if !hasError(errs, "w1", "features.number") {
		t.Errorf("string null in features not flagged: %v", errs)
	}
}

func TestTreeBackoffFlagConsistency(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	vp := root.Children[0]

	// Non-exact level without the flag.
	vp.TemplateSelection.Level = tree.LevelPOS
	vp.BackoffUsed = true
	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "quality_flags") {
		t.Errorf("missing backoff flag not caught: %v", errs)
	}

	// Flag present on an exact match.
	vp.TemplateSelection.Level = tree.LevelExact
	vp.BackoffUsed = false
	vp.AddQualityFlag(tree.QualityFlagBackoff)
	sum = accounting.Compute(root)
	errs = Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "quality_flags") {
		t.Errorf("illegal backoff flag not caught: %v", errs)
	}
}

func TestTreeBackoffFieldAgreement(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	vp := root.Children[0]
	vp.TemplateSelection.Level = tree.LevelPOS
	vp.AddQualityFlag(tree.QualityFlagBackoff)
	vp.BackoffUsed = false // disagrees with the level

	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "backoff_used") {
		t.Errorf("field/level disagreement not caught: %v", errs)
	}
}

func TestTreeMatchedLevelReason(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)

	// tam_dropped on a word node is illegal.
	w := root.Children[0].Children[0]
	w.TemplateSelection.MatchedLevelReason = tree.StringPtr(tree.ReasonTAMDropped)
	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "w1", "matched_level_reason") {
		t.Errorf("tam_dropped on word not caught: %v", errs)
	}
	w.TemplateSelection.MatchedLevelReason = nil

	// Unknown reason strings are rejected outright.
	vp := root.Children[0]
	vp.TemplateSelection.MatchedLevelReason = tree.StringPtr("pos_dropped")
	errs = Tree(root, V2Strict, sum)
	if !hasError(errs, "p1", "matched_level_reason") {
		t.Errorf("unknown reason not caught: %v", errs)
	}

	// tam_dropped on the TAM-carrying phrase is legal.
	vp.TemplateSelection.MatchedLevelReason = tree.StringPtr(tree.ReasonTAMDropped)
	errs = Tree(root, V2Strict, sum)
	if hasError(errs, "p1", "matched_level_reason") {
		t.Errorf("legal tam_dropped flagged: %v", errs)
	}
}

func TestTreeSiblingPayloadShapes(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	w := root.Children[0].Children[0]
	w.Translation = &tree.TranslationPayload{Language: "", Text: "elle"}
	w.Phonetic = &tree.PhoneticPayload{}
	w.Synonyms = []string{"pronoun", ""}
	w.CEFR = &tree.CEFRPayload{Level: "Z9"}

	sum := accounting.Compute(root)
	errs := Tree(root, V2Strict, sum)
	for _, field := range []string{"translation.language", "phonetic.ipa", "synonyms[1]", "cefr.level"} {
		if !hasError(errs, "w1", field) {
			t.Errorf("%s violation not caught: %v", field, errs)
		}
	}

	// Well-formed payloads pass untouched.
	w.Translation = &tree.TranslationPayload{Language: "fr", Text: "elle"}
	w.Phonetic = &tree.PhoneticPayload{IPA: "ʃi"}
	w.Synonyms = []string{"pronoun"}
	w.CEFR = &tree.CEFRPayload{Level: "A1"}
	if errs := Tree(root, V2Strict, sum); len(errs) != 0 {
		t.Errorf("valid payloads rejected: %v", errs)
	}
}

func TestTreeAccountingMismatch(t *testing.T) {
	root := testutil.ModalPerfectTree()
	enrich(root)
	sum := accounting.Compute(root)
	sum.Nodes++

	errs := Tree(root, V2Strict, sum)
	if !hasError(errs, "s1", "backoff_counts") {
		t.Errorf("counter mismatch not caught: %v", errs)
	}
}

func TestModeValid(t *testing.T) {
	if !V1.Valid() || !V2Strict.Valid() {
		t.Error("known modes reported invalid")
	}
	if Mode("v3").Valid() {
		t.Error("unknown mode reported valid")
	}
}
