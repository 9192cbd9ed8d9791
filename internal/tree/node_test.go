package tree

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestNodeTypeValid(t *testing.T) {
	for _, typ := range []NodeType{Sentence, Phrase, Word} {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if NodeType("clause").Valid() {
		t.Error("unknown type accepted")
	}
}

func TestSpanContainsAndOverlaps(t *testing.T) {
	outer := Span{Start: 0, End: 10}
	inner := Span{Start: 2, End: 5}
	if !outer.Contains(inner) {
		t.Error("outer should contain inner")
	}
	if inner.Contains(outer) {
		t.Error("inner should not contain outer")
	}

	// Half-open ranges: touching spans do not overlap.
	a := Span{Start: 0, End: 3}
	b := Span{Start: 3, End: 6}
	if a.Overlaps(b) {
		t.Error("adjacent spans should not overlap")
	}
	if !a.Overlaps(Span{Start: 2, End: 4}) {
		t.Error("intersecting spans should overlap")
	}
}

func TestTAMRelevant(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"word with tense", Node{Type: Word, Tense: strPtr("past")}, false},
		{"phrase without tam", Node{Type: Phrase}, false},
		{"phrase with tense", Node{Type: Phrase, Tense: strPtr("past")}, true},
		{"phrase with construction only", Node{Type: Phrase, TAMConstruction: strPtr("modal_perfect")}, true},
		{"sentence with mood", Node{Type: Sentence, Mood: strPtr("indicative")}, true},
	}
	for _, tt := range tests {
		if got := tt.node.TAMRelevant(); got != tt.want {
			t.Errorf("%s: TAMRelevant() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAddQualityFlagSortedAndDeduped(t *testing.T) {
	n := &Node{}
	n.AddQualityFlag("model_used")
	n.AddQualityFlag(QualityFlagBackoff)
	n.AddQualityFlag("model_used")

	if len(n.QualityFlags) != 2 {
		t.Fatalf("expected 2 flags, got %v", n.QualityFlags)
	}
	if n.QualityFlags[0] != QualityFlagBackoff || n.QualityFlags[1] != "model_used" {
		t.Errorf("flags not sorted: %v", n.QualityFlags)
	}
	if !n.HasQualityFlag(QualityFlagBackoff) {
		t.Error("backoff flag missing")
	}
}

func TestWalkPreOrderAndEarlyStop(t *testing.T) {
	root := &Node{ID: "s", Type: Sentence, Children: []*Node{
		{ID: "p", Type: Phrase, Children: []*Node{
			{ID: "w1", Type: Word},
			{ID: "w2", Type: Word},
		}},
		{ID: "w3", Type: Word},
	}}

	var order []string
	root.Walk(func(n *Node) bool {
		order = append(order, n.ID)
		return true
	})
	want := "s,p,w1,w2,w3"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("walk order = %s, want %s", got, want)
	}

	order = nil
	root.Walk(func(n *Node) bool {
		order = append(order, n.ID)
		return n.ID != "p"
	})
	if got := strings.Join(order, ","); got != "s,p" {
		t.Errorf("early stop order = %s, want s,p", got)
	}

	if got := len(root.Descendants()); got != 5 {
		t.Errorf("Descendants() = %d nodes, want 5", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	root := &Node{
		Type:     Phrase,
		ID:       "p1",
		Tense:    strPtr("past"),
		Features: map[string]*string{"number": strPtr("plural")},
		Notes:    []TypedNote{{Text: "original", Kind: KindSyntactic}},
		Children: []*Node{{Type: Word, ID: "w1", Content: "cats"}},
	}
	cp := root.Clone()

	*cp.Tense = "present"
	cp.Notes[0].Text = "changed"
	cp.Children[0].Content = "dogs"
	*cp.Features["number"] = "singular"

	if *root.Tense != "past" {
		t.Error("tense pointer shared between clone and original")
	}
	if root.Notes[0].Text != "original" {
		t.Error("notes slice shared")
	}
	if root.Children[0].Content != "cats" {
		t.Error("children shared")
	}
	if *root.Features["number"] != "plural" {
		t.Error("features map shared")
	}
}
