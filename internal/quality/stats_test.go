package quality

import (
	"reflect"
	"testing"

	"github.com/starford/ansuz/internal/tree"
)

func TestStatsCollectorDedupesByNormKey(t *testing.T) {
	c := NewStatsCollector()
	c.Record("The modal should.", "the modal should", ReasonLowQuality)
	c.Record("the modal should", "the modal should", ReasonUnsuitable)

	stats := c.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(stats))
	}
	if stats[0].Count != 2 {
		t.Errorf("count = %d, want 2", stats[0].Count)
	}
	// First recorded spelling is kept as the display text.
	if stats[0].Text != "The modal should." {
		t.Errorf("text = %q", stats[0].Text)
	}
	want := []string{ReasonLowQuality, ReasonUnsuitable}
	if !reflect.DeepEqual(stats[0].Reasons, want) {
		t.Errorf("reasons = %v, want %v", stats[0].Reasons, want)
	}
}

func TestStatsCollectorReasonsSortedAndUnique(t *testing.T) {
	c := NewStatsCollector()
	c.Record("bad.", "bad", ReasonUnsuitable)
	c.Record("bad.", "bad", ReasonTooShort)
	c.Record("bad.", "bad", ReasonUnsuitable)

	stats := c.Stats()
	if stats[0].Count != 3 {
		t.Errorf("count = %d, want 3", stats[0].Count)
	}
	if len(stats[0].Reasons) != 2 {
		t.Fatalf("reasons = %v, want 2 distinct", stats[0].Reasons)
	}
	for i := 1; i < len(stats[0].Reasons); i++ {
		if stats[0].Reasons[i-1] > stats[0].Reasons[i] {
			t.Errorf("reasons not sorted: %v", stats[0].Reasons)
		}
	}
}

func TestStatsCollectorKeepsFirstOccurrenceOrder(t *testing.T) {
	c := NewStatsCollector()
	c.Record("zeta note.", "zeta note", ReasonLowQuality)
	c.Record("alpha note.", "alpha note", ReasonLowQuality)
	c.Record("zeta note.", "zeta note", ReasonLowQuality)

	stats := c.Stats()
	if len(stats) != 2 || stats[0].Text != "zeta note." || stats[1].Text != "alpha note." {
		t.Errorf("order lost: %+v", stats)
	}
	raw := c.Rejected()
	if len(raw) != 3 {
		t.Errorf("raw rejections = %v, want 3 entries", raw)
	}
	if c.Empty() {
		t.Error("Empty() on a non-empty collector")
	}
}

func TestFallbackNotePerFamilyAndBucket(t *testing.T) {
	generic := FallbackNote(NodeContext{Family: tree.Phrase})
	modal := FallbackNote(NodeContext{Family: tree.Phrase, TAMBucket: "modal_perfect"})
	if generic.Text == modal.Text {
		t.Error("modal_perfect bucket should carry its own note")
	}
	if modal.Source != tree.SourceFallback || modal.Confidence != 1 {
		t.Errorf("fallback provenance wrong: %+v", modal)
	}
}

func TestFallbackNotesPassTheDefaultFilter(t *testing.T) {
	f := defaultFilter(t)
	contexts := []NodeContext{
		{Family: tree.Sentence},
		{Family: tree.Phrase},
		{Family: tree.Phrase, TAMBucket: "modal_perfect"},
		{Family: tree.Phrase, HeadLexeme: "before", Content: "before making the decision"},
		{Family: tree.Word},
	}
	for _, nc := range contexts {
		note := FallbackNote(nc)
		if v := f.Check(note.Text, nc); !v.Accepted {
			t.Errorf("fallback note for %v rejected: %q (%q)", nc.Family, v.Reason, note.Text)
		}
	}
}
