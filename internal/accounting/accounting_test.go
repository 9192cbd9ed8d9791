package accounting

import (
	"testing"

	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tree"
)

// markBackoff flags the nodes with the given ids as backoff users and
// stamps a matching selection trace on the sentence root.
func markBackoff(root *tree.Node, sentenceLevel tree.SelectionLevel, ids ...string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	root.Walk(func(n *tree.Node) bool {
		if n.Type == tree.Sentence {
			n.TemplateSelection = &tree.SelectionTrace{Level: sentenceLevel}
			return true
		}
		if _, ok := set[n.ID]; ok {
			n.BackoffUsed = true
		}
		return true
	})
}

func TestComputeCountsAndIdentity(t *testing.T) {
	root := testutil.ModalPerfectTree()
	markBackoff(root, tree.LevelExact, "w1", "w7", "p2")

	sum := Compute(root)

	if sum.LeafNodes != 3 {
		t.Errorf("leaf = %d, want 3", sum.LeafNodes)
	}
	if sum.AggregateNodes != 0 {
		t.Errorf("aggregate = %d, want 0 for exact sentence", sum.AggregateNodes)
	}
	if sum.Nodes != sum.LeafNodes+sum.AggregateNodes {
		t.Errorf("identity broken: %+v", sum)
	}
	if sum.UniqueSpans != 3 {
		t.Errorf("unique spans = %d, want 3", sum.UniqueSpans)
	}
}

func TestComputeSentenceAggregate(t *testing.T) {
	root := testutil.ModalPerfectTree()
	markBackoff(root, tree.LevelFallback, "w1")

	sum := Compute(root)
	if sum.AggregateNodes != 1 {
		t.Errorf("aggregate = %d, want 1 for non-exact sentence", sum.AggregateNodes)
	}
	if sum.Nodes != 2 || sum.LeafNodes != 1 {
		t.Errorf("sum = %+v", sum)
	}
}

func TestComputeUniqueSpansBelowLeafCount(t *testing.T) {
	root := testutil.ModalPerfectTree()
	// Two nodes sharing one span must collapse into one unique span.
	root.Walk(func(n *tree.Node) bool {
		if n.ID == "w2" || n.ID == "w3" {
			n.Span = tree.Span{Start: 4, End: 10}
			n.BackoffUsed = true
		}
		return true
	})
	root.TemplateSelection = &tree.SelectionTrace{Level: tree.LevelExact}

	sum := Compute(root)
	if sum.LeafNodes != 2 || sum.UniqueSpans != 1 {
		t.Errorf("sum = %+v, want 2 leaves over 1 span", sum)
	}
	if sum.UniqueSpans > sum.LeafNodes {
		t.Errorf("unique spans exceed leaf count: %+v", sum)
	}
}

func TestComputeMarksBackoffInSubtree(t *testing.T) {
	root := testutil.ModalPerfectTree()
	// Only a deep word inside the adverbial phrase uses backoff.
	markBackoff(root, tree.LevelExact, "w8")

	Compute(root)

	byID := map[string]*tree.Node{}
	root.Walk(func(n *tree.Node) bool {
		byID[n.ID] = n
		return true
	})

	if !byID["s1"].BackoffInSubtree {
		t.Error("sentence should see descendant backoff at any depth")
	}
	if !byID["p2"].BackoffInSubtree {
		t.Error("parent phrase should see child backoff")
	}
	if byID["p1"].BackoffInSubtree {
		t.Error("sibling phrase wrongly marked")
	}
	// Words never carry the aggregate field.
	if byID["w8"].BackoffInSubtree {
		t.Error("leaf marked with subtree aggregate")
	}
}

func TestBackoffInSubtreeExcludesSelf(t *testing.T) {
	root := testutil.ModalPerfectTree()
	// The phrase itself backs off but nothing below it does.
	root.Walk(func(n *tree.Node) bool {
		if n.ID == "p2" {
			n.BackoffUsed = true
		}
		return true
	})
	root.TemplateSelection = &tree.SelectionTrace{Level: tree.LevelExact}

	Compute(root)

	root.Walk(func(n *tree.Node) bool {
		if n.ID == "p2" && n.BackoffInSubtree {
			t.Error("backoff_in_subtree must cover strict descendants only")
		}
		if n.ID == "s1" && !n.BackoffInSubtree {
			t.Error("sentence should see the phrase's own backoff")
		}
		return true
	})
}

func TestVerifyDetectsTampering(t *testing.T) {
	root := testutil.ModalPerfectTree()
	markBackoff(root, tree.LevelExact, "w1", "w7")

	sum := Compute(root)
	if _, ok := Verify(root, sum); !ok {
		t.Fatal("fresh summary failed verification")
	}

	bad := sum
	bad.Nodes++
	if _, ok := Verify(root, bad); ok {
		t.Error("inflated node count passed verification")
	}

	bad = sum
	bad.UniqueSpans = bad.LeafNodes + 1
	if _, ok := Verify(root, bad); ok {
		t.Error("unique spans above leaf count passed verification")
	}
}

func TestDebugCollectsSortedReasons(t *testing.T) {
	root := testutil.ModalPerfectTree()
	root.TemplateSelection = &tree.SelectionTrace{Level: tree.LevelExact}
	root.Children[0].RejectedCandidateStats = []tree.RejectedCandidateStat{
		{Text: "bad one", Count: 1, Reasons: []string{"NOTE_TOO_SHORT"}},
	}
	root.Children[1].RejectedCandidateStats = []tree.RejectedCandidateStat{
		{Text: "bad two", Count: 2, Reasons: []string{"MODEL_OUTPUT_LOW_QUALITY", "NOTE_TOO_SHORT"}},
	}

	sum := Compute(root)
	dbg := Debug(root, sum)

	want := []string{"MODEL_OUTPUT_LOW_QUALITY", "NOTE_TOO_SHORT"}
	if len(dbg.Reasons) != len(want) {
		t.Fatalf("reasons = %v", dbg.Reasons)
	}
	for i := range want {
		if dbg.Reasons[i] != want[i] {
			t.Errorf("reasons = %v, want %v", dbg.Reasons, want)
		}
	}
}
