// Package accounting computes the tree-wide backoff counters and the
// per-node backoff_in_subtree aggregate. These are pure reductions over
// a finished tree; the validator cross-checks them and never repairs a
// mismatch silently.
package accounting

import (
	"sort"

	"github.com/starford/ansuz/internal/tree"
)

// Summary holds the tree-level backoff counters.
type Summary struct {
	// LeafNodes counts non-sentence nodes with backoff_used set.
	LeafNodes int `json:"backoff_leaf_nodes_count"`
	// AggregateNodes is 1 when the sentence node itself matched at a
	// non-exact level, else 0.
	AggregateNodes int `json:"backoff_aggregate_nodes_count"`
	// Nodes is always LeafNodes + AggregateNodes.
	Nodes int `json:"backoff_nodes_count"`
	// UniqueSpans counts distinct source spans among backoff leaf nodes.
	UniqueSpans int `json:"backoff_unique_spans_count"`
}

// DebugSummary extends Summary with the rejection reasons seen across
// the tree. Emitted only when the caller asks for debug output.
type DebugSummary struct {
	Nodes          int      `json:"nodes"`
	LeafNodes      int      `json:"leaf_nodes"`
	AggregateNodes int      `json:"aggregate_nodes_count"`
	UniqueSpans    int      `json:"unique_spans"`
	Reasons        []string `json:"reasons"`
}

// Compute derives the counters for the tree rooted at root and stamps
// backoff_in_subtree on every Sentence and Phrase node: true iff any
// strict descendant, at any depth, has backoff_used set.
func Compute(root *tree.Node) Summary {
	var sum Summary
	spans := make(map[tree.Span]struct{})

	root.Walk(func(n *tree.Node) bool {
		if n.Type == tree.Sentence {
			if n.TemplateSelection != nil && n.TemplateSelection.Level != tree.LevelExact {
				sum.AggregateNodes = 1
			}
			return true
		}
		if n.BackoffUsed {
			sum.LeafNodes++
			spans[n.Span] = struct{}{}
		}
		return true
	})

	sum.UniqueSpans = len(spans)
	sum.Nodes = sum.LeafNodes + sum.AggregateNodes

	markSubtree(root)
	return sum
}

// markSubtree sets BackoffInSubtree bottom-up and reports whether the
// subtree rooted at n contains any backoff node (including n itself).
func markSubtree(n *tree.Node) bool {
	any := false
	for _, c := range n.Children {
		if markSubtree(c) {
			any = true
		}
	}
	if n.Type == tree.Sentence || n.Type == tree.Phrase {
		n.BackoffInSubtree = any
	}
	return any || n.BackoffUsed
}

// Debug builds the debug summary for root with the given counters.
func Debug(root *tree.Node, sum Summary) DebugSummary {
	reasonSet := make(map[string]struct{})
	root.Walk(func(n *tree.Node) bool {
		for _, s := range n.RejectedCandidateStats {
			for _, r := range s.Reasons {
				reasonSet[r] = struct{}{}
			}
		}
		return true
	})
	reasons := make([]string, 0, len(reasonSet))
	for r := range reasonSet {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return DebugSummary{
		Nodes:          sum.Nodes,
		LeafNodes:      sum.LeafNodes,
		AggregateNodes: sum.AggregateNodes,
		UniqueSpans:    sum.UniqueSpans,
		Reasons:        reasons,
	}
}

// Verify recomputes the counters from the tree's per-node state and
// checks the identities against sum. It returns the recomputed summary
// and whether everything holds; mismatches are fatal to the caller.
func Verify(root *tree.Node, sum Summary) (Summary, bool) {
	fresh := recount(root)
	ok := fresh == sum &&
		sum.Nodes == sum.LeafNodes+sum.AggregateNodes &&
		sum.UniqueSpans <= sum.LeafNodes
	return fresh, ok
}

// recount mirrors Compute without touching the tree.
func recount(root *tree.Node) Summary {
	var sum Summary
	spans := make(map[tree.Span]struct{})
	root.Walk(func(n *tree.Node) bool {
		if n.Type == tree.Sentence {
			if n.TemplateSelection != nil && n.TemplateSelection.Level != tree.LevelExact {
				sum.AggregateNodes = 1
			}
			return true
		}
		if n.BackoffUsed {
			sum.LeafNodes++
			spans[n.Span] = struct{}{}
		}
		return true
	})
	sum.UniqueSpans = len(spans)
	sum.Nodes = sum.LeafNodes + sum.AggregateNodes
	return sum
}
