// Package guard enforces frozen structure: enrichment passes may add
// note and trace payloads, but the structural fields fixed by the
// skeleton builder must come out of every pass bit-identical.
package guard

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/tree"
)

// nodeShape is the frozen projection of one node. parent_id is copied
// by value: holding the node's pointer would alias the live tree and
// let an in-place write slip past Verify.
type nodeShape struct {
	typ          tree.NodeType
	id           string
	parentID     string
	parentSet    bool
	content      string
	span         tree.Span
	partOfSpeech string
	childCount   int
	childIDs     []string
}

// Snapshot captures the structural shape of a tree before an enrichment
// pass. Nodes are recorded in pre-order, so child order differences show
// up both in the parent's child list and in the sequence itself.
type Snapshot struct {
	shapes []nodeShape
}

// Capture records the frozen fields of every node in the tree.
func Capture(root *tree.Node) *Snapshot {
	s := &Snapshot{}
	root.Walk(func(n *tree.Node) bool {
		shape := nodeShape{
			typ:          n.Type,
			id:           n.ID,
			content:      n.Content,
			span:         n.Span,
			partOfSpeech: n.PartOfSpeech,
			childCount:   len(n.Children),
		}
		if n.ParentID != nil {
			shape.parentID = *n.ParentID
			shape.parentSet = true
		}
		for _, c := range n.Children {
			shape.childIDs = append(shape.childIDs, c.ID)
		}
		s.shapes = append(s.shapes, shape)
		return true
	})
	return s
}

// Verify compares the tree against the snapshot and returns an error
// naming the first divergent field and node id. Any difference is a
// programming defect in an enrichment stage; callers must abort the pass.
func (s *Snapshot) Verify(root *tree.Node) error {
	var after []*tree.Node
	root.Walk(func(n *tree.Node) bool {
		after = append(after, n)
		return true
	})

	if len(after) != len(s.shapes) {
		return fmt.Errorf("%w: node count changed from %d to %d",
			apperr.ErrFrozenStructure, len(s.shapes), len(after))
	}

	for i, want := range s.shapes {
		n := after[i]
		switch {
		case n.Type != want.typ:
			return violation(want.id, "type")
		case n.ID != want.id:
			return violation(want.id, "node_id")
		case !parentEqual(n.ParentID, want):
			return violation(want.id, "parent_id")
		case n.Content != want.content:
			return violation(want.id, "content")
		case n.Span != want.span:
			return violation(want.id, "source_span")
		case n.PartOfSpeech != want.partOfSpeech:
			return violation(want.id, "part_of_speech")
		case len(n.Children) != want.childCount:
			return violation(want.id, "children count")
		}
		for j, c := range n.Children {
			if c.ID != want.childIDs[j] {
				return violation(want.id, "children order")
			}
		}
	}
	return nil
}

func violation(nodeID, field string) error {
	return fmt.Errorf("%w: node %s: field %s diverged", apperr.ErrFrozenStructure, nodeID, field)
}

func parentEqual(got *string, want nodeShape) bool {
	if got == nil {
		return !want.parentSet
	}
	return want.parentSet && *got == want.parentID
}
