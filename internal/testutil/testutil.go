// Package testutil provides shared test helpers for building fixture
// trees and temporary databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/tree"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Word builds a leaf word node.
func Word(id, content string, start, end uint, pos, dep, role string) *tree.Node {
	return &tree.Node{
		Type:            tree.Word,
		ID:              id,
		Content:         content,
		Span:            tree.Span{Start: start, End: end},
		PartOfSpeech:    pos,
		DepLabel:        dep,
		GrammaticalRole: role,
	}
}

// Phrase builds a phrase node over the given children.
func Phrase(id, content string, start, end uint, pos, dep, role string, children ...*tree.Node) *tree.Node {
	return &tree.Node{
		Type:            tree.Phrase,
		ID:              id,
		Content:         content,
		Span:            tree.Span{Start: start, End: end},
		PartOfSpeech:    pos,
		DepLabel:        dep,
		GrammaticalRole: role,
		Children:        children,
	}
}

// SentenceNode builds a sentence root over the given children and wires
// parent ids through the whole tree.
func SentenceNode(id, content string, start, end uint, children ...*tree.Node) *tree.Node {
	root := &tree.Node{
		Type:            tree.Sentence,
		ID:              id,
		Content:         content,
		Span:            tree.Span{Start: start, End: end},
		GrammaticalRole: "root",
		Children:        children,
	}
	linkParents(root)
	return root
}

func linkParents(n *tree.Node) {
	for _, c := range n.Children {
		id := n.ID
		c.ParentID = &id
		linkParents(c)
	}
}

// ModalPerfectSentence is the raw text of the fixture built by
// ModalPerfectTree.
const ModalPerfectSentence = "She should have trusted her instincts before making the decision."

// ModalPerfectTree builds a full skeleton for ModalPerfectSentence: a
// modal-perfect verb phrase, a temporal adverbial phrase, and leaf words
// including the auxiliary "should".
func ModalPerfectTree() *tree.Node {
	vp := Phrase("p1", "She should have trusted her instincts", 0, 37, "verb", "", "predicate",
		Word("w1", "She", 0, 3, "pron", "nsubj", "subject"),
		Word("w2", "should", 4, 10, "aux", "aux", "auxiliary"),
		Word("w3", "have", 11, 15, "aux", "aux", "auxiliary"),
		Word("w4", "trusted", 16, 23, "verb", "root", "predicate"),
		Word("w5", "her", 24, 27, "pron", "poss", "determiner"),
		Word("w6", "instincts", 28, 37, "noun", "obj", "object"),
	)
	vp.Mood = tree.StringPtr("modal")
	vp.Aspect = tree.StringPtr("perfect")
	vp.TAMConstruction = tree.StringPtr("modal_perfect")

	advp := Phrase("p2", "before making the decision.", 38, 65, "verb", "advcl", "adverbial",
		Word("w7", "before", 38, 44, "adp", "mark", "marker"),
		Word("w8", "making", 45, 51, "verb", "advcl", "predicate"),
		Word("w9", "the", 52, 55, "det", "det", "determiner"),
		Word("w10", "decision", 56, 64, "noun", "obj", "object"),
		Word("w11", ".", 64, 65, "punct", "punct", "punctuation"),
	)

	return SentenceNode("s1", ModalPerfectSentence, 0, 65, vp, advp)
}

// LegacySentence is the raw text of the fixture built by LegacyTree.
const LegacySentence = "The cat sleeps soundly."

// LegacyTree builds a minimal pre-contract tree: no node ids, no spans,
// no grammatical roles. Valid under v1, rejected under v2_strict.
func LegacyTree() *tree.Node {
	return &tree.Node{
		Type:    tree.Sentence,
		Content: LegacySentence,
		Children: []*tree.Node{
			{
				Type:         tree.Phrase,
				Content:      "The cat",
				PartOfSpeech: "noun",
				Children: []*tree.Node{
					{Type: tree.Word, Content: "The", PartOfSpeech: "det"},
					{Type: tree.Word, Content: "cat", PartOfSpeech: "noun"},
				},
			},
			{
				Type:         tree.Phrase,
				Content:      "sleeps soundly",
				PartOfSpeech: "verb",
				Children: []*tree.Node{
					{Type: tree.Word, Content: "sleeps", PartOfSpeech: "verb"},
					{Type: tree.Word, Content: "soundly", PartOfSpeech: "adv"},
				},
			},
		},
	}
}
