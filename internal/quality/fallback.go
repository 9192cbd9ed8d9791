package quality

import "github.com/starford/ansuz/internal/tree"

// fallbackNotes holds the hand-guaranteed note per node family and TAM
// bucket. Every text here must pass the default filter; the engine is
// never allowed to emit a node without a note, so these are the floor
// the pipeline can always stand on.
var fallbackNotes = map[tree.NodeType]map[string]string{
	tree.Sentence: {
		"_": "This clause combines a subject with a predicate to state one complete thought.",
	},
	tree.Phrase: {
		"_":             "These words operate together as one grammatical unit within the clause.",
		"modal_perfect": "This verb group pairs a modal with the perfect to look back at a past possibility.",
	},
	tree.Word: {
		"_": "This word fills a specific grammatical slot within its phrase.",
	},
}

// FallbackNote returns the deterministic fallback note for the node
// context. The TAM-bucket-specific entry wins when one exists.
func FallbackNote(nc NodeContext) tree.TypedNote {
	byBucket, ok := fallbackNotes[nc.Family]
	if !ok {
		byBucket = fallbackNotes[tree.Word]
	}
	text, ok := byBucket[nc.TAMBucket]
	if !ok {
		text = byBucket["_"]
	}
	return tree.TypedNote{
		Text:       text,
		Kind:       tree.KindSyntactic,
		Confidence: 1,
		Source:     tree.SourceFallback,
	}
}
