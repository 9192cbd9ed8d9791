package tree

import (
	"encoding/json"
	"fmt"
)

// Decode parses a tree from JSON and rejects malformed input at the
// boundary: unknown node types and the literal string "null" in any
// nullable TAM or feature field. The sentinel never survives past here.
func Decode(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("tree: decode: %w", err)
	}
	var verr error
	root.Walk(func(n *Node) bool {
		if !n.Type.Valid() {
			verr = fmt.Errorf("tree: node %s: unknown type %q", n.ID, n.Type)
			return false
		}
		for name, v := range map[string]*string{
			"tense": n.Tense, "aspect": n.Aspect, "mood": n.Mood,
			"voice": n.Voice, "finiteness": n.Finiteness,
			"tam_construction": n.TAMConstruction,
		} {
			if v != nil && *v == "null" {
				verr = fmt.Errorf("tree: node %s: field %s carries the string sentinel \"null\"", n.ID, name)
				return false
			}
		}
		for k, v := range n.Features {
			if v != nil && *v == "null" {
				verr = fmt.Errorf("tree: node %s: feature %s carries the string sentinel \"null\"", n.ID, k)
				return false
			}
		}
		return true
	})
	if verr != nil {
		return nil, verr
	}
	return &root, nil
}

// Encode serializes the tree. Field order follows the Node declaration,
// so children always land last in every object.
func Encode(root *Node) ([]byte, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("tree: encode: %w", err)
	}
	return data, nil
}
