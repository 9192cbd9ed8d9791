package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/ansuz/internal/accounting"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/tree"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// encodeDocument wraps the enriched tree in the sentence-keyed contract
// object used on the wire and in storage.
func encodeDocument(sentence string, root *tree.Node) (json.RawMessage, error) {
	raw, err := tree.Encode(root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{sentence: raw})
}

func summaryFromRow(row *store.AnnotationRow) accounting.Summary {
	return accounting.Summary{
		LeafNodes:      row.BackoffLeaf,
		AggregateNodes: row.BackoffAgg,
		Nodes:          row.BackoffNodes,
		UniqueSpans:    row.BackoffSpans,
	}
}
