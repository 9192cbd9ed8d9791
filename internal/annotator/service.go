// Package annotator is the service layer. It runs the full annotation
// pass over one sentence tree (enrichment fan-out, structure guard,
// backoff accounting, contract validation) and persists the result.
package annotator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/accounting"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/assembler"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/guard"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/tree"
	"github.com/starford/ansuz/internal/validate"
)

// EventCallback is invoked after service-level state changes.
// kind is "annotation.completed", "annotation.failed", or "annotation.deleted".
type EventCallback func(kind string, data map[string]any)

// Service coordinates the annotation engine, registry, and store.
type Service struct {
	reg         *registry.Handle
	asm         *assembler.Assembler
	db          store.AnnotationStore
	concurrency int
	cb          EventCallback

	defaultNoteMode       assembler.NoteMode
	defaultValidationMode validate.Mode
}

// NewService creates a Service. db may be nil (no persistence);
// cb may be nil (no events).
func NewService(reg *registry.Handle, asm *assembler.Assembler, db store.AnnotationStore, concurrency int, noteMode assembler.NoteMode, validationMode validate.Mode, cb EventCallback) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		reg:                   reg,
		asm:                   asm,
		db:                    db,
		concurrency:           concurrency,
		cb:                    cb,
		defaultNoteMode:       noteMode,
		defaultValidationMode: validationMode,
	}
}

// Request is one annotation run. Tree is the skeleton produced by the
// external parser; its structural fields are already frozen.
type Request struct {
	Sentence       string
	Tree           *tree.Node
	NoteMode       assembler.NoteMode
	ValidationMode validate.Mode
	Debug          bool
	// Refresh bypasses the stored result for this sentence/mode/registry
	// combination and re-annotates.
	Refresh bool
}

// Result is the outcome of one annotation run.
type Result struct {
	ID              string
	Sentence        string
	Tree            *tree.Node
	Valid           bool
	Errors          []validate.ValidationError
	Summary         accounting.Summary
	Debug           *accounting.DebugSummary
	RegistryVersion string
	Cached          bool
}

// Annotate runs the engine over req.Tree. Contract violations come back
// inside the Result; only structural corruption and infrastructure
// failures surface as errors.
func (s *Service) Annotate(ctx context.Context, req Request) (*Result, error) {
	if req.Tree == nil {
		return nil, fmt.Errorf("annotator: request tree is required")
	}
	noteMode := req.NoteMode
	if noteMode == "" {
		noteMode = s.defaultNoteMode
	}
	if !noteMode.Valid() {
		return nil, fmt.Errorf("annotator: unknown note mode %q", noteMode)
	}
	valMode := req.ValidationMode
	if valMode == "" {
		valMode = s.defaultValidationMode
	}
	if !valMode.Valid() {
		return nil, fmt.Errorf("annotator: unknown validation mode %q", valMode)
	}

	snap := s.reg.Snapshot()
	key := checksum.AnnotationKey(req.Sentence, snap.Version(), string(noteMode), string(valMode))

	if s.db != nil && !req.Refresh {
		if cached, err := s.cached(key, req.Sentence, snap.Version()); err == nil {
			return cached, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	before := guard.Capture(req.Tree)

	// Per-node enrichment is independent across nodes; fan out bounded
	// by the configured concurrency and join before the tree-wide steps.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, n := range req.Tree.Descendants() {
		n := n
		g.Go(func() error {
			s.asm.Enrich(gctx, n, snap, noteMode)
			s.stamp(n, valMode)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("annotator: enrichment pass: %w", err)
	}

	if err := before.Verify(req.Tree); err != nil {
		// A structural diff is a defect in an enrichment stage. Abort;
		// nothing downstream may consume this tree.
		s.emit("annotation.failed", map[string]any{"sentence": req.Sentence, "error": err.Error()})
		return nil, err
	}

	sum := accounting.Compute(req.Tree)
	verrs := validate.Tree(req.Tree, valMode, sum)

	res := &Result{
		ID:              uuid.NewString(),
		Sentence:        req.Sentence,
		Tree:            req.Tree,
		Valid:           len(verrs) == 0,
		Errors:          verrs,
		Summary:         sum,
		RegistryVersion: snap.Version(),
	}
	if req.Debug {
		dbg := accounting.Debug(req.Tree, sum)
		res.Debug = &dbg
	}

	if s.db != nil {
		if err := s.persist(key, noteMode, valMode, res); err != nil {
			return nil, err
		}
	}
	s.emit("annotation.completed", map[string]any{
		"id":       res.ID,
		"sentence": res.Sentence,
		"valid":    res.Valid,
	})
	return res, nil
}

// Validate checks a tree against the contract without enriching it.
// The counters are recomputed on a clone so the caller's tree is left
// untouched.
func (s *Service) Validate(_ context.Context, root *tree.Node, mode validate.Mode) ([]validate.ValidationError, error) {
	if root == nil {
		return nil, fmt.Errorf("annotator: tree is required")
	}
	if mode == "" {
		mode = s.defaultValidationMode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("annotator: unknown validation mode %q", mode)
	}
	clone := root.Clone()
	sum := accounting.Compute(clone)
	return validate.Tree(clone, mode, sum), nil
}

// Get returns a persisted run by id.
func (s *Service) Get(_ context.Context, id string) (*store.AnnotationRow, error) {
	if s.db == nil {
		return nil, apperr.ErrNotFound
	}
	return s.db.GetByID(id)
}

// List returns persisted runs, newest first.
func (s *Service) List(_ context.Context, limit, offset int, query string) ([]store.AnnotationRow, int, error) {
	if s.db == nil {
		return nil, 0, nil
	}
	return s.db.List(limit, offset, query)
}

// Delete removes a persisted run.
func (s *Service) Delete(_ context.Context, id string) error {
	if s.db == nil {
		return apperr.ErrNotFound
	}
	if err := s.db.Delete(id); err != nil {
		return err
	}
	s.emit("annotation.deleted", map[string]any{"id": id})
	return nil
}

// Templates returns the current registry entries.
func (s *Service) Templates(_ context.Context) (string, []registry.TemplateEntry) {
	snap := s.reg.Snapshot()
	return snap.Version(), snap.Entries()
}

// stamp writes the schema version the run targets. The stamp is an
// enrichment field, not structure, so the guard permits it.
func (s *Service) stamp(n *tree.Node, mode validate.Mode) {
	if mode == validate.V2Strict {
		n.SchemaVersion = tree.SchemaV2
	}
}

// cached rebuilds a Result from a stored row.
func (s *Service) cached(key, sentence, registryVersion string) (*Result, error) {
	row, err := s.db.GetByKey(key)
	if err != nil {
		return nil, err
	}
	root, err := decodeDocument(row.Payload, sentence)
	if err != nil {
		return nil, err
	}
	sum := accounting.Summary{
		Nodes:          row.BackoffNodes,
		LeafNodes:      row.BackoffLeaf,
		AggregateNodes: row.BackoffAgg,
		UniqueSpans:    row.BackoffSpans,
	}
	// Stored counters must still satisfy the arithmetic identities; a
	// row that fails them is corrupt and must not be served.
	if sum.Nodes != sum.LeafNodes+sum.AggregateNodes || sum.UniqueSpans > sum.LeafNodes {
		return nil, fmt.Errorf("annotator: stored counters for run %s: %w", row.ID, apperr.ErrAccounting)
	}
	return &Result{
		ID:              row.ID,
		Sentence:        row.Sentence,
		Tree:            root,
		Valid:           row.Valid,
		Summary:         sum,
		RegistryVersion: registryVersion,
		Cached:          true,
	}, nil
}

func (s *Service) persist(key string, noteMode assembler.NoteMode, valMode validate.Mode, res *Result) error {
	payload, err := encodeDocument(res.Sentence, res.Tree)
	if err != nil {
		return err
	}
	return s.db.Upsert(store.AnnotationRow{
		ID:              res.ID,
		Key:             key,
		Sentence:        res.Sentence,
		RegistryVersion: res.RegistryVersion,
		NoteMode:        string(noteMode),
		ValidationMode:  string(valMode),
		Valid:           res.Valid,
		Payload:         payload,
		BackoffNodes:    res.Summary.Nodes,
		BackoffLeaf:     res.Summary.LeafNodes,
		BackoffAgg:      res.Summary.AggregateNodes,
		BackoffSpans:    res.Summary.UniqueSpans,
		CreatedAt:       time.Now().UTC(),
	})
}

// encodeDocument renders the serialization contract: a JSON object keyed
// by the sentence text, children last within every node.
func encodeDocument(sentence string, root *tree.Node) ([]byte, error) {
	doc := map[string]*tree.Node{sentence: root}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("annotator: encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(payload []byte, sentence string) (*tree.Node, error) {
	var doc map[string]*tree.Node
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("annotator: decode document: %w", err)
	}
	if root, ok := doc[sentence]; ok {
		return root, nil
	}
	for _, root := range doc {
		return root, nil
	}
	return nil, fmt.Errorf("annotator: document is empty")
}

func (s *Service) emit(kind string, data map[string]any) {
	if s.cb != nil {
		s.cb(kind, data)
	}
}
