package annotator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/annotator"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/assembler"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/quality"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tree"
	"github.com/starford/ansuz/internal/validate"
)

type eventLog struct {
	kinds []string
}

func (l *eventLog) record(kind string, _ map[string]any) {
	l.kinds = append(l.kinds, kind)
}

func newService(t *testing.T, db store.AnnotationStore, cb annotator.EventCallback) *annotator.Service {
	t.Helper()
	filter, err := quality.New(quality.DefaultPolicy())
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	asm := assembler.New(filter, nil, time.Second)
	reg := registry.NewHandle(registry.DefaultSnapshot())
	return annotator.NewService(reg, asm, db, 4, assembler.TemplateOnly, validate.V2Strict, cb)
}

func TestAnnotateModalPerfect(t *testing.T) {
	svc := newService(t, nil, nil)

	res, err := svc.Annotate(context.Background(), annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("tree invalid: %v", res.Errors)
	}
	if res.Cached {
		t.Error("fresh run reported cached")
	}

	// The modal-perfect phrase and the word "should" have exact-match
	// entries in the builtin registry; neither may carry backoff.
	vp := res.Tree.Children[0]
	if vp.BackoffUsed || vp.TemplateSelection.Level != tree.LevelExact {
		t.Errorf("verb phrase: backoff=%v level=%s", vp.BackoffUsed, vp.TemplateSelection.Level)
	}
	should := vp.Children[1]
	if should.BackoffUsed || should.TemplateSelection.Level != tree.LevelExact {
		t.Errorf("word should: backoff=%v level=%s", should.BackoffUsed, should.TemplateSelection.Level)
	}
	// The adverbial phrase has no exact entry and must back off.
	if !res.Tree.Children[1].BackoffUsed {
		t.Error("adverbial phrase did not back off")
	}

	// Sentence matched exactly, so the aggregate count stays zero and
	// the arithmetic identity holds.
	if res.Summary.AggregateNodes != 0 {
		t.Errorf("aggregate = %d, want 0", res.Summary.AggregateNodes)
	}
	if res.Summary.Nodes != res.Summary.LeafNodes+res.Summary.AggregateNodes {
		t.Errorf("nodes identity broken: %+v", res.Summary)
	}
	if res.Summary.UniqueSpans > res.Summary.LeafNodes {
		t.Errorf("unique spans exceed leaves: %+v", res.Summary)
	}

	// Every node ends its reason list with exactly one terminal code
	// and carries at least one note.
	res.Tree.Walk(func(n *tree.Node) bool {
		if len(n.Notes) == 0 {
			t.Errorf("node %s has no notes", n.ID)
		}
		terminals := 0
		for _, c := range n.ReasonCodes {
			if _, ok := assembler.TerminalCodes[c]; ok {
				terminals++
			}
		}
		if terminals != 1 {
			t.Errorf("node %s has %d terminal codes: %v", n.ID, terminals, n.ReasonCodes)
		}
		if len(n.ReasonCodes) > 0 {
			last := n.ReasonCodes[len(n.ReasonCodes)-1]
			if _, ok := assembler.TerminalCodes[last]; !ok {
				t.Errorf("node %s reason list does not end terminal: %v", n.ID, n.ReasonCodes)
			}
		}
		return true
	})
}

func TestAnnotateCacheRoundTrip(t *testing.T) {
	db := testutil.TestDB(t)
	svc := newService(t, db, nil)

	req := annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	}
	first, err := svc.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("first annotate: %v", err)
	}

	req.Tree = testutil.ModalPerfectTree()
	second, err := svc.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("second annotate: %v", err)
	}
	if !second.Cached {
		t.Error("second run not served from the store")
	}
	if second.ID != first.ID {
		t.Errorf("cached id %s differs from stored %s", second.ID, first.ID)
	}
	if second.Summary != first.Summary {
		t.Errorf("cached summary %+v differs from %+v", second.Summary, first.Summary)
	}
	if second.Tree == nil || second.Tree.Content != testutil.ModalPerfectSentence {
		t.Errorf("cached tree not rebuilt: %+v", second.Tree)
	}

	req.Tree = testutil.ModalPerfectTree()
	req.Refresh = true
	third, err := svc.Annotate(context.Background(), req)
	if err != nil {
		t.Fatalf("refresh annotate: %v", err)
	}
	if third.Cached {
		t.Error("refresh served from the store")
	}
	if third.ID == first.ID {
		t.Error("refresh kept the old run id")
	}
}

func TestAnnotateRejectsCorruptStoredCounters(t *testing.T) {
	db := testutil.TestDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()

	res, err := svc.Annotate(ctx, annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}

	// Break the identity Nodes = LeafNodes + AggregateNodes on the
	// stored row; a later cache hit must refuse to serve it.
	key := checksum.AnnotationKey(testutil.ModalPerfectSentence,
		registry.BuiltinVersion, string(assembler.TemplateOnly), string(validate.V2Strict))
	row, err := db.GetByKey(key)
	if err != nil {
		t.Fatalf("stored row missing: %v", err)
	}
	if row.ID != res.ID {
		t.Fatalf("row id = %s, want %s", row.ID, res.ID)
	}
	row.BackoffNodes = row.BackoffLeaf + row.BackoffAgg + 1
	if err := db.Upsert(*row); err != nil {
		t.Fatalf("upsert corrupt row: %v", err)
	}

	_, err = svc.Annotate(ctx, annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	})
	if !errors.Is(err, apperr.ErrAccounting) {
		t.Fatalf("err = %v, want ErrAccounting", err)
	}
}

func TestAnnotateModeChangesCacheKey(t *testing.T) {
	db := testutil.TestDB(t)
	svc := newService(t, db, nil)

	ctx := context.Background()
	if _, err := svc.Annotate(ctx, annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	}); err != nil {
		t.Fatalf("annotate v2: %v", err)
	}

	res, err := svc.Annotate(ctx, annotator.Request{
		Sentence:       testutil.ModalPerfectSentence,
		Tree:           testutil.ModalPerfectTree(),
		ValidationMode: validate.V1,
	})
	if err != nil {
		t.Fatalf("annotate v1: %v", err)
	}
	if res.Cached {
		t.Error("different validation mode hit the v2 cache row")
	}
}

func TestAnnotateDebugSummary(t *testing.T) {
	svc := newService(t, nil, nil)

	res, err := svc.Annotate(context.Background(), annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
		Debug:    true,
	})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if res.Debug == nil {
		t.Fatal("debug summary missing")
	}
	if res.Debug.Nodes != res.Summary.Nodes || res.Debug.LeafNodes != res.Summary.LeafNodes {
		t.Errorf("debug counters disagree: %+v vs %+v", res.Debug, res.Summary)
	}
}

func TestAnnotateRejectsBadInput(t *testing.T) {
	svc := newService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.Annotate(ctx, annotator.Request{Sentence: "x"}); err == nil {
		t.Error("nil tree accepted")
	}
	if _, err := svc.Annotate(ctx, annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
		NoteMode: "freestyle",
	}); err == nil {
		t.Error("unknown note mode accepted")
	}
	if _, err := svc.Annotate(ctx, annotator.Request{
		Sentence:       testutil.ModalPerfectSentence,
		Tree:           testutil.ModalPerfectTree(),
		ValidationMode: "v3",
	}); err == nil {
		t.Error("unknown validation mode accepted")
	}
}

func TestValidateLegacyTree(t *testing.T) {
	svc := newService(t, nil, nil)
	ctx := context.Background()

	legacy := testutil.LegacyTree()
	errs, err := svc.Validate(ctx, legacy, validate.V1)
	if err != nil {
		t.Fatalf("validate v1: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("legacy tree rejected under v1: %v", errs)
	}

	errs, err = svc.Validate(ctx, legacy, validate.V2Strict)
	if err != nil {
		t.Fatalf("validate v2: %v", err)
	}
	if len(errs) == 0 {
		t.Error("legacy tree accepted under v2_strict")
	}

	// Validate never touches the caller's tree.
	if legacy.BackoffInSubtree {
		t.Error("caller tree mutated by validation")
	}
}

func TestServiceEvents(t *testing.T) {
	db := testutil.TestDB(t)
	log := &eventLog{}
	svc := newService(t, db, log.record)
	ctx := context.Background()

	res, err := svc.Annotate(ctx, annotator.Request{
		Sentence: testutil.ModalPerfectSentence,
		Tree:     testutil.ModalPerfectTree(),
	})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if err := svc.Delete(ctx, res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"annotation.completed", "annotation.deleted"}
	if len(log.kinds) != len(want) {
		t.Fatalf("events = %v, want %v", log.kinds, want)
	}
	for i := range want {
		if log.kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, log.kinds[i], want[i])
		}
	}
}

func TestTemplates(t *testing.T) {
	svc := newService(t, nil, nil)
	version, entries := svc.Templates(context.Background())
	if version == "" {
		t.Error("registry version empty")
	}
	if len(entries) == 0 {
		t.Error("no template entries")
	}
}
