package store_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/testutil"
)

func row(id, key, sentence string, at time.Time) store.AnnotationRow {
	return store.AnnotationRow{
		ID:              id,
		Key:             key,
		Sentence:        sentence,
		RegistryVersion: "builtin",
		NoteMode:        "template_only",
		ValidationMode:  "v2_strict",
		Valid:           true,
		Payload:         []byte(`{}`),
		CreatedAt:       at,
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testutil.TestDB(t)

	r := row("a1", "k1", "The cat sleeps soundly.", time.Now().UTC())
	r.BackoffNodes = 3
	r.BackoffLeaf = 2
	r.BackoffAgg = 1
	r.BackoffSpans = 2
	if err := db.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	byID, err := db.GetByID("a1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Key != "k1" || byID.Sentence != r.Sentence || !byID.Valid {
		t.Errorf("row mismatch: %+v", byID)
	}
	if byID.BackoffNodes != 3 || byID.BackoffLeaf != 2 || byID.BackoffAgg != 1 || byID.BackoffSpans != 2 {
		t.Errorf("counters mismatch: %+v", byID)
	}

	byKey, err := db.GetByKey("k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ID != "a1" {
		t.Errorf("ID = %s, want a1", byKey.ID)
	}
}

func TestUpsertReplacesOnKeyConflict(t *testing.T) {
	db := testutil.TestDB(t)

	if err := db.Upsert(row("a1", "k1", "The cat sleeps soundly.", time.Now().UTC())); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := row("a2", "k1", "The cat sleeps soundly.", time.Now().UTC())
	second.Valid = false
	second.Payload = []byte(`{"v":2}`)
	if err := db.Upsert(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetByKey("k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a2" || got.Valid || string(got.Payload) != `{"v":2}` {
		t.Errorf("conflict did not replace: %+v", got)
	}

	if _, err := db.GetByID("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale id still resolves, err = %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testutil.TestDB(t)

	if _, err := db.GetByID("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetByID err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetByKey("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetByKey err = %v, want ErrNotFound", err)
	}
}

func TestListPagination(t *testing.T) {
	db := testutil.TestDB(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := row(fmt.Sprintf("a%d", i), fmt.Sprintf("k%d", i),
			fmt.Sprintf("Sentence number %d stands alone.", i),
			base.Add(time.Duration(i)*time.Minute))
		if err := db.Upsert(r); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	rows, total, err := db.List(2, 0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(rows) != 2 || rows[0].ID != "a4" || rows[1].ID != "a3" {
		t.Errorf("first page wrong: %+v", rows)
	}

	rows, _, err = db.List(2, 4, "")
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "a0" {
		t.Errorf("last page wrong: %+v", rows)
	}
}

func TestListQueryFilter(t *testing.T) {
	db := testutil.TestDB(t)

	now := time.Now().UTC()
	if err := db.Upsert(row("a1", "k1", "The cat sleeps soundly.", now)); err != nil {
		t.Fatal(err)
	}
	if err := db.Upsert(row("a2", "k2", "The dog barks loudly.", now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	rows, total, err := db.List(50, 0, "cat")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != "a1" {
		t.Errorf("filter wrong: total=%d rows=%+v", total, rows)
	}
}

func TestListClampsLimit(t *testing.T) {
	db := testutil.TestDB(t)
	if err := db.Upsert(row("a1", "k1", "The cat sleeps soundly.", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	rows, _, err := db.List(-5, -3, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestDelete(t *testing.T) {
	db := testutil.TestDB(t)

	if err := db.Upsert(row("a1", "k1", "The cat sleeps soundly.", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetByID("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("row survives delete, err = %v", err)
	}
	if err := db.Delete("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
