package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestSearchRanksByCosine(t *testing.T) {
	ix := NewIndex()
	doc := uuid.New()

	exact := uuid.New()
	diagonal := uuid.New()
	orthogonal := uuid.New()
	ix.Upsert(exact, doc, []float32{1, 0})
	ix.Upsert(diagonal, doc, []float32{1, 1})
	ix.Upsert(orthogonal, doc, []float32{0, 1})

	got := ix.Search([]float32{2, 0}, 2, uuid.Nil) // scale must not matter
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].ChunkID != exact {
		t.Errorf("top match = %v, want exact vector", got[0].ChunkID)
	}
	if math.Abs(got[0].Score-1.0) > 1e-6 {
		t.Errorf("exact score = %v, want 1.0", got[0].Score)
	}
	if got[1].ChunkID != diagonal {
		t.Errorf("second match = %v, want diagonal vector", got[1].ChunkID)
	}
	if math.Abs(got[1].Score-1/math.Sqrt2) > 1e-6 {
		t.Errorf("diagonal score = %v, want %v", got[1].Score, 1/math.Sqrt2)
	}
}

func TestSearchFiltersByDocument(t *testing.T) {
	ix := NewIndex()
	docA, docB := uuid.New(), uuid.New()

	inA := uuid.New()
	ix.Upsert(inA, docA, []float32{1, 0})
	ix.Upsert(uuid.New(), docB, []float32{1, 0})

	got := ix.Search([]float32{1, 0}, 10, docA)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
	if got[0].ChunkID != inA || got[0].DocumentID != docA {
		t.Errorf("match = %+v", got[0])
	}
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	ix := NewIndex()
	doc := uuid.New()
	ix.Upsert(uuid.New(), doc, []float32{1, 0, 0})

	if got := ix.Search([]float32{1, 0}, 10, uuid.Nil); len(got) != 0 {
		t.Errorf("got %d matches across mismatched dims", len(got))
	}
}

func TestSearchLimitExceedsCorpus(t *testing.T) {
	ix := NewIndex()
	doc := uuid.New()
	ix.Upsert(uuid.New(), doc, []float32{1, 0})
	ix.Upsert(uuid.New(), doc, []float32{0.5, 0.5})

	got := ix.Search([]float32{1, 0}, 100, uuid.Nil)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Score < got[1].Score {
		t.Errorf("matches not sorted: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	ix := NewIndex()
	doc := uuid.New()
	id := uuid.New()

	ix.Upsert(id, doc, []float32{0, 1})
	ix.Upsert(id, doc, []float32{1, 0})
	if ix.Count() != 1 {
		t.Fatalf("count = %d, want 1", ix.Count())
	}

	got := ix.Search([]float32{1, 0}, 1, uuid.Nil)
	if math.Abs(got[0].Score-1.0) > 1e-6 {
		t.Errorf("score after overwrite = %v", got[0].Score)
	}
}

func TestUpsertDocumentReplacesStaleChunks(t *testing.T) {
	ix := NewIndex()
	doc := uuid.New()
	stale := uuid.New()
	ix.Upsert(stale, doc, []float32{1, 0})

	fresh := uuid.New()
	ix.UpsertDocument(doc, []StoredVector{
		{ChunkID: fresh, DocumentID: doc, Embedding: []float32{1, 0}},
	})

	if ix.Count() != 1 {
		t.Fatalf("count = %d, want 1", ix.Count())
	}
	got := ix.Search([]float32{1, 0}, 10, doc)
	if len(got) != 1 || got[0].ChunkID != fresh {
		t.Errorf("matches = %+v, stale chunk should be gone", got)
	}
}

func TestRemoveDocument(t *testing.T) {
	ix := NewIndex()
	docA, docB := uuid.New(), uuid.New()
	ix.Upsert(uuid.New(), docA, []float32{1, 0})
	ix.Upsert(uuid.New(), docA, []float32{0, 1})
	ix.Upsert(uuid.New(), docB, []float32{1, 1})

	ix.RemoveDocument(docA)
	if ix.Count() != 1 {
		t.Errorf("count = %d, want 1", ix.Count())
	}
	if got := ix.Search([]float32{1, 0}, 10, docA); len(got) != 0 {
		t.Errorf("docA still searchable: %+v", got)
	}
}

type fakeSource struct {
	stored []StoredVector
	err    error
}

func (f *fakeSource) ListEmbedded(ctx context.Context) ([]StoredVector, error) {
	return f.stored, f.err
}

func TestLoadWarmsIndex(t *testing.T) {
	doc := uuid.New()
	src := &fakeSource{stored: []StoredVector{
		{ChunkID: uuid.New(), DocumentID: doc, Embedding: []float32{1, 0}},
		{ChunkID: uuid.New(), DocumentID: doc, Embedding: []float32{0, 1}},
	}}

	ix := NewIndex()
	n, err := ix.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 || ix.Count() != 2 {
		t.Errorf("loaded %d, count %d", n, ix.Count())
	}
}

func TestLoadPropagatesError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	ix := NewIndex()
	if _, err := ix.Load(context.Background(), src); err == nil {
		t.Error("expected error")
	}
	if ix.Count() != 0 {
		t.Errorf("count = %d after failed load", ix.Count())
	}
}
