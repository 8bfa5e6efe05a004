// Package vector provides brute-force cosine similarity search over chunk
// embeddings. Vectors live in memory (persistence belongs to the chunk
// repository); at the document counts this service handles, a linear scan is
// exact and sub-millisecond.
package vector

import (
	"container/heap"
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
)

// Match pairs a chunk with its similarity score.
type Match struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Score      float64
}

// StoredVector is the slim row shape used to warm the index at startup.
type StoredVector struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Embedding  []float32
}

// Source lists persisted chunk embeddings for warm-up.
type Source interface {
	ListEmbedded(ctx context.Context) ([]StoredVector, error)
}

type item struct {
	documentID uuid.UUID
	vec        []float32 // normalized
}

// Index is a thread-safe in-memory cosine index keyed by chunk ID.
type Index struct {
	mu    sync.RWMutex
	items map[uuid.UUID]item
}

func NewIndex() *Index {
	return &Index{items: make(map[uuid.UUID]item)}
}

// Upsert stores a vector for the given chunk. The vector is normalized on
// insert so dot product equals cosine similarity.
func (ix *Index) Upsert(chunkID, documentID uuid.UUID, vec []float32) {
	normalized := normalize(vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.items[chunkID] = item{documentID: documentID, vec: normalized}
}

// UpsertDocument replaces every vector belonging to the document with the
// given ones, so stale chunks from a previous processing run disappear.
func (ix *Index) UpsertDocument(documentID uuid.UUID, vectors []StoredVector) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, it := range ix.items {
		if it.documentID == documentID {
			delete(ix.items, id)
		}
	}
	for _, sv := range vectors {
		ix.items[sv.ChunkID] = item{documentID: documentID, vec: normalize(sv.Embedding)}
	}
}

// RemoveDocument drops every vector belonging to the document.
func (ix *Index) RemoveDocument(documentID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, it := range ix.items {
		if it.documentID == documentID {
			delete(ix.items, id)
		}
	}
}

// Load warms the index from persisted embeddings. Returns the vector count.
func (ix *Index) Load(ctx context.Context, src Source) (int, error) {
	stored, err := src.ListEmbedded(ctx)
	if err != nil {
		return 0, err
	}
	for _, sv := range stored {
		ix.Upsert(sv.ChunkID, sv.DocumentID, sv.Embedding)
	}
	return len(stored), nil
}

// Search returns the top-K chunks by cosine similarity to the query vector.
// A non-nil documentID restricts the scan to that document's chunks.
// Uses a min-heap to track only the top-K results.
func (ix *Index) Search(query []float32, limit int, documentID uuid.UUID) []Match {
	if limit <= 0 {
		limit = 10
	}
	normalizedQuery := normalize(query)

	ix.mu.RLock()
	h := &minHeap{}
	heap.Init(h)
	for id, it := range ix.items {
		if documentID != uuid.Nil && it.documentID != documentID {
			continue
		}
		if len(it.vec) != len(normalizedQuery) {
			continue
		}
		score := dotProduct(normalizedQuery, it.vec)
		if h.Len() < limit {
			heap.Push(h, Match{ChunkID: id, DocumentID: it.documentID, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = Match{ChunkID: id, DocumentID: it.documentID, Score: score}
			heap.Fix(h, 0)
		}
	}
	ix.mu.RUnlock()

	// Extract results in descending score order
	results := make([]Match, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Match)
	}
	return results
}

// Count returns the number of indexed vectors.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// minHeap implements heap.Interface for top-K selection (min at root).
type minHeap []Match

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Match)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// --- math helpers ---

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		out := make([]float32, len(v))
		return out
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
