// Package memory is an in-process vector store with exact cosine search.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

type Store struct {
	mu   sync.RWMutex
	docs map[string][]entry
}

func New() *Store {
	return &Store{docs: make(map[string][]entry)}
}

func (s *Store) ReplaceDocument(_ context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	entries := make([]entry, 0, len(chunks))
	for i, chunk := range chunks {
		vec := append([]float32(nil), vectors[i]...)
		entries = append(entries, entry{chunk: chunk, vector: vec, norm: norm(vec)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) == 0 {
		delete(s.docs, documentID)
		return nil
	}
	s.docs[documentID] = entries
	return nil
}

// Search scores every chunk of the document. Ties keep document order.
func (s *Store) Search(_ context.Context, documentID string, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	qn := norm(queryVector)

	s.mu.RLock()
	entries := s.docs[documentID]
	out := make([]domain.ScoredChunk, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.ScoredChunk{Chunk: e.chunk, Score: cosine(queryVector, qn, e.vector, e.norm)})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	delete(s.docs, documentID)
	s.mu.Unlock()
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
