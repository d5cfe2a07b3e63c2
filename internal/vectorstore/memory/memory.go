package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"manualrag/internal/domain"
)

// Store is an insertion-ordered in-memory vector store with exact
// brute-force cosine similarity search. A record's position is its identity.
type Store struct {
	mu      sync.RWMutex
	vectors [][]float64
	texts   []string
	meta    []domain.Chunk
}

func NewStore() *Store { return &Store{} }

// Add appends one record. Embeddings are neither deduplicated nor checked
// against the dimension of existing records. The store keeps its own copy of
// embedding.
func (s *Store) Add(text string, embedding []float64, metadata domain.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, append([]float64(nil), embedding...))
	s.texts = append(s.texts, text)
	s.meta = append(s.meta, metadata)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records() []domain.VectorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VectorRecord, len(s.texts))
	for i := range s.texts {
		out[i] = domain.VectorRecord{
			Embedding: append([]float64(nil), s.vectors[i]...),
			Text:      s.texts[i],
			Metadata:  s.meta[i],
		}
	}
	return out
}

// Search scores every record against query and returns the k best, highest
// similarity first. Equal scores keep insertion order.
func (s *Store) Search(query []float64, k int) []domain.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 || k <= 0 {
		return []domain.SearchResult{}
	}
	qn := norm(query)
	scores := make([]float64, len(s.vectors))
	for i, v := range s.vectors {
		scores[i] = cosine(query, qn, v)
	}
	idxs := argsortDesc(scores)
	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		results = append(results, domain.SearchResult{
			Text:       s.texts[j],
			Metadata:   s.meta[j],
			Similarity: scores[j],
			Position:   j,
		})
	}
	return results
}

// Retrieve implements domain.Retriever.
func (s *Store) Retrieve(_ context.Context, query []float64, k int) ([]domain.SearchResult, error) {
	return s.Search(query, k), nil
}

// Clear drops every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.texts = nil
	s.meta = nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is zero.
func CosineSimilarity(a, b []float64) float64 {
	return cosine(a, norm(a), b)
}

func cosine(q []float64, qn float64, v []float64) float64 {
	vn := norm(v)
	if qn == 0 || vn == 0 {
		return 0
	}
	return dot(q, v) / (qn * vn)
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
