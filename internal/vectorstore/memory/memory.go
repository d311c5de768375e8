package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"disasterwatch/internal/domain"
	"disasterwatch/internal/vectorstore"
)

// Storage is an in-process vector store using brute-force cosine similarity.
// Points are keyed by id; upserting an existing id replaces it.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	index     map[string]int
	points    []domain.Point
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

// Init sets the dimension. Stored points survive re-initialization with the
// same dimension and are dropped otherwise.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.points = nil
		s.index = make(map[string]int)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return vectorstore.ErrNotInitialized
	}
	if err := vectorstore.CheckPoints(points, s.dimension); err != nil {
		return err
	}
	for _, p := range points {
		p.Vector = append([]float64(nil), p.Vector...)
		if i, ok := s.index[p.ID]; ok {
			s.points[i] = p
			continue
		}
		s.index[p.ID] = len(s.points)
		s.points = append(s.points, p)
	}
	return nil
}

// Search returns up to topK points by descending cosine similarity. Ties keep
// insertion order.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.points))
	for i, p := range s.points {
		results[i] = domain.SearchResult{ID: p.ID, Text: p.Text, Metadata: p.Metadata, Score: cosine(p.Vector, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = nil
	s.index = make(map[string]int)
	return nil
}

// Len reports the number of stored points.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
