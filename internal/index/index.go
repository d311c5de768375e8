// Package index embeds narratives and stores them for similarity search.
package index

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"disasterwatch/internal/domain"
)

// VectorIndex combines an embedder and a vector store behind domain.Index.
// The store is initialized with the embedder dimension on first use; remote
// embedders only report it after their first response. mu guards only the
// initialization; embedding and store calls run unlocked so a slow embed
// holds up its own caller alone.
type VectorIndex struct {
	embedder domain.Embedder
	store    domain.VectorStore
	logger   *zap.Logger

	mu    sync.Mutex
	ready bool
}

func New(embedder domain.Embedder, store domain.VectorStore, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorIndex{embedder: embedder, store: store, logger: logger.Named("index")}
}

// Warm initializes the store up front when the embedder dimension is already
// known, so that persistent stores can answer queries before the first upsert.
func (x *VectorIndex) Warm(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready || x.embedder.Dimension() <= 0 {
		return nil
	}
	return x.init(ctx, x.embedder.Dimension())
}

func (x *VectorIndex) init(ctx context.Context, dim int) error {
	if err := x.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	x.ready = true
	x.logger.Info("vector store initialized",
		zap.String("embedder", x.embedder.Name()), zap.Int("dimension", dim))
	return nil
}

func (x *VectorIndex) Upsert(ctx context.Context, id, text string, metadata domain.Metadata) error {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := x.ensureInit(ctx, len(vec)); err != nil {
		return err
	}
	point := domain.Point{ID: id, Text: text, Metadata: metadata, Vector: vec}
	if err := x.store.Upsert(ctx, []domain.Point{point}); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// ensureInit initializes the store once, preferring the embedder dimension
// over the length of the first vector.
func (x *VectorIndex) ensureInit(ctx context.Context, vecLen int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}
	dim := x.embedder.Dimension()
	if dim <= 0 {
		dim = vecLen
	}
	return x.init(ctx, dim)
}

func (x *VectorIndex) isReady() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ready
}

// Query returns at most k narratives by descending relevance. It returns an
// empty list before anything was indexed and for queries with no usable terms.
func (x *VectorIndex) Query(ctx context.Context, text string, k int) ([]domain.Retrieved, error) {
	if !x.isReady() {
		return nil, nil
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		return nil, nil
	}
	hits, err := x.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Retrieved, len(hits))
	for i, h := range hits {
		out[i] = domain.Retrieved{Text: h.Text, Metadata: h.Metadata}
	}
	return out, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Sink hands each admitted narrative to the index exactly once. It does no
// duplicate checking of its own.
type Sink struct {
	index domain.Index
}

func NewSink(index domain.Index) *Sink { return &Sink{index: index} }

func (s *Sink) Upsert(ctx context.Context, doc domain.NarrativeDocument) error {
	return s.index.Upsert(ctx, doc.ID, doc.Text, doc.Metadata)
}
