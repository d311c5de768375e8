package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"disasterwatch/internal/domain"
	"disasterwatch/internal/embedding/hashing"
	"disasterwatch/internal/vectorstore/memory"
)

// lazyEmbedder reports its dimension only after the first Embed, like a remote API.
type lazyEmbedder struct {
	dim   int
	calls int
	err   error
}

func (e *lazyEmbedder) Name() string   { return "lazy" }
func (e *lazyEmbedder) Dimension() int { return e.dim }
func (e *lazyEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	e.dim = 3
	return []float64{float64(len(text)), 1, 0}, nil
}

type spyStore struct {
	*memory.Storage
	initDim int
	inits   int
}

func (s *spyStore) Init(ctx context.Context, dim int) error {
	s.inits++
	s.initDim = dim
	return s.Storage.Init(ctx, dim)
}

func TestVectorIndex_QueryBeforeUpsertIsEmpty(t *testing.T) {
	e := &lazyEmbedder{}
	x := New(e, memory.NewStorage(), zaptest.NewLogger(t))

	res, err := x.Query(context.Background(), "flood", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 0, e.calls, "no embedding before anything is indexed")
}

func TestVectorIndex_LazyInit(t *testing.T) {
	store := &spyStore{Storage: memory.NewStorage()}
	x := New(&lazyEmbedder{}, store, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, "1", "abc", domain.Metadata{Title: "a"}))
	require.NoError(t, x.Upsert(ctx, "2", "abcdef", domain.Metadata{Title: "b"}))

	assert.Equal(t, 1, store.inits)
	assert.Equal(t, 3, store.initDim)
	assert.Equal(t, 2, store.Len())
}

func TestVectorIndex_Warm(t *testing.T) {
	store := &spyStore{Storage: memory.NewStorage()}
	x := New(hashing.New(32), store, zaptest.NewLogger(t))

	require.NoError(t, x.Warm(context.Background()))
	require.NoError(t, x.Warm(context.Background()))
	assert.Equal(t, 1, store.inits)
	assert.Equal(t, 32, store.initDim)

	lazy := &spyStore{Storage: memory.NewStorage()}
	require.NoError(t, New(&lazyEmbedder{}, lazy, nil).Warm(context.Background()))
	assert.Equal(t, 0, lazy.inits)
}

func TestVectorIndex_RoundTrip(t *testing.T) {
	x := New(hashing.New(256), memory.NewStorage(), zaptest.NewLogger(t))
	ctx := context.Background()

	docs := map[string]string{
		"flood": "Disaster type: flood. Location: Assam, India. Severity: severe. Summary: Rivers flooded villages in Assam.",
		"fire":  "Disaster type: wildfire. Location: Attica, Greece. Severity: moderate. Summary: Fires burned forests near Athens.",
		"quake": "Disaster type: earthquake. Location: Izmir, Turkey. Severity: severe. Summary: Buildings collapsed in Izmir.",
	}
	for id, text := range docs {
		require.NoError(t, x.Upsert(ctx, id, text, domain.Metadata{Title: id}))
	}

	res, err := x.Query(ctx, "flood Assam", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, docs["flood"], res[0].Text)
	assert.Equal(t, "flood", res[0].Metadata.Title)

	res, err = x.Query(ctx, "the of and", 3)
	require.NoError(t, err)
	assert.Empty(t, res, "query without terms")
}

func TestVectorIndex_EmbedError(t *testing.T) {
	x := New(&lazyEmbedder{err: errors.New("quota")}, memory.NewStorage(), zaptest.NewLogger(t))
	err := x.Upsert(context.Background(), "1", "text", domain.Metadata{})
	assert.ErrorContains(t, err, "quota")
}

// gatedEmbedder blocks Embed for texts containing "stalled" until release is closed.
type gatedEmbedder struct {
	*hashing.Embedder
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.Contains(text, "stalled") {
		close(g.entered)
		<-g.release
	}
	return g.Embedder.Embed(ctx, text)
}

func TestVectorIndex_StalledEmbedDoesNotBlockOthers(t *testing.T) {
	g := &gatedEmbedder{Embedder: hashing.New(64), entered: make(chan struct{}), release: make(chan struct{})}
	x := New(g, memory.NewStorage(), zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, x.Upsert(ctx, "1", "Flood in Assam", domain.Metadata{}))

	upserted := make(chan error, 1)
	go func() { upserted <- x.Upsert(ctx, "2", "stalled report about a storm", domain.Metadata{}) }()
	<-g.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := x.Query(ctx, "flood", 3)
		assert.NoError(t, err)
		assert.Len(t, res, 1)
		assert.NoError(t, x.Upsert(ctx, "3", "Earthquake in Chile", domain.Metadata{}))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("query and upsert waited on a stalled embed")
	}

	close(g.release)
	require.NoError(t, <-upserted)
}

type recordingIndex struct {
	ids   []string
	texts []string
	meta  []domain.Metadata
}

func (r *recordingIndex) Upsert(_ context.Context, id, text string, md domain.Metadata) error {
	r.ids = append(r.ids, id)
	r.texts = append(r.texts, text)
	r.meta = append(r.meta, md)
	return nil
}

func (r *recordingIndex) Query(context.Context, string, int) ([]domain.Retrieved, error) {
	return nil, nil
}

func TestSink_HandsOverOnce(t *testing.T) {
	idx := &recordingIndex{}
	s := NewSink(idx)

	doc := domain.NarrativeDocument{ID: "id-1", Text: "narrative", Metadata: domain.Metadata{Country: "India"}}
	require.NoError(t, s.Upsert(context.Background(), doc))

	assert.Equal(t, []string{"id-1"}, idx.ids)
	assert.Equal(t, []string{"narrative"}, idx.texts)
	assert.Equal(t, "India", idx.meta[0].Country)
}
