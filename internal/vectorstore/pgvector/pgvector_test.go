package pgvector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasterwatch/internal/domain"
)

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL(pgx.Identifier{"disaster_narratives"}.Sanitize(), 512)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "disaster_narratives"`)
	assert.Contains(t, sql, "vector(512)")
	assert.Contains(t, sql, "JSONB")
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 0}, toFloat32([]float64{0.5, -1, 0}))
}

// Runs against a real database when DISASTERWATCH_TEST_PG_DSN is set.
func TestStorage_Postgres(t *testing.T) {
	dsn := os.Getenv("DISASTERWATCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DISASTERWATCH_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := fmt.Sprintf("dw_test_%d", time.Now().UnixNano())
	s, err := New(ctx, Config{DSN: dsn, Table: table})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+s.table)
		s.Close()
	})

	res, err := s.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, s.Init(ctx, 2))
	flood := uuid.NewString()
	fire := uuid.NewString()
	require.NoError(t, s.Upsert(ctx, []domain.Point{
		{ID: flood, Text: "flood", Metadata: domain.Metadata{DisasterType: "flood"}, Vector: []float64{1, 0}},
		{ID: fire, Text: "wildfire", Metadata: domain.Metadata{DisasterType: "wildfire"}, Vector: []float64{0, 1}},
	}))
	require.NoError(t, s.Upsert(ctx, []domain.Point{
		{ID: flood, Text: "flood updated", Metadata: domain.Metadata{DisasterType: "flood"}, Vector: []float64{1, 0.1}},
	}))

	res, err = s.Search(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, flood, res[0].ID)
	assert.Equal(t, "flood updated", res[0].Text)
	assert.Equal(t, "flood", res[0].Metadata.DisasterType)

	require.NoError(t, s.Clear(ctx))
	res, err = s.Search(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}
