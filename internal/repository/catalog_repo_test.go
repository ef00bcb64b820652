package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *CatalogRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewCatalogRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), []domain.IndexRecord{
		{ID: "BIO-532894", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"title": "Biotus Vitamin D3", "brand": "Biotus", "article": "BIO-532894"}},
		{ID: "NOW-1", Vector: []float32{0.9, 0.1, 0}, Metadata: map[string]any{"title": "Now Foods D3", "brand": "Now Foods"}},
		{ID: "X-1", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"title": "Generic Omega", "brand": "Acme"}},
	}))
	return repo
}

func TestCatalog_QueryOrdersByCosine(t *testing.T) {
	repo := newTestCatalog(t)

	matches, err := repo.Query(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "BIO-532894", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "NOW-1", matches[1].ID)
	assert.Equal(t, "Now Foods D3", matches[1].Metadata["title"])
}

func TestCatalog_QueryFilters(t *testing.T) {
	repo := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter *domain.IndexFilter
		want   []string
	}{
		{"brand ignores case", domain.NewIndexFilter("brand", "biotus"), []string{"BIO-532894"}},
		{"article field", domain.NewIndexFilter("article", "BIO-532894"), []string{"BIO-532894"}},
		{"any of values", domain.NewIndexFilter("brand", "acme", "now foods"), []string{"NOW-1", "X-1"}},
		{"no match", domain.NewIndexFilter("brand", "solgar"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := repo.Query(ctx, []float32{1, 0, 0}, 10, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_QueryBrandContains(t *testing.T) {
	repo := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, []domain.IndexRecord{
		{ID: "BIO-PRO-1", Vector: []float32{0.5, 0.5, 0}, Metadata: map[string]any{"title": "Biotus Pro D3", "brand": "Biotus Pro"}},
		{ID: "PCT-1", Vector: []float32{0, 0, 1}, Metadata: map[string]any{"title": "Odd Brand", "brand": "100% Pure"}},
	}))

	tests := []struct {
		name   string
		filter *domain.IndexFilter
		want   []string
	}{
		{"substring of longer brand", domain.NewContainsFilter("brand", "biotus"), []string{"BIO-532894", "BIO-PRO-1"}},
		{"any spelling", domain.NewContainsFilter("brand", "BIOTUS PRO", "nothing"), []string{"BIO-PRO-1"}},
		{"wildcards are literal", domain.NewContainsFilter("brand", "0%"), []string{"PCT-1"}},
		{"underscore is literal", domain.NewContainsFilter("brand", "o_"), nil},
		{"exact filter stays exact", domain.NewIndexFilter("brand", "biotus"), []string{"BIO-532894"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := repo.Query(ctx, []float32{1, 0, 0}, 10, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_FetchAndUpsertReplaces(t *testing.T) {
	repo := newTestCatalog(t)
	ctx := context.Background()

	got, err := repo.Fetch(ctx, []string{"NOW-1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0.9, 0.1, 0}, got["NOW-1"].Vector)

	require.NoError(t, repo.Upsert(ctx, []domain.IndexRecord{
		{ID: "NOW-1", Vector: []float32{0, 0, 1}, Metadata: map[string]any{"title": "Now Foods D3 5000", "brand": "Now Foods"}},
	}))
	got, err = repo.Fetch(ctx, []string{"NOW-1"})
	require.NoError(t, err)
	assert.Equal(t, "Now Foods D3 5000", got["NOW-1"].Metadata["title"])

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCatalog_UpsertRejectsMissingID(t *testing.T) {
	repo := newTestCatalog(t)
	err := repo.Upsert(context.Background(), []domain.IndexRecord{{Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 2}))
}
