package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/liliang-cn/shopbot/internal/domain"
)

// CatalogRepository is a brute-force cosine index over the local products table.
// It is meant for development and catalogs of a few thousand items.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Upsert inserts or replaces records in one transaction
func (r *CatalogRepository) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, vector, metadata, brand, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			metadata = excluded.metadata,
			brand = excluded.brand,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		vectorJSON, err := json.Marshal(rec.Vector)
		if err != nil {
			return fmt.Errorf("encode vector %s: %w", rec.ID, err)
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata %s: %w", rec.ID, err)
		}
		brand := strings.ToLower(domain.ProductFromMetadata(rec.Metadata).Brand)

		if _, err := stmt.ExecContext(ctx, rec.ID, string(vectorJSON), string(metadataJSON), brand, now, now); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Fetch returns the stored records for ids. Unknown ids are absent from the map.
func (r *CatalogRepository) Fetch(ctx context.Context, ids []string) (map[string]domain.IndexRecord, error) {
	out := make(map[string]domain.IndexRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, vector, metadata FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Query returns the topK records most similar to vector that pass filter
func (r *CatalogRepository) Query(ctx context.Context, vector []float32, topK int, filter *domain.IndexFilter) ([]domain.IndexMatch, error) {
	if topK <= 0 {
		return []domain.IndexMatch{}, nil
	}

	query := `SELECT id, vector, metadata FROM products`
	var args []any
	// brand is denormalized into its own column so brand-scoped searches skip the full scan
	if filter != nil && filter.Field == domain.MetadataKeyBrand && len(filter.Values) > 0 {
		if filter.Contains {
			conds := make([]string, len(filter.Values))
			for i, v := range filter.Values {
				conds[i] = `brand LIKE ? ESCAPE '\'`
				args = append(args, "%"+likeEscaper.Replace(strings.ToLower(v))+"%")
			}
			query += ` WHERE ` + strings.Join(conds, ` OR `)
		} else {
			query += ` WHERE brand IN (` + strings.TrimSuffix(strings.Repeat("?,", len(filter.Values)), ",") + `)`
			for _, v := range filter.Values {
				args = append(args, strings.ToLower(v))
			}
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var matches []domain.IndexMatch
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(rec.Metadata) {
			continue
		}
		matches = append(matches, domain.IndexMatch{
			ID:       rec.ID,
			Score:    cosine(vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []domain.IndexMatch{}
	}
	return matches, nil
}

// Count returns the number of stored products
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

func scanRecord(rows *sql.Rows) (domain.IndexRecord, error) {
	var (
		rec                      domain.IndexRecord
		vectorJSON, metadataJSON string
	)
	if err := rows.Scan(&rec.ID, &vectorJSON, &metadataJSON); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(vectorJSON), &rec.Vector); err != nil {
		return rec, fmt.Errorf("decode vector %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return rec, fmt.Errorf("decode metadata %s: %w", rec.ID, err)
	}
	return rec, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
