// Package retrieval puts the embedding and vector index capabilities behind
// typed product lookups.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/tracing"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores vectors with metadata
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, filter *domain.IndexFilter) ([]domain.IndexMatch, error)
	Fetch(ctx context.Context, ids []string) (map[string]domain.IndexRecord, error)
	Upsert(ctx context.Context, records []domain.IndexRecord) error
}

// Config tunes the gateway
type Config struct {
	// ArticleFields are the metadata keys an article code may be stored under
	ArticleFields []string
	// EmbeddingCacheTTL memoises query embeddings; zero disables the cache
	EmbeddingCacheTTL time.Duration
}

// Gateway serves product lookups for the chat pipeline
type Gateway struct {
	embedder      Embedder
	index         Index
	articleFields []string
	embeddings    *cache.Cache
	logger        *zap.Logger
}

// NewGateway creates a new retrieval gateway
func NewGateway(embedder Embedder, index Index, cfg Config, logger *zap.Logger) *Gateway {
	g := &Gateway{
		embedder:      embedder,
		index:         index,
		articleFields: cfg.ArticleFields,
		logger:        logger.Named("retrieval"),
	}
	if len(g.articleFields) == 0 {
		g.articleFields = []string{domain.MetadataKeyArticle, domain.MetadataKeySKU, domain.MetadataKeyGTIN}
	}
	if cfg.EmbeddingCacheTTL > 0 {
		g.embeddings = cache.New(cfg.EmbeddingCacheTTL, 2*cfg.EmbeddingCacheTTL)
	}
	return g
}

// Embed returns the vector for text, served from the cache when possible
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if g.embeddings != nil {
		if v, ok := g.embeddings.Get(key); ok {
			return v.([]float32), nil
		}
	}

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrProvider)
	}

	if g.embeddings != nil {
		g.embeddings.SetDefault(key, vec)
	}
	return vec, nil
}

// Upsert stores records in the index
func (g *Gateway) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if err := g.index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("%w: upsert: %w", domain.ErrRetrieval, err)
	}
	return nil
}

// SearchByText embeds query and returns the topK nearest products
func (g *Gateway) SearchByText(ctx context.Context, query string, topK int, filter *domain.IndexFilter) (candidates []domain.Candidate, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "retrieval.SearchByText", trace.WithAttributes(
		attribute.String("query", query),
		attribute.Int("top_k", topK),
	))
	defer func() { endSpan(span, err, len(candidates)) }()

	vec, err := g.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}
	return g.query(ctx, vec, topK, filter)
}

// SearchByVector returns the topK nearest products to vector, skipping excludeID
func (g *Gateway) SearchByVector(ctx context.Context, vector []float32, topK int, excludeID string) (candidates []domain.Candidate, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "retrieval.SearchByVector", trace.WithAttributes(
		attribute.Int("top_k", topK),
		attribute.String("exclude_id", excludeID),
	))
	defer func() { endSpan(span, err, len(candidates)) }()

	k := topK
	if excludeID != "" {
		k++
	}
	found, err := g.query(ctx, vector, k, nil)
	if err != nil {
		return nil, err
	}

	candidates = make([]domain.Candidate, 0, len(found))
	for _, c := range found {
		if c.ID == excludeID {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// FetchByID returns the product stored under id, or domain.ErrNotFound.
// The score of a fetched product is 1.
func (g *Gateway) FetchByID(ctx context.Context, id string) (domain.Candidate, error) {
	records, err := g.index.Fetch(ctx, []string{id})
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: fetch %s: %w", domain.ErrRetrieval, id, err)
	}
	rec, ok := records[id]
	if !ok {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return candidateFromRecord(rec), nil
}

// SearchByBrand is SearchByText restricted to products whose brand contains
// brand, so "biotus" also finds "Biotus Pro"
func (g *Gateway) SearchByBrand(ctx context.Context, query, brand string, topK int) ([]domain.Candidate, error) {
	filter := domain.NewContainsFilter(domain.MetadataKeyBrand, brand, titleCase(brand), strings.ToUpper(brand))
	return g.SearchByText(ctx, query, topK, filter)
}

// FindByArticle looks a product up by its article code. It tries the code
// as a product id first, then the configured article metadata fields.
// At most one candidate is returned, scored 1.
func (g *Gateway) FindByArticle(ctx context.Context, code string) (found []domain.Candidate, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "retrieval.FindByArticle", trace.WithAttributes(
		attribute.String("article", code),
	))
	defer func() { endSpan(span, err, len(found)) }()

	variants := domain.ArticleVariants(code)
	if len(variants) == 0 {
		return []domain.Candidate{}, nil
	}

	records, err := g.index.Fetch(ctx, variants)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch article %s: %w", domain.ErrRetrieval, code, err)
	}
	for _, v := range variants {
		if rec, ok := records[v]; ok {
			return []domain.Candidate{candidateFromRecord(rec)}, nil
		}
	}

	vec, err := g.Embed(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: embed article: %w", domain.ErrRetrieval, err)
	}
	for _, field := range g.articleFields {
		matches, err := g.query(ctx, vec, 1, domain.NewIndexFilter(field, variants...))
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			c := matches[0]
			c.Score = 1
			return []domain.Candidate{c}, nil
		}
	}

	g.logger.Debug("Article not found", zap.String("article", code))
	return []domain.Candidate{}, nil
}

// FindSimilar returns products near the reference, excluding the reference itself
func (g *Gateway) FindSimilar(ctx context.Context, reference domain.Candidate, topK int) ([]domain.Candidate, error) {
	var vec []float32
	records, err := g.index.Fetch(ctx, []string{reference.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch reference %s: %w", domain.ErrRetrieval, reference.ID, err)
	}
	if rec, ok := records[reference.ID]; ok {
		vec = rec.Vector
	}
	if len(vec) == 0 {
		// some indexes do not return stored vectors; the title is a close proxy
		vec, err = g.Embed(ctx, reference.Product.Title)
		if err != nil {
			return nil, fmt.Errorf("%w: embed reference: %w", domain.ErrRetrieval, err)
		}
	}
	return g.SearchByVector(ctx, vec, topK, reference.ID)
}

func (g *Gateway) query(ctx context.Context, vec []float32, topK int, filter *domain.IndexFilter) ([]domain.Candidate, error) {
	matches, err := g.index.Query(ctx, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: index query: %w", domain.ErrRetrieval, err)
	}
	candidates := make([]domain.Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, m.Candidate())
	}
	return candidates, nil
}

func candidateFromRecord(rec domain.IndexRecord) domain.Candidate {
	return domain.Candidate{ID: rec.ID, Score: 1, Product: domain.ProductFromMetadata(rec.Metadata)}
}

func endSpan(span trace.Span, err error, n int) {
	span.SetAttributes(attribute.Int("results", n))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
