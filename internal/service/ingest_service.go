package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/liliang-cn/shopbot/internal/domain"
	"go.uber.org/zap"
)

// DefaultIngestBatchSize is how many products are upserted per index call
const DefaultIngestBatchSize = 64

// maxLineBytes bounds one JSON-lines record
const maxLineBytes = 1 << 20

// CatalogWriter embeds product text and stores the result
type CatalogWriter interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Upsert(ctx context.Context, records []domain.IndexRecord) error
}

// IngestService loads a product catalog into the vector index
type IngestService struct {
	writer    CatalogWriter
	batchSize int
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(writer CatalogWriter, batchSize int, logger *zap.Logger) *IngestService {
	if batchSize <= 0 {
		batchSize = DefaultIngestBatchSize
	}
	return &IngestService{writer: writer, batchSize: batchSize, logger: logger.Named("ingest")}
}

// IngestFile reads one JSON object per line and upserts every product.
// It returns how many products were stored.
func (s *IngestService) IngestFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		batch  []domain.IndexRecord
		stored int
		line   int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.writer.Upsert(ctx, batch); err != nil {
			return err
		}
		stored += len(batch)
		s.logger.Info("Batch stored", zap.Int("batch", len(batch)), zap.Int("total", stored))
		batch = nil
		return nil
	}

	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var md map[string]any
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			s.logger.Warn("Skipping malformed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		id := ProductID(md)
		if id == "" {
			s.logger.Warn("Skipping product without id", zap.Int("line", line))
			continue
		}
		delete(md, "id")

		vec, err := s.writer.Embed(ctx, EmbeddingText(domain.ProductFromMetadata(md)))
		if err != nil {
			return stored, fmt.Errorf("embed product %s (line %d): %w", id, line, err)
		}
		batch = append(batch, domain.IndexRecord{ID: id, Vector: vec, Metadata: md})

		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stored, fmt.Errorf("failed to read catalog file: %w", err)
	}
	if err := flush(); err != nil {
		return stored, err
	}

	s.logger.Info("Catalog ingested", zap.String("path", path), zap.Int("products", stored))
	return stored, nil
}

// ProductID picks the catalog id of a record: id, then article, sku, gtin
func ProductID(md map[string]any) string {
	for _, k := range []string{"id", domain.MetadataKeyArticle, domain.MetadataKeySKU, domain.MetadataKeyGTIN} {
		switch v := md[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// EmbeddingText is the text a product is indexed under
func EmbeddingText(p domain.Product) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Title, p.Brand, p.Category, p.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}
