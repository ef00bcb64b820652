package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/qdrant/go-client/qdrant"
)

// PayloadKeyProductID holds the catalog id; qdrant point ids must be UUIDs or integers.
const PayloadKeyProductID = "product_id"

// productNamespace seeds the UUIDv5 point ids derived from catalog ids
var productNamespace = uuid.MustParse("6f1c2a4e-9b3d-4c51-8e0a-2d7f5b9c1e34")

// QdrantConfig holds connection settings for a qdrant collection
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantIndex serves the vector index over a qdrant collection
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex connects to qdrant over gRPC
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, collection: cfg.Collection}, nil
}

// Close releases the gRPC connection
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// EnsureCollection creates the collection with cosine distance if it does not exist
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// PointID maps a catalog id onto a deterministic UUIDv5
func PointID(productID string) string {
	return uuid.NewSHA1(productNamespace, []byte(productID)).String()
}

// Query searches the collection, optionally restricted by a keyword filter
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, filter *domain.IndexFilter) ([]domain.IndexMatch, error) {
	if topK <= 0 {
		return []domain.IndexMatch{}, nil
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	req.Filter = qdrantFilter(filter)

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	matches := make([]domain.IndexMatch, 0, len(points))
	for _, p := range points {
		md := payloadToMap(p.GetPayload())
		matches = append(matches, domain.IndexMatch{
			ID:       productIDOf(p.GetId(), md),
			Score:    float64(p.GetScore()),
			Metadata: md,
		})
	}
	return matches, nil
}

// qdrantFilter translates an index filter. Contains filters use text match,
// which is a substring test on fields without a full-text index.
func qdrantFilter(filter *domain.IndexFilter) *qdrant.Filter {
	if filter == nil || len(filter.Values) == 0 {
		return nil
	}
	if !filter.Contains {
		return &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords(filter.Field, filter.Values...)},
		}
	}
	should := make([]*qdrant.Condition, len(filter.Values))
	for i, v := range filter.Values {
		should[i] = qdrant.NewMatchText(filter.Field, v)
	}
	return &qdrant.Filter{Should: should}
}

// Fetch returns the stored vector and payload for each known id
func (q *QdrantIndex) Fetch(ctx context.Context, ids []string) (map[string]domain.IndexRecord, error) {
	out := make(map[string]domain.IndexRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get: %w", err)
	}

	for _, p := range points {
		md := payloadToMap(p.GetPayload())
		id := productIDOf(p.GetId(), md)
		out[id] = domain.IndexRecord{
			ID:       id,
			Vector:   p.GetVectors().GetVector().GetData(),
			Metadata: md,
		}
	}
	return out, nil
}

// Upsert writes records, waiting for the write to be applied
func (q *QdrantIndex) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		md := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			md[k] = v
		}
		md[PayloadKeyProductID] = rec.ID

		payload, err := qdrant.TryValueMap(md)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", rec.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: payload,
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func productIDOf(id *qdrant.PointId, md map[string]any) string {
	if s, ok := md[PayloadKeyProductID].(string); ok && s != "" {
		delete(md, PayloadKeyProductID)
		return s
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, len(values))
		for i, item := range values {
			list[i] = valueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
