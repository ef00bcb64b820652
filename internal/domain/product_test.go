package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductFromMetadata_CurrentSchema(t *testing.T) {
	p := ProductFromMetadata(map[string]any{
		"title":           "Vitamin D3 2000 IU",
		"brand":           "Now Foods",
		"gtin":            float64(733739003676),
		"price_formatted": "1 299,50 грн",
		"availability":    "in stock",
		"category":        "Вітаміни > Вітамін D",
		"image_url":       "https://cdn.example/d3.jpg",
		"link":            "https://shop.example/d3",
	})

	assert.Equal(t, SchemaCurrent, p.Schema)
	assert.Equal(t, "Vitamin D3 2000 IU", p.Title)
	assert.Equal(t, "733739003676", p.Article)
	assert.True(t, p.HasPrice)
	assert.InDelta(t, 1299.50, p.Price, 0.001)
	assert.Equal(t, "1 299,50 грн", p.DisplayPrice())
	assert.True(t, p.Available)
	assert.Equal(t, "вітаміни", p.MainCategory())
	assert.Equal(t, "https://cdn.example/d3.jpg", p.ImageURL)
	assert.Equal(t, "https://shop.example/d3", p.URL)
}

func TestProductFromMetadata_LegacySchema(t *testing.T) {
	p := ProductFromMetadata(map[string]any{
		"name":     "Omega-3",
		"sku":      "SOL-01701",
		"status":   true,
		"quantity": float64(4),
		"price":    float64(450),
		"category": []any{"Omega", "Fish oil"},
	})

	assert.Equal(t, SchemaLegacy, p.Schema)
	assert.Equal(t, "Omega-3", p.Title)
	assert.Equal(t, "SOL-01701", p.Article)
	assert.True(t, p.Available)
	assert.Equal(t, "450.00", p.DisplayPrice())
	assert.Equal(t, "omega", p.MainCategory())
}

func TestProductFromMetadata_Availability(t *testing.T) {
	tests := []struct {
		name string
		md   map[string]any
		want bool
	}{
		{"current in stock", map[string]any{"availability": "In Stock"}, true},
		{"current out of stock", map[string]any{"availability": "out of stock"}, false},
		{"current not in stock", map[string]any{"availability": "not in stock"}, false},
		{"current ukrainian", map[string]any{"availability": "Є в наявності"}, true},
		{"current empty", map[string]any{"availability": ""}, false},
		{"legacy active with quantity", map[string]any{"status": "active", "quantity": true}, true},
		{"legacy active without quantity", map[string]any{"status": "active", "quantity": false}, false},
		{"legacy inactive", map[string]any{"status": false, "quantity": 10}, false},
		{"legacy missing flags", map[string]any{"name": "x"}, false},
		{"nil metadata", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductFromMetadata(tt.md).Available)
		})
	}
}

func TestProductFromMetadata_MissingPrice(t *testing.T) {
	p := ProductFromMetadata(map[string]any{"title": "x", "price": "n/a"})
	assert.False(t, p.HasPrice)
	assert.Equal(t, "", p.DisplayPrice())
}

func TestIntentTagValid(t *testing.T) {
	assert.True(t, IntentArticleSearch.Valid())
	assert.True(t, IntentFindSimilar.Valid())
	assert.True(t, IntentRecommendation.Valid())
	assert.False(t, IntentTag("browse").Valid())
}
