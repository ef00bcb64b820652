package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Schema identifies which catalog field set a metadata record uses
type Schema string

const (
	// SchemaLegacy uses name/sku/status/quantity flags
	SchemaLegacy Schema = "legacy"
	// SchemaCurrent uses title/gtin/price_formatted/availability string
	SchemaCurrent Schema = "current"
)

// Metadata keys read from the vector index
const (
	MetadataKeyTitle          = "title"
	MetadataKeyName           = "name"
	MetadataKeyBrand          = "brand"
	MetadataKeyVendor         = "vendor"
	MetadataKeyPrice          = "price"
	MetadataKeyPriceFormatted = "price_formatted"
	MetadataKeyCategory       = "category"
	MetadataKeyCategoryPath   = "category_path"
	MetadataKeyAvailability   = "availability"
	MetadataKeyStatus         = "status"
	MetadataKeyQuantity       = "quantity"
	MetadataKeyImage          = "image"
	MetadataKeyImageURL       = "image_url"
	MetadataKeyURL            = "url"
	MetadataKeyLink           = "link"
	MetadataKeyArticle        = "article"
	MetadataKeySKU            = "sku"
	MetadataKeyGTIN           = "gtin"
	MetadataKeyDescription    = "description"
)

// Product is the normalized view of a catalog metadata record
type Product struct {
	Title          string  `json:"title"`
	Brand          string  `json:"brand,omitempty"`
	Price          float64 `json:"price,omitempty"`
	HasPrice       bool    `json:"-"`
	PriceFormatted string  `json:"price_formatted,omitempty"`
	Category       string  `json:"category,omitempty"`
	Available      bool    `json:"available"`
	ImageURL       string  `json:"image,omitempty"`
	URL            string  `json:"url,omitempty"`
	Article        string  `json:"article,omitempty"`
	Description    string  `json:"description,omitempty"`
	Schema         Schema  `json:"schema"`
}

// MainCategory returns the top segment of the category path
func (p Product) MainCategory() string {
	c := p.Category
	for _, sep := range []string{">", "/", "|"} {
		if i := strings.Index(c, sep); i >= 0 {
			c = c[:i]
		}
	}
	return strings.ToLower(strings.TrimSpace(c))
}

// DisplayPrice returns the currency-formatted price, or a plain rendering of the number
func (p Product) DisplayPrice() string {
	if p.PriceFormatted != "" {
		return p.PriceFormatted
	}
	if p.HasPrice {
		return strconv.FormatFloat(p.Price, 'f', 2, 64)
	}
	return ""
}

// Candidate is a retrieved product with its relevance score.
// Ranking reorders and filters candidates, never mutates them.
type Candidate struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Product Product `json:"product"`
}

// ProductFromMetadata reads either catalog schema through one accessor
func ProductFromMetadata(md map[string]any) Product {
	if md == nil {
		return Product{Schema: SchemaLegacy}
	}

	p := Product{
		Brand:       stringField(md, MetadataKeyBrand, MetadataKeyVendor),
		Category:    categoryField(md),
		ImageURL:    stringField(md, MetadataKeyImage, MetadataKeyImageURL),
		URL:         stringField(md, MetadataKeyURL, MetadataKeyLink),
		Description: stringField(md, MetadataKeyDescription),
	}
	p.Price, p.HasPrice = numberField(md[MetadataKeyPrice])

	if isCurrentSchema(md) {
		p.Schema = SchemaCurrent
		p.Title = stringField(md, MetadataKeyTitle, MetadataKeyName)
		p.Article = stringField(md, MetadataKeyArticle, MetadataKeySKU, MetadataKeyGTIN)
		p.PriceFormatted = stringField(md, MetadataKeyPriceFormatted)
		p.Available = availabilityInStock(stringField(md, MetadataKeyAvailability))
		if !p.HasPrice && p.PriceFormatted != "" {
			p.Price, p.HasPrice = parseLeadingNumber(p.PriceFormatted)
		}
		return p
	}

	p.Schema = SchemaLegacy
	p.Title = stringField(md, MetadataKeyName, MetadataKeyTitle)
	p.Article = stringField(md, MetadataKeySKU, MetadataKeyArticle)
	p.Available = truthy(md[MetadataKeyStatus]) && truthy(md[MetadataKeyQuantity])
	return p
}

// ArticleCode returns the catalog article of the product, or "" when unknown
func (c Candidate) ArticleCode() string {
	return c.Product.Article
}

func isCurrentSchema(md map[string]any) bool {
	for _, k := range []string{MetadataKeyTitle, MetadataKeyAvailability, MetadataKeyPriceFormatted, MetadataKeyGTIN} {
		if _, ok := md[k]; ok {
			return true
		}
	}
	return false
}

var (
	outOfStockMarkers = []string{"out of stock", "not in stock", "out_of_stock", "outofstock", "unavailable", "not available", "discontinued", "немає", "нет в наличии", "відсутн"}
	inStockMarkers    = []string{"in stock", "in_stock", "instock", "available", "preorder", "в наявності", "є в наявності", "в наличии"}
)

func availabilityInStock(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return false
	}
	for _, m := range outOfStockMarkers {
		if strings.Contains(v, m) {
			return false
		}
	}
	for _, m := range inStockMarkers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

func stringField(md map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := md[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int, int64, json.Number:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func categoryField(md map[string]any) string {
	for _, k := range []string{MetadataKeyCategory, MetadataKeyCategoryPath} {
		switch v := md[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, " > ")
			}
		case []string:
			if len(v) > 0 {
				return strings.Join(v, " > ")
			}
		}
	}
	return ""
}

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseLeadingNumber(n)
	}
	return 0, false
}

// parseLeadingNumber reads "1 299,50 грн" as 1299.50
func parseLeadingNumber(s string) (float64, bool) {
	var b strings.Builder
	seenDigit := false
scan:
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == ',' || r == '.':
			b.WriteRune('.')
		case r == ' ' || r == '\u00a0':
		default:
			if seenDigit {
				break scan
			}
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
	return f, err == nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t > 0
	case int:
		return t > 0
	case int64:
		return t > 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f > 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "true", "yes", "y", "active", "enabled", "in_stock", "instock":
			return true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f > 0
		}
	}
	return false
}
