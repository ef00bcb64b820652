package ranking

import (
	"sort"
	"strings"

	"github.com/liliang-cn/shopbot/internal/domain"
)

// Tier is a brand priority. Lower values rank first.
type Tier int

const (
	TierHouse   Tier = 1
	TierPartner Tier = 2
	TierOther   Tier = 3
)

// Tiers classifies brands into priority tiers
type Tiers struct {
	house   []string
	partner []string
}

// NewTiers builds a classifier from house (tier 1) and partner (tier 2) brand names
func NewTiers(house, partner []string) Tiers {
	return Tiers{house: normalizeBrands(house), partner: normalizeBrands(partner)}
}

func normalizeBrands(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// HouseBrands returns the tier 1 brand names
func (t Tiers) HouseBrands() []string {
	return append([]string(nil), t.house...)
}

// Classify maps a brand onto its tier. Matching is a case-insensitive substring
// test, so "Now Foods Inc." is tier 2. An empty brand is tier 3.
func (t Tiers) Classify(brand string) Tier {
	b := strings.ToLower(strings.TrimSpace(brand))
	if b == "" {
		return TierOther
	}
	for _, h := range t.house {
		if strings.Contains(b, h) {
			return TierHouse
		}
	}
	for _, p := range t.partner {
		if strings.Contains(b, p) {
			return TierPartner
		}
	}
	return TierOther
}

// Sort orders by tier, then by score descending. The input is not modified.
func (t Tiers) Sort(list []domain.Candidate) []domain.Candidate {
	out := append([]domain.Candidate(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := t.Classify(out[i].Product.Brand), t.Classify(out[j].Product.Brand)
		if ti != tj {
			return ti < tj
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// Count returns how many candidates belong to tier
func (t Tiers) Count(list []domain.Candidate, tier Tier) int {
	n := 0
	for _, c := range list {
		if t.Classify(c.Product.Brand) == tier {
			n++
		}
	}
	return n
}

// NeedsHouseBrand reports whether list lacks a tier 1 product
func (t Tiers) NeedsHouseBrand(list []domain.Candidate) bool {
	return t.Count(list, TierHouse) == 0
}

// EnforceQuota returns list sorted with exactly one tier 1 product at the front
// when one is available, taking it from supplement if list has none. Extra
// tier 1 products are dropped and the result is trimmed to limit.
func (t Tiers) EnforceQuota(list []domain.Candidate, limit int, supplement []domain.Candidate) []domain.Candidate {
	sorted := t.Sort(list)

	var house *domain.Candidate
	rest := make([]domain.Candidate, 0, len(sorted))
	inList := make(map[string]struct{}, len(sorted))
	for i := range sorted {
		inList[sorted[i].ID] = struct{}{}
		if t.Classify(sorted[i].Product.Brand) == TierHouse {
			if house == nil {
				house = &sorted[i]
			}
			continue
		}
		rest = append(rest, sorted[i])
	}

	if house == nil {
		for _, c := range t.Sort(supplement) {
			if _, dup := inList[c.ID]; dup {
				continue
			}
			if t.Classify(c.Product.Brand) == TierHouse {
				c := c
				house = &c
				break
			}
		}
	}

	out := make([]domain.Candidate, 0, len(rest)+1)
	if house != nil {
		out = append(out, *house)
	}
	out = append(out, rest...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Balance composes at most one house product, then as many partner products
// as fit, then fills the rest with other brands, capped at limit.
func (t Tiers) Balance(list []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 {
		limit = len(list)
	}

	var house, partner, other []domain.Candidate
	for _, c := range t.Sort(list) {
		switch t.Classify(c.Product.Brand) {
		case TierHouse:
			if len(house) == 0 {
				house = append(house, c)
			}
		case TierPartner:
			partner = append(partner, c)
		default:
			other = append(other, c)
		}
	}

	out := make([]domain.Candidate, 0, limit)
	for _, group := range [][]domain.Candidate{house, partner, other} {
		for _, c := range group {
			if len(out) == limit {
				return out
			}
			out = append(out, c)
		}
	}
	return out
}
