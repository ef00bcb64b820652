// Package ranking filters and orders retrieved candidates. Every function is
// pure and returns a new slice.
package ranking

import "github.com/liliang-cn/shopbot/internal/domain"

// ScoreThresholdCeiling caps the configured score threshold
const ScoreThresholdCeiling = 0.3

// DefaultPriceWindow is the relative price tolerance for similar products
const DefaultPriceWindow = 0.3

func filter(list []domain.Candidate, keep func(domain.Candidate) bool) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(list))
	for _, c := range list {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// FilterAvailable keeps in-stock candidates
func FilterAvailable(list []domain.Candidate) []domain.Candidate {
	return filter(list, func(c domain.Candidate) bool { return c.Product.Available })
}

// FilterByScore drops candidates scoring below min(threshold, ScoreThresholdCeiling)
func FilterByScore(list []domain.Candidate, threshold float64) []domain.Candidate {
	if threshold > ScoreThresholdCeiling {
		threshold = ScoreThresholdCeiling
	}
	return filter(list, func(c domain.Candidate) bool { return c.Score >= threshold })
}

// FilterNovel drops candidates already shown in the session
func FilterNovel(list []domain.Candidate, shown map[string]struct{}) []domain.Candidate {
	if len(shown) == 0 {
		return append([]domain.Candidate{}, list...)
	}
	return filter(list, func(c domain.Candidate) bool {
		_, seen := shown[c.ID]
		return !seen
	})
}

// Dedupe keeps the first occurrence of each id
func Dedupe(list []domain.Candidate) []domain.Candidate {
	seen := make(map[string]struct{}, len(list))
	return filter(list, func(c domain.Candidate) bool {
		if _, dup := seen[c.ID]; dup {
			return false
		}
		seen[c.ID] = struct{}{}
		return true
	})
}

// Merge concatenates lists in order, dropping repeated ids, capped at limit
// when limit is positive.
func Merge(limit int, lists ...[]domain.Candidate) []domain.Candidate {
	var all []domain.Candidate
	for _, l := range lists {
		all = append(all, l...)
	}
	out := Dedupe(all)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PriceWindow keeps in-stock candidates other than the reference that share
// its main category and cost within ratio of its price. Candidates without a
// price never match. When the reference has no price only the category and
// stock conditions apply.
func PriceWindow(reference domain.Candidate, list []domain.Candidate, ratio float64) []domain.Candidate {
	if ratio <= 0 {
		ratio = DefaultPriceWindow
	}
	category := reference.Product.MainCategory()
	lo := reference.Product.Price * (1 - ratio)
	hi := reference.Product.Price * (1 + ratio)

	return filter(list, func(c domain.Candidate) bool {
		if c.ID == reference.ID || !c.Product.Available {
			return false
		}
		if category != "" && c.Product.MainCategory() != category {
			return false
		}
		if !reference.Product.HasPrice {
			return true
		}
		return c.Product.HasPrice && c.Product.Price >= lo && c.Product.Price <= hi
	})
}
