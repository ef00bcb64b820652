package ranking

import (
	"testing"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/stretchr/testify/assert"
)

var testTiers = NewTiers([]string{"Biotus"}, []string{"now foods", "solgar"})

func cand(id, brand string, score float64) domain.Candidate {
	return domain.Candidate{ID: id, Score: score, Product: domain.Product{Title: id, Brand: brand, Available: true}}
}

func ids(list []domain.Candidate) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		brand string
		want  Tier
	}{
		{"Biotus", TierHouse},
		{"BIOTUS Pro", TierHouse},
		{"Now Foods", TierPartner},
		{"NOW FOODS Inc.", TierPartner},
		{"Solgar", TierPartner},
		{"Acme", TierOther},
		{"", TierOther},
		{"   ", TierOther},
	}
	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			assert.Equal(t, tt.want, testTiers.Classify(tt.brand))
		})
	}
}

func TestSort_TierThenScore(t *testing.T) {
	in := []domain.Candidate{
		cand("other-high", "Acme", 0.99),
		cand("partner-low", "Solgar", 0.4),
		cand("house", "Biotus", 0.5),
		cand("partner-high", "Now Foods", 0.9),
	}
	got := testTiers.Sort(in)
	assert.Equal(t, []string{"house", "partner-high", "partner-low", "other-high"}, ids(got))
	assert.Equal(t, "other-high", in[0].ID, "input is left untouched")
}

func TestEnforceQuota_CollapsesHouseBrands(t *testing.T) {
	in := []domain.Candidate{
		cand("h1", "Biotus", 0.7),
		cand("h2", "Biotus", 0.9),
		cand("p1", "Now Foods", 0.8),
		cand("o1", "Acme", 0.95),
		cand("o2", "Other", 0.6),
	}
	got := testTiers.EnforceQuota(in, 5, nil)

	assert.Equal(t, 1, testTiers.Count(got, TierHouse))
	assert.Equal(t, []string{"h2", "p1", "o1", "o2"}, ids(got))
}

func TestEnforceQuota_SplicesSupplement(t *testing.T) {
	in := []domain.Candidate{
		cand("p1", "Now Foods", 0.8),
		cand("o1", "Acme", 0.7),
		cand("o2", "Acme", 0.6),
	}
	supplement := []domain.Candidate{
		cand("p1", "Now Foods", 0.8),
		cand("h1", "Biotus", 0.5),
		cand("h2", "Biotus", 0.4),
	}

	assert.True(t, testTiers.NeedsHouseBrand(in))
	got := testTiers.EnforceQuota(in, 3, supplement)
	assert.Equal(t, []string{"h1", "p1", "o1"}, ids(got), "tail is trimmed to keep the requested count")
	assert.False(t, testTiers.NeedsHouseBrand(got))
}

func TestEnforceQuota_NoHouseAvailable(t *testing.T) {
	in := []domain.Candidate{cand("o1", "Acme", 0.7), cand("p1", "Solgar", 0.5)}
	got := testTiers.EnforceQuota(in, 5, []domain.Candidate{cand("o9", "Acme", 0.9)})
	assert.Equal(t, []string{"p1", "o1"}, ids(got))
	assert.Equal(t, 0, testTiers.Count(got, TierHouse))
}

func TestBalance(t *testing.T) {
	in := []domain.Candidate{
		cand("o1", "Acme", 0.99),
		cand("h1", "Biotus", 0.5),
		cand("h2", "Biotus", 0.6),
		cand("p1", "Now Foods", 0.7),
		cand("p2", "Solgar", 0.8),
		cand("o2", "Acme", 0.3),
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"room for everything", 10, []string{"h2", "p2", "p1", "o1", "o2"}},
		{"partners before others", 3, []string{"h2", "p2", "p1"}},
		{"limit one", 1, []string{"h2"}},
		{"zero means no cap", 0, []string{"h2", "p2", "p1", "o1", "o2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(testTiers.Balance(in, tt.limit)))
		})
	}
}

func TestFilters_Idempotent(t *testing.T) {
	in := []domain.Candidate{
		cand("a", "Acme", 0.9),
		cand("b", "Acme", 0.1),
		{ID: "c", Score: 0.8, Product: domain.Product{Available: false}},
		cand("d", "Acme", 0.3),
	}

	once := FilterAvailable(FilterByScore(in, 0.5))
	twice := FilterAvailable(FilterByScore(once, 0.5))
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"a", "d"}, ids(once), "threshold is capped at 0.3")
}

func TestFilterByScore_BelowCeiling(t *testing.T) {
	in := []domain.Candidate{cand("a", "", 0.25), cand("b", "", 0.15)}
	assert.Equal(t, []string{"a"}, ids(FilterByScore(in, 0.2)))
}

func TestFilterNovel(t *testing.T) {
	in := []domain.Candidate{cand("a", "", 1), cand("b", "", 1), cand("c", "", 1)}
	shown := map[string]struct{}{"b": {}}

	assert.Equal(t, []string{"a", "c"}, ids(FilterNovel(in, shown)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(FilterNovel(in, nil)))
}

func TestMergeAndDedupe(t *testing.T) {
	a := []domain.Candidate{cand("1", "", 1), cand("2", "", 1), cand("1", "", 0.5)}
	b := []domain.Candidate{cand("2", "", 1), cand("3", "", 1), cand("4", "", 1)}

	assert.Equal(t, []string{"1", "2"}, ids(Dedupe(a)))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(Merge(0, a, b)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Merge(3, a, b)))
}

func TestPriceWindow(t *testing.T) {
	priced := func(id, category string, price float64, available bool) domain.Candidate {
		return domain.Candidate{ID: id, Score: 0.9, Product: domain.Product{
			Title: id, Category: category, Price: price, HasPrice: true, Available: available,
		}}
	}
	ref := priced("ref", "Вітаміни > Вітамін D", 100, true)
	in := []domain.Candidate{
		ref,
		priced("cheap", "Вітаміни > Вітамін D", 69, true),
		priced("low-edge", "вітаміни / інше", 71, true),
		priced("high-edge", "Вітаміни", 129, true),
		priced("pricey", "Вітаміни", 131, true),
		priced("other-cat", "Омега > Риб'ячий жир", 100, true),
		priced("sold-out", "Вітаміни", 100, false),
		{ID: "no-price", Product: domain.Product{Category: "Вітаміни", Available: true}},
	}

	assert.Equal(t, []string{"low-edge", "high-edge"}, ids(PriceWindow(ref, in, 0.3)))

	unpriced := domain.Candidate{ID: "ref", Product: domain.Product{Category: "Вітаміни"}}
	assert.Equal(t,
		[]string{"cheap", "low-edge", "high-edge", "pricey", "no-price"},
		ids(PriceWindow(unpriced, in, 0.3)),
		"a reference without price only constrains category and stock")
}
