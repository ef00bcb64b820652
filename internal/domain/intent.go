package domain

// IntentTag is the kind of product lookup a turn needs
type IntentTag string

const (
	IntentArticleSearch  IntentTag = "article_search"
	IntentFindSimilar    IntentTag = "find_similar"
	IntentRecommendation IntentTag = "recommendation"
)

// Valid reports whether t is one of the known tags
func (t IntentTag) Valid() bool {
	switch t {
	case IntentArticleSearch, IntentFindSimilar, IntentRecommendation:
		return true
	}
	return false
}

// Intent is the per-turn lookup decision. It is never persisted.
type Intent struct {
	Tag            IntentTag `json:"intent"`
	Query          string    `json:"searchQuery"`
	Rationale      string    `json:"reasoning"`
	MultiComponent bool      `json:"needsMultipleComponents"`
}

// ResolutionKind says whether a turn goes through retrieval at all
type ResolutionKind int

const (
	ResolutionSearch ResolutionKind = iota
	ResolutionGreeting
	ResolutionOffDomain
)

// Resolution is the Intent Resolver output
type Resolution struct {
	Kind      ResolutionKind
	Intent    Intent
	Relevance RelevanceCheck
	// Source names the strategy that produced the resolution
	Source string
}
