package intent

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/liliang-cn/shopbot/internal/domain"
)

// greetingMaxLength bounds how long a message can be and still count as a bare greeting
const greetingMaxLength = 50

var greetingLexicon = []string{
	"привіт", "привітики", "вітаю", "добрий день", "доброго дня", "добрий вечір",
	"доброго вечора", "доброго ранку", "здрастуйте", "здравствуйте", "привет",
	"hello", "hi", "hey", "хай", "салют",
}

// GreetingStrategy short-circuits a bare greeting that opens a conversation
type GreetingStrategy struct{}

func (GreetingStrategy) Name() string { return "greeting" }

func (GreetingStrategy) Resolve(_ context.Context, message string, history []domain.Turn) (domain.Resolution, bool) {
	if len(history) > 0 || !IsGreeting(message) {
		return domain.Resolution{}, false
	}
	return domain.Resolution{
		Kind:      domain.ResolutionGreeting,
		Relevance: domain.RelevanceCheck{IsRelevant: true, Reason: "greeting"},
	}, true
}

// IsGreeting reports whether message is short and contains a greeting
func IsGreeting(message string) bool {
	if utf8.RuneCountInString(message) >= greetingMaxLength {
		return false
	}
	lower := strings.ToLower(message)
	words := wordSet(lower)
	for _, g := range greetingLexicon {
		if strings.Contains(g, " ") {
			if strings.Contains(lower, g) {
				return true
			}
			continue
		}
		if _, ok := words[g]; ok {
			return true
		}
	}
	return false
}

// ArticleStrategy classifies any message carrying an article code as an exact lookup
type ArticleStrategy struct{}

func (ArticleStrategy) Name() string { return "article" }

func (ArticleStrategy) Resolve(_ context.Context, message string, _ []domain.Turn) (domain.Resolution, bool) {
	code, ok := domain.FindArticle(message)
	if !ok {
		return domain.Resolution{}, false
	}
	return searchResolution(domain.IntentArticleSearch, code, "article code in message", false), true
}

func wordSet(lower string) map[string]struct{} {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
