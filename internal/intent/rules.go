package intent

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/liliang-cn/shopbot/internal/domain"
)

var (
	continuationWords = []string{"ще", "більше", "інші", "інших", "іншого", "ещё", "еще", "другие", "more", "others", "another", "else"}
	similarStems      = []string{"схож", "аналог", "альтернатив", "подібн", "замін", "похож", "similar", "alternative", "instead of"}
	questionWords     = []string{"є", "маєте", "маєш", "є у вас", "а", "чи", "есть", "have", "any", "do you"}
	purposeWords      = []string{"для", "від", "проти", "при", "от", "против", "for", "against"}

	// a product mentioned by the assistant: bold text or the head of a list item
	boldProduct = regexp.MustCompile(`\*\*([^*\n]{3,}?)\*\*`)
	listProduct = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-•*])\s+(.{3,}?)\s*(?:[-–—:]\s|\(|$)`)
)

// continuationMaxLength bounds a "show me more" style follow-up
const continuationMaxLength = 40

// RuleStrategy is the deterministic resolver used when the model is
// unavailable. It always accepts the turn.
type RuleStrategy struct {
	brands []string
}

// NewRuleStrategy creates the rule engine. brands are the names it recognises
// when splicing a brand onto the previous request.
func NewRuleStrategy(brands []string) *RuleStrategy {
	out := make([]string, 0, len(brands))
	for _, b := range brands {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return &RuleStrategy{brands: out}
}

func (r *RuleStrategy) Name() string { return "rules" }

func (r *RuleStrategy) Resolve(_ context.Context, message string, history []domain.Turn) (domain.Resolution, bool) {
	lower := strings.ToLower(message)
	words := wordSet(lower)
	prevUser := lastTurn(history, domain.RoleUser)

	if prevUser != "" && utf8.RuneCountInString(message) < continuationMaxLength && hasWord(words, continuationWords) {
		return searchResolution(domain.IntentRecommendation, prevUser, "continuation of the previous request", false), true
	}

	if brand := r.mentionedBrand(lower); brand != "" && prevUser != "" && isQuestion(lower, words) {
		query := prevUser
		if !strings.Contains(strings.ToLower(prevUser), strings.ToLower(brand)) {
			query = prevUser + " " + brand
		}
		return searchResolution(domain.IntentRecommendation, query, "brand refinement of the previous request", false), true
	}

	if hasStem(lower, similarStems) {
		if product := lastMentionedProduct(lastTurn(history, domain.RoleAssistant)); product != "" {
			return searchResolution(domain.IntentFindSimilar, product, "alternatives to a product already shown", false), true
		}
		return searchResolution(domain.IntentFindSimilar, message, "alternatives requested", false), true
	}

	return searchResolution(domain.IntentRecommendation, message, "general request", hasWord(words, purposeWords)), true
}

func (r *RuleStrategy) mentionedBrand(lower string) string {
	for _, b := range r.brands {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	return ""
}

func isQuestion(lower string, words map[string]struct{}) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, q := range questionWords {
		if strings.Contains(q, " ") {
			if strings.Contains(lower, q) {
				return true
			}
		} else if _, ok := words[q]; ok {
			return true
		}
	}
	return false
}

func hasWord(words map[string]struct{}, list []string) bool {
	for _, w := range list {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

func hasStem(lower string, stems []string) bool {
	for _, s := range stems {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func lastTurn(history []domain.Turn, role domain.Role) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == role {
			return history[i].Text
		}
	}
	return ""
}

// lastMentionedProduct pulls the first product name out of an assistant reply
func lastMentionedProduct(text string) string {
	if text == "" {
		return ""
	}
	if m := boldProduct.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := listProduct.FindStringSubmatch(text); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), "*")
	}
	return ""
}
