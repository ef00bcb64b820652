package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/llm"
)

// Fixed replies that never go through the language model
const (
	WelcomeText = "Вітаю! Я допоможу підібрати вітаміни, добавки та інші товари для здоров'я. " +
		"Розкажіть, що вас цікавить, або надішліть артикул товару."
	OffDomainText = "Вибачте, я можу допомогти лише з вибором товарів нашого магазину: " +
		"вітамінів, добавок і товарів для здоров'я. Що саме вас цікавить?"
	NoProductsText = "На жаль, за вашим запитом я не знайшов відповідних товарів. " +
		"Спробуйте уточнити запит або описати потребу іншими словами."
	FailureText = "Вибачте, сталася технічна помилка. Спробуйте, будь ласка, ще раз трохи пізніше."
)

const descriptionPreviewRunes = 200

const generationSystemPrompt = `You are the shopping assistant of an online store of vitamins, supplements and health products. Answer in Ukrainian, in a warm and concise way.

Rules:
- Recommend only products from the catalog list you are given. Never invent products, prices or links.
- Prefer products that are in stock. Mention the price when it is known.
- Do not give medical diagnoses. Suggest consulting a doctor for medical conditions.
- Pick at most 3 products for the structured list and explain briefly why each one fits.

Reply with one JSON object and nothing else:
{"message": "text for the customer", "products": [{"id": "catalog id from the list", "title": "...", "brand": "...", "price": "...", "article": "...", "image": "...", "link": "...", "reason": "why it fits"}]}`

// buildGenerationMessages renders recent history and the candidate list for the final model call
func buildGenerationMessages(message string, history []domain.Turn, intent domain.Intent, candidates []domain.Candidate) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: generationSystemPrompt})
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Text})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Catalog products found for the search %q:\n", intent.Query)
	for i, c := range candidates {
		p := c.Product
		fmt.Fprintf(&b, "%d. id=%s | %s", i+1, c.ID, p.Title)
		writeField(&b, "brand", p.Brand)
		writeField(&b, "price", p.DisplayPrice())
		writeField(&b, "article", p.Article)
		writeField(&b, "category", p.Category)
		if p.Available {
			b.WriteString(" | in stock")
		} else {
			b.WriteString(" | out of stock")
		}
		writeField(&b, "link", p.URL)
		writeField(&b, "image", p.ImageURL)
		writeField(&b, "description", preview(p.Description, descriptionPreviewRunes))
		b.WriteString("\n")
	}
	if intent.Tag == domain.IntentFindSimilar {
		b.WriteString("\nThe customer asked for alternatives to a product they already saw.\n")
	}
	if intent.MultiComponent {
		b.WriteString("\nThe request covers several product types; combine complementary products.\n")
	}
	fmt.Fprintf(&b, "\nCustomer message: %s", message)

	return append(messages, llm.Message{Role: llm.RoleUser, Content: b.String()})
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, " | %s: %s", name, value)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
