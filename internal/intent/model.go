package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/extract"
	"github.com/liliang-cn/shopbot/internal/llm"
	"github.com/liliang-cn/shopbot/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const classifySystemPrompt = `You classify messages sent to the shopping assistant of an online store of vitamins, supplements and health products. Customers usually write in Ukrainian.

Decide:
- isRelevant: false only when the message has nothing to do with the store's products or shopping for them.
- intent: "article_search" when the customer gives a product code, "find_similar" when they want alternatives or analogues to a product already discussed, otherwise "recommendation".
- searchQuery: a short catalog search query. Resolve references to the conversation, e.g. "а від Now Foods є?" after asking about vitamin D3 becomes "вітамін D3 Now Foods".
- needsMultipleComponents: true when the request implies several product types, e.g. support for immunity or a goal like "для суглобів".

Reply with one JSON object and nothing else:
{"isRelevant": true, "reason": "...", "intent": "recommendation", "searchQuery": "...", "reasoning": "...", "needsMultipleComponents": false, "context": "..."}`

// ModelConfig tunes the model-assisted classifier
type ModelConfig struct {
	Temperature  float64
	MaxTokens    int
	HistoryTurns int
}

// ModelStrategy asks the language model to classify the turn. Any provider or
// parse failure returns ok=false.
type ModelStrategy struct {
	completer llm.Completer
	cfg       ModelConfig
	logger    *zap.Logger
}

// NewModelStrategy creates a model-assisted classifier
func NewModelStrategy(completer llm.Completer, cfg ModelConfig, logger *zap.Logger) *ModelStrategy {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &ModelStrategy{completer: completer, cfg: cfg, logger: logger.Named("intent.model")}
}

func (m *ModelStrategy) Name() string { return "model" }

// classification mirrors the JSON the model is asked for. Pointers tell a
// missing field apart from a zero value.
type classification struct {
	IsRelevant     *bool  `json:"isRelevant"`
	Reason         string `json:"reason"`
	Intent         string `json:"intent"`
	SearchQuery    string `json:"searchQuery"`
	Reasoning      string `json:"reasoning"`
	MultiComponent bool   `json:"needsMultipleComponents"`
	Context        string `json:"context"`
}

func (m *ModelStrategy) Resolve(ctx context.Context, message string, history []domain.Turn) (domain.Resolution, bool) {
	ctx, span := tracing.Tracer().Start(ctx, "intent.Classify", trace.WithAttributes(
		attribute.Int("history_turns", len(history)),
	))
	defer span.End()

	out, err := m.completer.Complete(ctx, m.buildMessages(message, history),
		llm.WithTemperature(m.cfg.Temperature),
		llm.WithMaxTokens(m.cfg.MaxTokens),
	)
	if err != nil {
		span.RecordError(err)
		m.logger.Warn("Classification call failed, using rules", zap.Error(err))
		return domain.Resolution{}, false
	}

	result := extract.FirstObject(out)
	var c classification
	if !result.Decode(&c) {
		span.SetAttributes(attribute.String("parse", result.Status.String()))
		m.logger.Warn("Unparsable classification, using rules",
			zap.String("status", result.Status.String()),
			zap.Int("length", len(out)),
		)
		return domain.Resolution{}, false
	}

	res := c.resolution(message)
	span.SetAttributes(
		attribute.Bool("relevant", res.Relevance.IsRelevant),
		attribute.String("intent", string(res.Intent.Tag)),
	)
	return res, true
}

func (c classification) resolution(message string) domain.Resolution {
	relevant := true
	if c.IsRelevant != nil {
		relevant = *c.IsRelevant
	}
	if !relevant {
		return domain.Resolution{
			Kind:      domain.ResolutionOffDomain,
			Relevance: domain.RelevanceCheck{IsRelevant: false, Reason: c.Reason},
		}
	}

	tag := domain.IntentTag(strings.TrimSpace(c.Intent))
	if !tag.Valid() {
		tag = domain.IntentRecommendation
	}
	query := strings.TrimSpace(c.SearchQuery)
	if query == "" {
		query = message
	}
	rationale := c.Reasoning
	if rationale == "" {
		rationale = c.Context
	}

	return domain.Resolution{
		Kind: domain.ResolutionSearch,
		Intent: domain.Intent{
			Tag:            tag,
			Query:          query,
			Rationale:      rationale,
			MultiComponent: c.MultiComponent,
		},
		Relevance: domain.RelevanceCheck{IsRelevant: true, Reason: c.Reason},
	}
}

func (m *ModelStrategy) buildMessages(message string, history []domain.Turn) []llm.Message {
	if len(history) > m.cfg.HistoryTurns {
		history = history[len(history)-m.cfg.HistoryTurns:]
	}

	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "New message: %s", message)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: classifySystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
