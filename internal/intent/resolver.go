// Package intent decides what kind of product lookup a chat turn needs.
package intent

import (
	"context"

	"github.com/liliang-cn/shopbot/internal/domain"
	"go.uber.org/zap"
)

// Strategy is one link of the resolver chain. It returns ok=false to hand
// the turn to the next strategy.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, message string, history []domain.Turn) (domain.Resolution, bool)
}

// Resolver runs strategies in order until one accepts the turn
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewResolver creates a resolver over strategies. A trailing RuleStrategy is
// appended when missing, so every turn resolves.
func NewResolver(logger *zap.Logger, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = append(strategies, NewRuleStrategy(nil))
	} else if _, ok := strategies[len(strategies)-1].(*RuleStrategy); !ok {
		strategies = append(strategies, NewRuleStrategy(nil))
	}
	return &Resolver{strategies: strategies, logger: logger.Named("intent")}
}

// Resolve classifies message given the prior conversation
func (r *Resolver) Resolve(ctx context.Context, message string, history []domain.Turn) domain.Resolution {
	for _, s := range r.strategies {
		res, ok := s.Resolve(ctx, message, history)
		if !ok {
			continue
		}
		res.Source = s.Name()
		r.logger.Debug("Intent resolved",
			zap.String("source", res.Source),
			zap.String("intent", string(res.Intent.Tag)),
			zap.String("query", res.Intent.Query),
			zap.Bool("multi", res.Intent.MultiComponent),
		)
		return res
	}
	// unreachable with a trailing RuleStrategy
	return domain.Resolution{
		Kind:      domain.ResolutionSearch,
		Intent:    domain.Intent{Tag: domain.IntentRecommendation, Query: message},
		Relevance: domain.RelevanceCheck{IsRelevant: true},
	}
}

func searchResolution(tag domain.IntentTag, query, rationale string, multi bool) domain.Resolution {
	return domain.Resolution{
		Kind: domain.ResolutionSearch,
		Intent: domain.Intent{
			Tag:            tag,
			Query:          query,
			Rationale:      rationale,
			MultiComponent: multi,
		},
		Relevance: domain.RelevanceCheck{IsRelevant: true, Reason: rationale},
	}
}
