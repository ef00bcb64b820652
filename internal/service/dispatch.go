package service

import (
	"context"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/ranking"
	"go.uber.org/zap"
)

// balanceThreshold is the list size above which recommendations get a balanced brand mix
const balanceThreshold = 3

// dispatch retrieves and ranks candidates for intent. Novelty filtering is
// applied to everything except article lookups.
func (s *ChatService) dispatch(ctx context.Context, intent domain.Intent, shown map[string]struct{}) ([]domain.Candidate, error) {
	switch intent.Tag {
	case domain.IntentArticleSearch:
		return s.retriever.FindByArticle(ctx, intent.Query)
	case domain.IntentFindSimilar:
		return s.findSimilar(ctx, intent, shown)
	default:
		return s.recommend(ctx, intent, shown)
	}
}

func (s *ChatService) findSimilar(ctx context.Context, intent domain.Intent, shown map[string]struct{}) ([]domain.Candidate, error) {
	refs, err := s.retriever.SearchByText(ctx, intent.Query, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []domain.Candidate{}, nil
	}
	ref := refs[0]

	similar, err := s.retriever.FindSimilar(ctx, ref, s.cfg.Retrieval.SimilarTopK)
	if err != nil {
		return nil, err
	}

	list := ranking.PriceWindow(ref, similar, s.cfg.Ranking.PriceWindowRatio)
	list = ranking.FilterNovel(list, shown)
	list = s.tiers.Balance(list, s.cfg.Ranking.ResultLimit)

	s.logger.Debug("Similar products",
		zap.String("reference", ref.ID),
		zap.Int("retrieved", len(similar)),
		zap.Int("kept", len(list)),
	)
	return list, nil
}

func (s *ChatService) recommend(ctx context.Context, intent domain.Intent, shown map[string]struct{}) ([]domain.Candidate, error) {
	topK := s.cfg.Retrieval.TopK
	if intent.MultiComponent {
		topK = s.cfg.Retrieval.MultiTopK
	}

	found, err := s.retriever.SearchByText(ctx, intent.Query, topK, nil)
	if err != nil {
		return nil, err
	}
	list := ranking.FilterAvailable(ranking.FilterByScore(found, s.cfg.Retrieval.ScoreThreshold))
	list = ranking.FilterNovel(list, shown)

	if len(list) > 0 {
		var supplement []domain.Candidate
		if s.tiers.NeedsHouseBrand(list) {
			supplement, err = s.houseSupplement(ctx, intent.Query, shown)
			if err != nil {
				return nil, err
			}
		}
		list = s.tiers.EnforceQuota(list, s.cfg.Ranking.ResultLimit, supplement)
		if len(list) > balanceThreshold {
			list = s.tiers.Balance(list, s.cfg.Ranking.ResultLimit)
		}
	}

	if len(list) < s.cfg.Chat.MinResults {
		pool, err := s.retriever.SearchByText(ctx, s.cfg.Chat.FallbackQuery, s.cfg.Chat.FallbackTopK, nil)
		if err != nil {
			return nil, err
		}
		pool = ranking.FilterNovel(ranking.FilterAvailable(pool), shown)
		merged := ranking.Merge(s.cfg.Chat.FallbackCap, list, pool)
		// the pool can bring several house products; keep the quota
		list = s.tiers.EnforceQuota(merged, s.cfg.Chat.FallbackCap, nil)

		s.logger.Debug("Fallback pool used",
			zap.String("query", intent.Query),
			zap.Int("pool", len(pool)),
			zap.Int("result", len(list)),
		)
	}

	return list, nil
}

// houseSupplement searches each house brand for the query, stopping at the first hit
func (s *ChatService) houseSupplement(ctx context.Context, query string, shown map[string]struct{}) ([]domain.Candidate, error) {
	for _, brand := range s.tiers.HouseBrands() {
		found, err := s.retriever.SearchByBrand(ctx, query, brand, s.cfg.Retrieval.TopK)
		if err != nil {
			return nil, err
		}
		found = ranking.FilterNovel(ranking.FilterAvailable(found), shown)
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}
