package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/shopbot/internal/config"
	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/extract"
	"github.com/liliang-cn/shopbot/internal/llm"
	"github.com/liliang-cn/shopbot/internal/ranking"
	"github.com/liliang-cn/shopbot/internal/repository"
	"github.com/liliang-cn/shopbot/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Retriever is the subset of the retrieval gateway the chat pipeline uses
type Retriever interface {
	SearchByText(ctx context.Context, query string, topK int, filter *domain.IndexFilter) ([]domain.Candidate, error)
	SearchByBrand(ctx context.Context, query, brand string, topK int) ([]domain.Candidate, error)
	FindByArticle(ctx context.Context, code string) ([]domain.Candidate, error)
	FindSimilar(ctx context.Context, reference domain.Candidate, topK int) ([]domain.Candidate, error)
}

// IntentResolver classifies a turn
type IntentResolver interface {
	Resolve(ctx context.Context, message string, history []domain.Turn) domain.Resolution
}

// ChatService runs one conversation turn end to end
type ChatService struct {
	cfg       *config.Config
	sessions  repository.SessionStore
	retriever Retriever
	resolver  IntentResolver
	completer llm.Completer
	tiers     ranking.Tiers
	logger    *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	cfg *config.Config,
	sessions repository.SessionStore,
	retriever Retriever,
	resolver IntentResolver,
	completer llm.Completer,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		cfg:       cfg,
		sessions:  sessions,
		retriever: retriever,
		resolver:  resolver,
		completer: completer,
		tiers:     ranking.NewTiers(cfg.Ranking.HouseBrands, cfg.Ranking.PartnerBrands),
		logger:    logger.Named("chat"),
	}
}

// ProcessChatMessage handles one user message. An empty sessionID starts a
// new session; anything but a dashed UUID is rejected with
// domain.ErrInvalidSession.
func (s *ChatService) ProcessChatMessage(ctx context.Context, message, sessionID string) (resp *domain.ChatResponse, err error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "chat.ProcessChatMessage")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	message = truncateRunes(strings.TrimSpace(message), s.cfg.Chat.MaxMessageLength)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}

	// a new session is only stored once the turn succeeds and Append runs
	var token string
	if raw := strings.TrimSpace(sessionID); raw == "" {
		token = repository.NewToken()
	} else {
		normalized, ok := repository.NormalizeToken(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSession, sessionID)
		}
		token = normalized
	}
	span.SetAttributes(attribute.String("session_id", token))

	history := s.sessions.History(token)
	shown := s.sessions.ShownIDs(token)

	res := s.resolver.Resolve(ctx, message, history)
	span.SetAttributes(
		attribute.String("intent.source", res.Source),
		attribute.String("intent.tag", string(res.Intent.Tag)),
	)

	switch res.Kind {
	case domain.ResolutionGreeting:
		return s.reply(token, message, WelcomeText, res.Relevance), nil
	case domain.ResolutionOffDomain:
		return s.reply(token, message, OffDomainText, res.Relevance), nil
	}

	candidates, err := s.dispatch(ctx, res.Intent, shown)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", res.Intent.Tag, err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	if len(candidates) == 0 {
		return s.reply(token, message, NoProductsText, res.Relevance), nil
	}

	text, products, err := s.generate(ctx, message, history, res.Intent, candidates)
	if err != nil {
		return nil, err
	}

	s.sessions.Append(token, domain.RoleUser, message)
	s.sessions.Append(token, domain.RoleAssistant, text)
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	s.sessions.MarkShown(token, ids...)

	s.logger.Info("Turn completed",
		zap.String("session_id", token),
		zap.String("intent", string(res.Intent.Tag)),
		zap.String("source", res.Source),
		zap.String("query", res.Intent.Query),
		zap.Int("products_found", len(candidates)),
		zap.Int("products", len(products)),
		zap.Duration("latency", time.Since(start)),
	)

	return &domain.ChatResponse{
		Response:       text,
		SessionID:      token,
		ProductsFound:  len(candidates),
		RelevanceCheck: res.Relevance,
		Products:       products,
	}, nil
}

// reply records a fixed answer that needed no generation
func (s *ChatService) reply(token, message, text string, relevance domain.RelevanceCheck) *domain.ChatResponse {
	s.sessions.Append(token, domain.RoleUser, message)
	s.sessions.Append(token, domain.RoleAssistant, text)
	return &domain.ChatResponse{
		Response:       text,
		SessionID:      token,
		RelevanceCheck: relevance,
	}
}

// generated mirrors the JSON the generation prompt asks for
type generated struct {
	Message  string               `json:"message"`
	Products []domain.ProductCard `json:"products"`
}

func (s *ChatService) generate(ctx context.Context, message string, history []domain.Turn, intent domain.Intent, candidates []domain.Candidate) (string, []domain.ProductCard, error) {
	ctx, span := tracing.Tracer().Start(ctx, "chat.Generate", trace.WithAttributes(
		attribute.Int("candidates", len(candidates)),
	))
	defer span.End()

	out, err := s.completer.Complete(ctx, buildGenerationMessages(message, history, intent, candidates),
		llm.WithTemperature(s.cfg.Chat.Temperature),
		llm.WithMaxTokens(s.cfg.Chat.MaxTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	result := extract.FirstObject(out)
	var g generated
	if !result.Decode(&g) || strings.TrimSpace(g.Message) == "" {
		s.logger.Warn("Generation output is not the expected JSON, using raw text",
			zap.String("status", result.Status.String()),
		)
		return strings.TrimSpace(out), nil, nil
	}

	return strings.TrimSpace(g.Message), hydrate(g.Products, candidates), nil
}

// hydrate keeps model-picked products that exist among candidates and fills
// missing fields from catalog metadata. Ids and articles always come from the
// catalog. The result holds at most domain.MaxProductCards entries.
func hydrate(picked []domain.ProductCard, candidates []domain.Candidate) []domain.ProductCard {
	byID := make(map[string]domain.Candidate, len(candidates))
	byArticle := make(map[string]domain.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		if a := c.ArticleCode(); a != "" {
			byArticle[strings.ToUpper(a)] = c
		}
	}

	var out []domain.ProductCard
	seen := make(map[string]struct{})
	for _, p := range picked {
		if len(out) == domain.MaxProductCards {
			break
		}
		c, ok := byID[p.ID]
		if !ok && p.Article != "" {
			c, ok = byArticle[strings.ToUpper(p.Article)]
		}
		if !ok {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		card := p
		card.ID = c.ID
		card.Title = firstNonEmpty(card.Title, c.Product.Title)
		card.Brand = firstNonEmpty(card.Brand, c.Product.Brand)
		card.Price = firstNonEmpty(card.Price, c.Product.DisplayPrice())
		card.Article = firstNonEmpty(c.Product.Article, card.Article)
		card.Image = firstNonEmpty(card.Image, c.Product.ImageURL)
		card.Link = firstNonEmpty(card.Link, c.Product.URL)
		out = append(out, card)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DeleteSession removes a session; false when it was unknown or malformed
func (s *ChatService) DeleteSession(sessionID string) bool {
	deleted := s.sessions.Delete(sessionID)
	if deleted {
		s.logger.Info("Session deleted", zap.String("session_id", sessionID))
	}
	return deleted
}

// GetSessionStats summarizes live sessions
func (s *ChatService) GetSessionStats() domain.SessionStats {
	sessions := s.sessions.Stats()
	return domain.SessionStats{TotalSessions: len(sessions), Sessions: sessions}
}
