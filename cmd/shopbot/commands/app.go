package commands

import (
	"context"
	"fmt"

	"github.com/liliang-cn/shopbot/internal/config"
	"github.com/liliang-cn/shopbot/internal/intent"
	"github.com/liliang-cn/shopbot/internal/llm"
	"github.com/liliang-cn/shopbot/internal/logging"
	"github.com/liliang-cn/shopbot/internal/repository"
	"github.com/liliang-cn/shopbot/internal/retrieval"
	"github.com/liliang-cn/shopbot/internal/service"
	"github.com/liliang-cn/shopbot/internal/tracing"
	"go.uber.org/zap"
)

// app bundles the components shared by every command
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *llm.OpenAI
	gateway  *retrieval.Gateway
	sessions *repository.MemorySessionStore
	qdrant   *repository.QdrantIndex

	closers []func() error
	flush   func(context.Context) error
}

// newApp loads configuration and builds the retrieval stack. logLevel
// overrides the configured level when non-empty.
func newApp(ctx context.Context, logLevel string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	} else if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		flush:  tracing.Init(ctx, cfg.Tracing, logger),
	}

	index, err := a.openIndex()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client = llm.NewOpenAI(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		LLMModel:       cfg.LLM.LLMModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
	})
	a.gateway = retrieval.NewGateway(a.client, index, retrieval.Config{
		ArticleFields:     cfg.Retrieval.ArticleFields,
		EmbeddingCacheTTL: cfg.Retrieval.EmbeddingCacheTTL,
	}, logger)
	a.sessions = repository.NewMemorySessionStore(cfg.Session.HistorySize)

	return a, nil
}

func (a *app) openIndex() (retrieval.Index, error) {
	switch a.cfg.Index.Provider {
	case config.IndexProviderQdrant:
		q, err := repository.NewQdrantIndex(repository.QdrantConfig{
			Host:       a.cfg.Index.Host,
			Port:       a.cfg.Index.Port,
			APIKey:     a.cfg.Index.APIKey,
			UseTLS:     a.cfg.Index.UseTLS,
			Collection: a.cfg.Index.Collection,
		})
		if err != nil {
			return nil, err
		}
		a.qdrant = q
		a.closers = append(a.closers, q.Close)
		a.logger.Info("Using qdrant index",
			zap.String("host", a.cfg.Index.Host),
			zap.String("collection", a.cfg.Index.Collection),
		)
		return q, nil
	default:
		db, err := repository.NewDB(a.cfg.Index.DBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Info("Using sqlite index", zap.String("path", a.cfg.Index.DBPath))
		return repository.NewCatalogRepository(db), nil
	}
}

// chatService assembles the intent chain and turn orchestrator
func (a *app) chatService() *service.ChatService {
	brands := make([]string, 0, len(a.cfg.Ranking.HouseBrands)+len(a.cfg.Ranking.PartnerBrands))
	brands = append(brands, a.cfg.Ranking.HouseBrands...)
	brands = append(brands, a.cfg.Ranking.PartnerBrands...)

	resolver := intent.NewResolver(a.logger,
		intent.GreetingStrategy{},
		intent.ArticleStrategy{},
		intent.NewModelStrategy(a.client, intent.ModelConfig{
			Temperature:  a.cfg.Chat.IntentTemperature,
			MaxTokens:    a.cfg.Chat.IntentMaxTokens,
			HistoryTurns: a.cfg.Chat.IntentHistoryTurns,
		}, a.logger),
		intent.NewRuleStrategy(brands),
	)
	return service.NewChatService(a.cfg, a.sessions, a.gateway, resolver, a.client, a.logger)
}

// Close releases the index, flushes traces and syncs the logger
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	if a.flush != nil {
		if err := a.flush(context.Background()); err != nil {
			a.logger.Warn("Trace flush failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
