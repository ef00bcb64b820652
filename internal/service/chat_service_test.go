package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/liliang-cn/shopbot/internal/config"
	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/intent"
	"github.com/liliang-cn/shopbot/internal/llm"
	"github.com/liliang-cn/shopbot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	reply    string
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ ...llm.Option) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

type fakeRetriever struct {
	byQuery  map[string][]domain.Candidate
	byBrand  map[string][]domain.Candidate
	articles map[string]domain.Candidate
	similar  []domain.Candidate
	err      error
	calls    int
}

func (f *fakeRetriever) SearchByText(_ context.Context, query string, topK int, _ *domain.IndexFilter) ([]domain.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.byQuery[query]
	if len(out) > topK {
		out = out[:topK]
	}
	return append([]domain.Candidate{}, out...), nil
}

func (f *fakeRetriever) SearchByBrand(_ context.Context, _ string, brand string, topK int) ([]domain.Candidate, error) {
	f.calls++
	out := f.byBrand[brand]
	if len(out) > topK {
		out = out[:topK]
	}
	return append([]domain.Candidate{}, out...), nil
}

func (f *fakeRetriever) FindByArticle(_ context.Context, code string) ([]domain.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.articles[code]; ok {
		return []domain.Candidate{c}, nil
	}
	return []domain.Candidate{}, nil
}

func (f *fakeRetriever) FindSimilar(_ context.Context, _ domain.Candidate, topK int) ([]domain.Candidate, error) {
	f.calls++
	out := f.similar
	if len(out) > topK {
		out = out[:topK]
	}
	return append([]domain.Candidate{}, out...), nil
}

func product(id, brand string, score float64) domain.Candidate {
	return domain.Candidate{ID: id, Score: score, Product: domain.Product{
		Title:     id + " title",
		Brand:     brand,
		Price:     100,
		HasPrice:  true,
		Category:  "Вітаміни > Вітамін D",
		Available: true,
		URL:       "https://shop.example/" + id,
	}}
}

type harness struct {
	svc        *ChatService
	store      *repository.MemorySessionStore
	retriever  *fakeRetriever
	classifier *fakeCompleter
	generator  *fakeCompleter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	h := &harness{
		store:      repository.NewMemorySessionStore(cfg.Session.HistorySize),
		retriever:  &fakeRetriever{byQuery: map[string][]domain.Candidate{}, byBrand: map[string][]domain.Candidate{}},
		classifier: &fakeCompleter{err: errors.New("classifier offline")},
		generator:  &fakeCompleter{reply: `{"message": "Ось що я підібрав", "products": []}`},
	}
	logger := zap.NewNop()
	brands := append(append([]string{}, cfg.Ranking.HouseBrands...), cfg.Ranking.PartnerBrands...)
	resolver := intent.NewResolver(logger,
		intent.GreetingStrategy{},
		intent.ArticleStrategy{},
		intent.NewModelStrategy(h.classifier, intent.ModelConfig{}, logger),
		intent.NewRuleStrategy(brands),
	)
	h.svc = NewChatService(cfg, h.store, h.retriever, resolver, h.generator, logger)
	return h
}

func shownIDs(h *harness, token string) map[string]struct{} {
	return h.store.ShownIDs(token)
}

func TestProcess_Greeting(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.ProcessChatMessage(context.Background(), "привіт", "")
	require.NoError(t, err)

	assert.Equal(t, WelcomeText, resp.Response)
	assert.Equal(t, 0, resp.ProductsFound)
	assert.Nil(t, resp.Products)
	assert.True(t, resp.RelevanceCheck.IsRelevant)
	assert.True(t, repository.ValidToken(resp.SessionID))
	assert.Equal(t, 0, h.retriever.calls)
	assert.Equal(t, 0, h.classifier.calls)
	assert.Equal(t, 0, h.generator.calls)
	assert.Len(t, h.store.History(resp.SessionID), 2)
}

func TestProcess_ArticleSkipsNovelty(t *testing.T) {
	h := newHarness(t)
	item := product("BIO-532894", "Biotus", 1)
	item.Product.Article = "BIO-532894"
	h.retriever.articles = map[string]domain.Candidate{"BIO-532894": item}
	h.generator.reply = `Готово {"message": "Знайшов товар", "products": [{"id": "BIO-532894", "reason": "точний артикул"}]}`

	token := h.store.Create()
	h.store.MarkShown(token, "BIO-532894")

	resp, err := h.svc.ProcessChatMessage(context.Background(), "BIO-532894", token)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.ProductsFound)
	assert.Equal(t, "Знайшов товар", resp.Response)
	require.Len(t, resp.Products, 1)
	card := resp.Products[0]
	assert.Equal(t, "BIO-532894 title", card.Title, "missing fields come from the catalog")
	assert.Equal(t, "Biotus", card.Brand)
	assert.Equal(t, "100.00", card.Price)
	assert.Equal(t, "https://shop.example/BIO-532894", card.Link)
	assert.Equal(t, "точний артикул", card.Reason)
	assert.Equal(t, 0, h.classifier.calls)
}

func TestProcess_NoProducts(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.ProcessChatMessage(context.Background(), "засіб від усього", "")
	require.NoError(t, err)

	assert.Equal(t, NoProductsText, resp.Response)
	assert.Equal(t, 0, resp.ProductsFound)
	assert.Nil(t, resp.Products)
	assert.Equal(t, 0, h.generator.calls)
	assert.Len(t, h.store.History(resp.SessionID), 2)
}

func TestProcess_BrandQuota(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = nil
	h.classifier.reply = `{"isRelevant": true, "intent": "recommendation", "searchQuery": "вітамін D3"}`
	h.retriever.byQuery["вітамін D3"] = []domain.Candidate{
		product("h1", "Biotus", 0.9),
		product("h2", "Biotus", 0.8),
		product("p1", "Now Foods", 0.7),
		product("o1", "Acme", 0.6),
		product("o2", "Acme", 0.5),
	}

	resp, err := h.svc.ProcessChatMessage(context.Background(), "порадьте вітамін D", "")
	require.NoError(t, err)

	assert.Equal(t, 4, resp.ProductsFound)
	shown := shownIDs(h, resp.SessionID)
	_, hasH1 := shown["h1"]
	_, hasH2 := shown["h2"]
	assert.True(t, hasH1 != hasH2, "exactly one house product")
	assert.Contains(t, h.generator.messages[len(h.generator.messages)-1].Content, "h1 title")
}

func TestProcess_HouseSupplementSpliced(t *testing.T) {
	h := newHarness(t)
	h.retriever.byQuery["магній"] = []domain.Candidate{
		product("p1", "Solgar", 0.9),
		product("o1", "Acme", 0.8),
	}
	h.retriever.byBrand["biotus"] = []domain.Candidate{product("h9", "Biotus", 0.4)}

	resp, err := h.svc.ProcessChatMessage(context.Background(), "магній", "")
	require.NoError(t, err)

	assert.Equal(t, 3, resp.ProductsFound)
	assert.Contains(t, shownIDs(h, resp.SessionID), "h9")
}

func TestProcess_NoveltyAcrossTurns(t *testing.T) {
	h := newHarness(t)
	var catalog []domain.Candidate
	for i := 0; i < 10; i++ {
		catalog = append(catalog, product(fmt.Sprintf("c%d", i), "Acme", 0.9-float64(i)*0.01))
	}
	h.retriever.byQuery["магній"] = catalog

	first, err := h.svc.ProcessChatMessage(context.Background(), "магній", "")
	require.NoError(t, err)
	require.Equal(t, 5, first.ProductsFound)
	before := shownIDs(h, first.SessionID)
	require.Len(t, before, 5)

	second, err := h.svc.ProcessChatMessage(context.Background(), "магній", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, second.ProductsFound)

	after := shownIDs(h, first.SessionID)
	assert.Len(t, after, 10, "the second turn only showed new ids")
	for id := range before {
		assert.Contains(t, after, id)
	}
}

func TestProcess_FallbackPool(t *testing.T) {
	h := newHarness(t)
	sold := product("u1", "Acme", 0.9)
	sold.Product.Available = false
	h.retriever.byQuery["омега"] = []domain.Candidate{sold}
	h.retriever.byQuery["популярні вітаміни та добавки"] = []domain.Candidate{
		product("f1", "Biotus", 0.5),
		product("f2", "Biotus", 0.5),
		product("f3", "Now Foods", 0.5),
		product("f4", "Acme", 0.5),
	}

	resp, err := h.svc.ProcessChatMessage(context.Background(), "омега", "")
	require.NoError(t, err)

	assert.Equal(t, 3, resp.ProductsFound)
	shown := shownIDs(h, resp.SessionID)
	assert.NotContains(t, shown, "u1")
	assert.Contains(t, shown, "f1")
	assert.NotContains(t, shown, "f2")
}

func TestProcess_FindSimilar(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = nil
	h.classifier.reply = `{"intent": "find_similar", "searchQuery": "Biotus D3"}`
	h.retriever.byQuery["Biotus D3"] = []domain.Candidate{product("ref", "Biotus", 0.95)}

	pricey := product("s2", "Acme", 0.8)
	pricey.Product.Price = 200
	otherCategory := product("s3", "Solgar", 0.8)
	otherCategory.Product.Category = "Омега"
	sold := product("s5", "Acme", 0.8)
	sold.Product.Available = false
	h.retriever.similar = []domain.Candidate{product("s1", "Now Foods", 0.8), pricey, otherCategory, product("s4", "Biotus", 0.7), sold}

	resp, err := h.svc.ProcessChatMessage(context.Background(), "є щось схоже?", "")
	require.NoError(t, err)

	assert.Equal(t, 2, resp.ProductsFound)
	assert.Equal(t, map[string]struct{}{"s1": {}, "s4": {}}, shownIDs(h, resp.SessionID))
	assert.Contains(t, h.generator.messages[len(h.generator.messages)-1].Content, "alternatives")
}

func TestProcess_OffDomain(t *testing.T) {
	h := newHarness(t)
	h.classifier.err = nil
	h.classifier.reply = `{"isRelevant": false, "reason": "погода"}`

	resp, err := h.svc.ProcessChatMessage(context.Background(), "яка завтра погода?", "")
	require.NoError(t, err)

	assert.Equal(t, OffDomainText, resp.Response)
	assert.False(t, resp.RelevanceCheck.IsRelevant)
	assert.Equal(t, "погода", resp.RelevanceCheck.Reason)
	assert.Equal(t, 0, h.retriever.calls)
}

func TestProcess_MalformedGenerationUsesRawText(t *testing.T) {
	h := newHarness(t)
	h.retriever.byQuery["цинк"] = []domain.Candidate{product("z1", "Acme", 0.9)}
	h.generator.reply = "Рекомендую цинк {broken"

	resp, err := h.svc.ProcessChatMessage(context.Background(), "цинк", "")
	require.NoError(t, err)

	assert.Equal(t, "Рекомендую цинк {broken", resp.Response)
	assert.Nil(t, resp.Products)
	assert.Equal(t, 1, resp.ProductsFound)
}

func TestProcess_InputErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ProcessChatMessage(ctx, "   ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.ProcessChatMessage(ctx, "магній", "not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	assert.Equal(t, 0, h.svc.GetSessionStats().TotalSessions, "rejected turns leave no state")
}

func TestProcess_ProviderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("new session", func(t *testing.T) {
		h := newHarness(t)
		h.retriever.err = fmt.Errorf("%w: index down", domain.ErrRetrieval)

		_, err := h.svc.ProcessChatMessage(ctx, "магній", "")
		assert.ErrorIs(t, err, domain.ErrRetrieval)
		assert.Equal(t, 0, h.svc.GetSessionStats().TotalSessions)
	})

	t.Run("retrieval", func(t *testing.T) {
		h := newHarness(t)
		h.retriever.err = fmt.Errorf("%w: index down", domain.ErrRetrieval)
		token := h.store.Create()

		_, err := h.svc.ProcessChatMessage(ctx, "магній", token)
		assert.ErrorIs(t, err, domain.ErrRetrieval)
		assert.Empty(t, h.store.History(token))
	})

	t.Run("generation", func(t *testing.T) {
		h := newHarness(t)
		h.retriever.byQuery["магній"] = []domain.Candidate{product("m1", "Acme", 0.9)}
		h.generator.err = domain.ErrProvider
		token := h.store.Create()

		_, err := h.svc.ProcessChatMessage(ctx, "магній", token)
		assert.ErrorIs(t, err, domain.ErrGeneration)
		assert.Empty(t, h.store.History(token))
		assert.Empty(t, h.store.ShownIDs(token))
	})
}

func TestProcess_TokenCaseFolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.ProcessChatMessage(ctx, "привіт", "")
	require.NoError(t, err)

	second, err := h.svc.ProcessChatMessage(ctx, "привіт", strings.ToUpper(first.SessionID))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, h.svc.GetSessionStats().TotalSessions)
	assert.Len(t, h.store.History(first.SessionID), 4)

	_, err = h.svc.ProcessChatMessage(ctx, "привіт", "{"+first.SessionID+"}")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestProcess_TruncatesLongMessages(t *testing.T) {
	h := newHarness(t)
	long := strings.Repeat("ж", 1500)

	resp, err := h.svc.ProcessChatMessage(context.Background(), long, "")
	require.NoError(t, err)

	hist := h.store.History(resp.SessionID)
	require.NotEmpty(t, hist)
	assert.Equal(t, 1000, utf8.RuneCountInString(hist[0].Text))
}

func TestDeleteSession(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.ProcessChatMessage(context.Background(), "привіт", "")
	require.NoError(t, err)

	assert.Equal(t, 1, h.svc.GetSessionStats().TotalSessions)
	assert.True(t, h.svc.DeleteSession(resp.SessionID))
	assert.False(t, h.svc.DeleteSession(resp.SessionID))
	assert.False(t, h.svc.DeleteSession("garbage"))
	assert.Equal(t, 0, h.svc.GetSessionStats().TotalSessions)
}

func TestHydrate(t *testing.T) {
	a := product("a", "Biotus", 1)
	a.Product.Article = "BIO-1111"
	candidates := []domain.Candidate{a, product("b", "Acme", 1), product("c", "Acme", 1), product("d", "Acme", 1)}

	picked := []domain.ProductCard{
		{ID: "ghost", Title: "Invented"},
		{Article: "bio-1111", Title: "Custom title"},
		{ID: "a"},
		{ID: "b"},
		{ID: "c"},
		{ID: "d"},
	}
	got := hydrate(picked, candidates)

	require.Len(t, got, domain.MaxProductCards)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "Custom title", got[0].Title, "model text wins when present")
	assert.Equal(t, "BIO-1111", got[0].Article)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}
