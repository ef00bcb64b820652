package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI talks to any OpenAI-compatible endpoint (OpenAI, Ollama /v1, vLLM).
// It serves both text completion and embeddings.
type OpenAI struct {
	client         openai.Client
	llmModel       string
	embeddingModel string
}

// Config for the OpenAI-compatible client
type Config struct {
	BaseURL        string
	APIKey         string
	LLMModel       string
	EmbeddingModel string
	Timeout        time.Duration
}

// NewOpenAI creates a client for an OpenAI-compatible endpoint
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{
		client:         openai.NewClient(opts...),
		llmModel:       cfg.LLMModel,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// Complete sends the conversation and returns the first choice text
func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	options := &Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	model := o.llmModel
	if options.Model != "" {
		model = options.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(options.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", domain.ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", domain.ErrProvider)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: chat completion returned empty content", domain.ErrProvider)
	}
	return content, nil
}

// Embed returns the embedding vector of text
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", domain.ErrProvider, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty vector", domain.ErrProvider)
	}

	values := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		values[i] = float32(v)
	}
	return values, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
