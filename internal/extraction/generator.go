package extraction

import (
	"context"
	"fmt"
	"strings"

	"invoicedesk/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Generator turns a prompt into free-form model text. One call per extraction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMGenerator is a Generator backed by a langchaingo model.
type LLMGenerator struct {
	llm         llms.Model
	provider    string
	model       string
	temperature float64
}

// NewLLMGenerator creates the model client for cfg.Provider.
func NewLLMGenerator(cfg config.LLMConfig, log *zap.Logger) (*LLMGenerator, error) {
	log = log.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))

	var (
		llm llms.Model
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		llm, err = createOpenAIClient(cfg)
	case "ollama":
		llm, err = createOllamaClient(cfg)
	case "anthropic":
		llm, err = createAnthropicClient(cfg)
	case "mistral":
		llm, err = createMistralClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	log.Info("LLM client initialized")
	return NewLLMGeneratorFromModel(llm, cfg), nil
}

// NewLLMGeneratorFromModel wraps an already constructed langchaingo model.
func NewLLMGeneratorFromModel(llm llms.Model, cfg config.LLMConfig) *LLMGenerator {
	return &LLMGenerator{
		llm:         llm,
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(g.temperature))
}

func createOpenAIClient(cfg config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func createOllamaClient(cfg config.LLMConfig) (llms.Model, error) {
	host := cfg.BaseURL
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(host),
	)
}

func createAnthropicClient(cfg config.LLMConfig) (llms.Model, error) {
	return anthropic.New(
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(cfg.APIKey),
	)
}

func createMistralClient(cfg config.LLMConfig) (llms.Model, error) {
	return mistral.New(
		mistral.WithModel(cfg.Model),
		mistral.WithAPIKey(cfg.APIKey),
	)
}
