package langchain

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type ProviderConfig struct {
	Provider   string
	ServerURL  string
	APIKey     string
	GenModel   string
	EmbedModel string
}

// Models holds the completion model and the embedding client of one provider.
type Models struct {
	LLM      llms.Model
	Embedder embeddings.EmbedderClient
}

func NewModels(cfg ProviderConfig) (*Models, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		llm, err := ollama.New(ollama.WithModel(cfg.GenModel), ollama.WithServerURL(cfg.ServerURL))
		if err != nil {
			return nil, fmt.Errorf("create ollama llm: %w", err)
		}
		embedLLM, err := ollama.New(ollama.WithModel(cfg.EmbedModel), ollama.WithServerURL(cfg.ServerURL))
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		return &Models{LLM: llm, Embedder: embedLLM}, nil
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.GenModel != "" {
			opts = append(opts, openai.WithModel(cfg.GenModel))
		}
		if cfg.EmbedModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.EmbedModel))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai llm: %w", err)
		}
		return &Models{LLM: llm, Embedder: llm}, nil
	default:
		return nil, fmt.Errorf("unsupported langchain provider %q", cfg.Provider)
	}
}
