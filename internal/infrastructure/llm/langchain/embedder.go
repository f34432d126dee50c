package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/kirillkom/document-qa/internal/infrastructure/resilience"
)

type Embedder struct {
	impl     embeddings.Embedder
	executor *resilience.Executor
}

// NewEmbedder adapts any langchaingo embedding client (ollama.LLM, openai.LLM).
// Calls go through executor when it is non-nil.
func NewEmbedder(client embeddings.EmbedderClient, executor *resilience.Executor) (*Embedder, error) {
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}
	return &Embedder{impl: impl, executor: executor}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := resilience.Do(ctx, e.executor, "langchain.embed", func(ctx context.Context) ([][]float32, error) {
		return e.impl.EmbedDocuments(ctx, texts)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("langchain embed", err, resilience.ClassifyTransport)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("langchain embed returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Do(ctx, e.executor, "langchain.embed_query", func(ctx context.Context) ([]float32, error) {
		return e.impl.EmbedQuery(ctx, text)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("langchain embed_query", err, resilience.ClassifyTransport)
	}
	return vector, nil
}
