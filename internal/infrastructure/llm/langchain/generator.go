package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/infrastructure/resilience"
)

const (
	inputDocumentsKey = "input_documents"
	questionKey       = "question"
	outputTextKey     = "text"
)

// Generator runs langchaingo's map-reduce summarization and stuff QA chains
// over any llms.Model.
type Generator struct {
	llm      llms.Model
	executor *resilience.Executor
}

func NewGenerator(llm llms.Model, executor *resilience.Executor) *Generator {
	return &Generator{llm: llm, executor: executor}
}

func (g *Generator) Summarize(ctx context.Context, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", domain.WrapError(domain.ErrGenerationFailure, "summarize", errors.New("no chunks to summarize"))
	}

	docs := make([]schema.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, toDocument(c, 0))
	}
	return g.call(ctx, "summarize", chains.LoadMapReduceSummarization(g.llm), map[string]any{
		inputDocumentsKey: docs,
	})
}

func (g *Generator) Answer(ctx context.Context, question string, sources []domain.ScoredChunk) (string, error) {
	docs := make([]schema.Document, 0, len(sources))
	for _, sc := range sources {
		doc := toDocument(sc.Chunk, sc.Score)
		if label := sc.Chunk.Position.Label(); label != "" {
			doc.PageContent = "(" + label + ") " + doc.PageContent
		}
		docs = append(docs, doc)
	}
	return g.call(ctx, "answer", chains.LoadStuffQA(g.llm), map[string]any{
		inputDocumentsKey: docs,
		questionKey:       question,
	})
}

func (g *Generator) call(ctx context.Context, operation string, chain chains.Chain, inputs map[string]any) (string, error) {
	out, err := resilience.Do(ctx, g.executor, "langchain."+operation, func(ctx context.Context) (map[string]any, error) {
		return chains.Call(ctx, chain, inputs)
	}, resilience.ClassifyTransport)
	if err != nil {
		return "", domain.WrapError(domain.ErrGenerationFailure, operation, err)
	}

	text, ok := out[outputTextKey].(string)
	if !ok {
		return "", domain.WrapError(domain.ErrGenerationFailure, operation, fmt.Errorf("chain output %q missing", outputTextKey))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrGenerationFailure, operation, errors.New("model returned empty output"))
	}
	return text, nil
}

func toDocument(c domain.Chunk, score float64) schema.Document {
	metadata := map[string]any{"index": c.Index}
	if c.Position.Page > 0 {
		metadata["page"] = c.Position.Page
	}
	if c.Position.Paragraph > 0 {
		metadata["paragraph"] = c.Position.Paragraph
	}
	return schema.Document{
		PageContent: c.Text,
		Metadata:    metadata,
		Score:       float32(score),
	}
}
