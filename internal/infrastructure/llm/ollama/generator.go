package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

const (
	defaultBatchChars = 6000
	maxReduceRounds   = 4
)

type Generator struct {
	client     *Client
	batchChars int
}

func NewGenerator(client *Client, batchChars int) *Generator {
	if batchChars <= 0 {
		batchChars = defaultBatchChars
	}
	return &Generator{client: client, batchChars: batchChars}
}

// Summarize maps chunk batches to partial summaries and reduces them until one
// summary remains. A document that fits one batch is summarized in one call.
func (g *Generator) Summarize(ctx context.Context, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", domain.WrapError(domain.ErrGenerationFailure, "summarize", errors.New("no chunks to summarize"))
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	batches := packBatches(texts, g.batchChars)
	if len(batches) == 1 {
		return g.complete(ctx, "summarize", buildSummaryPrompt(batches[0]))
	}

	partials := make([]string, 0, len(batches))
	for _, batch := range batches {
		partial, err := g.complete(ctx, "summarize map", buildMapPrompt(batch))
		if err != nil {
			return "", err
		}
		partials = append(partials, partial)
	}

	for round := 0; round < maxReduceRounds; round++ {
		batches = packBatches(partials, g.batchChars)
		if len(batches) == 1 || len(batches) == len(partials) || round == maxReduceRounds-1 {
			return g.complete(ctx, "summarize reduce", buildReducePrompt(partials))
		}
		next := make([]string, 0, len(batches))
		for _, batch := range batches {
			partial, err := g.complete(ctx, "summarize reduce", buildReducePrompt(batch))
			if err != nil {
				return "", err
			}
			next = append(next, partial)
		}
		partials = next
	}
	return g.complete(ctx, "summarize reduce", buildReducePrompt(partials))
}

func (g *Generator) Answer(ctx context.Context, question string, sources []domain.ScoredChunk) (string, error) {
	return g.complete(ctx, "answer", buildAnswerPrompt(question, sources))
}

func (g *Generator) complete(ctx context.Context, operation, prompt string) (string, error) {
	text, err := g.client.generateText(ctx, prompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrGenerationFailure, operation, err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrGenerationFailure, operation, fmt.Errorf("model %s returned empty output", g.client.genModel))
	}
	return text, nil
}

// packBatches groups texts in order so each batch stays under budget characters.
// A single oversized text gets a batch of its own.
func packBatches(texts []string, budget int) [][]string {
	var (
		out  [][]string
		cur  []string
		size int
	)
	for _, t := range texts {
		if len(cur) > 0 && size+len(t) > budget {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, t)
		size += len(t)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
