package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func buildSummaryPrompt(texts []string) string {
	return `Write a concise summary of the following document.

Document:
` + strings.Join(texts, "\n\n") + `

CONCISE SUMMARY:`
}

func buildMapPrompt(texts []string) string {
	return `Write a concise summary of the following part of a longer document.

Text:
` + strings.Join(texts, "\n\n") + `

CONCISE SUMMARY:`
}

func buildReducePrompt(partials []string) string {
	var b strings.Builder
	for i, p := range partials {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, p)
	}
	return `The following are summaries of consecutive parts of one document.
Combine them into a single concise summary of the whole document.

Summaries:
` + b.String() + `CONCISE SUMMARY:`
}

func buildAnswerPrompt(question string, chunks []domain.ScoredChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		label := chunk.Chunk.Position.Label()
		if label == "" {
			label = fmt.Sprintf("chunk %d", chunk.Chunk.Index+1)
		}
		fmt.Fprintf(&contextBuilder, "[%d] %s score=%.3f\n%s\n\n", idx+1, label, chunk.Score, chunk.Chunk.Text)
	}

	return fmt.Sprintf(`Answer the question using only the context below.
If the context is insufficient, say so directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
