package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

const (
	defaultAnswerTopK = 4
	defaultSearchTopK = 5
	maxSearchTopK     = 20
)

type QueryUseCase struct {
	resolver  *SessionResolver
	index     ports.IndexProvider
	generator ports.GenerationProvider
	topK      int
}

func NewQueryUseCase(
	resolver *SessionResolver,
	index ports.IndexProvider,
	generator ports.GenerationProvider,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = defaultAnswerTopK
	}
	return &QueryUseCase{
		resolver:  resolver,
		index:     index,
		generator: generator,
		topK:      topK,
	}
}

// Answer retrieves the most relevant chunks of one document and asks the
// generator for an answer grounded in them. The text is returned verbatim.
func (uc *QueryUseCase) Answer(ctx context.Context, documentID, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))
	}

	_, session, err := uc.resolver.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.index.Search(ctx, session.Index, question, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	answerText, err := uc.generator.Answer(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: chunks,
	}, nil
}

// Search runs retrieval only. topK=0 selects the default; values outside
// [1, 20] are rejected.
func (uc *QueryUseCase) Search(ctx context.Context, documentID, query string, topK int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if topK == 0 {
		topK = defaultSearchTopK
	}
	if topK < 1 || topK > maxSearchTopK {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search",
			fmt.Errorf("top_k must be between 1 and %d, got %d", maxSearchTopK, topK))
	}

	_, session, err := uc.resolver.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}

	results, err := uc.index.Search(ctx, session.Index, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search document: %w", err)
	}
	return results, nil
}
