package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

type SummaryUseCase struct {
	repo      ports.DocumentRepository
	resolver  *SessionResolver
	generator ports.GenerationProvider
}

func NewSummaryUseCase(
	repo ports.DocumentRepository,
	resolver *SessionResolver,
	generator ports.GenerationProvider,
) *SummaryUseCase {
	return &SummaryUseCase{
		repo:      repo,
		resolver:  resolver,
		generator: generator,
	}
}

// Summarize generates a summary over every chunk of a ready document and
// persists it on the metadata record. A later call replaces the stored summary.
func (uc *SummaryUseCase) Summarize(ctx context.Context, documentID string) (string, error) {
	doc, session, err := uc.resolver.Acquire(ctx, documentID)
	if err != nil {
		return "", err
	}

	summary, err := uc.generator.Summarize(ctx, session.Chunks)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", domain.WrapError(domain.ErrGenerationFailure, "generate summary", errors.New("empty summary"))
	}

	doc.SetSummary(summary)
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		return "", fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}
