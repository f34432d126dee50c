package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func newSummaryFixture(t *testing.T, docs ...domain.Document) (*SummaryUseCase, *repoFake, *generatorFake) {
	t.Helper()
	repo := newRepoFake(docs...)
	sessions := newSessionsFake()
	for _, doc := range docs {
		if doc.Status == domain.StatusCompleted {
			session := readySession(doc.ID)
			_ = sessions.Put(context.Background(), &session)
		}
	}
	generator := &generatorFake{summary: "  A short summary.  "}
	resolver := NewSessionResolver(repo, sessions, &rebuilderFake{sessions: sessions})
	return NewSummaryUseCase(repo, resolver, generator), repo, generator
}

func TestSummarizePersistsSummary(t *testing.T) {
	uc, repo, generator := newSummaryFixture(t, completedDoc("doc-1"))

	summary, err := uc.Summarize(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "A short summary." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if len(generator.gotChunks) != 2 {
		t.Fatalf("expected generator to see every chunk, got %d", len(generator.gotChunks))
	}
	stored := repo.get("doc-1")
	if stored.Summary == nil || *stored.Summary != summary {
		t.Fatalf("expected persisted summary, got %v", stored.Summary)
	}
}

func TestSummarizeTwiceKeepsStatusAndChunkCount(t *testing.T) {
	uc, repo, generator := newSummaryFixture(t, completedDoc("doc-1"))

	for i := 0; i < 2; i++ {
		if _, err := uc.Summarize(context.Background(), "doc-1"); err != nil {
			t.Fatalf("Summarize() #%d error = %v", i+1, err)
		}
	}
	stored := repo.get("doc-1")
	if stored.Status != domain.StatusCompleted || *stored.ChunkCount != 2 {
		t.Fatalf("summary must not change status/chunk_count, got %s/%d", stored.Status, *stored.ChunkCount)
	}
	if generator.summaryCalls != 2 {
		t.Fatalf("expected regeneration on every call, got %d", generator.summaryCalls)
	}
}

func TestSummarizeUnknownDocument(t *testing.T) {
	uc, _, _ := newSummaryFixture(t)

	_, err := uc.Summarize(context.Background(), "nonexistent-id")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSummarizeWhileProcessingIsNotReady(t *testing.T) {
	uc, _, generator := newSummaryFixture(t, uploadedDoc("doc-1"))

	_, err := uc.Summarize(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if generator.summaryCalls != 0 {
		t.Fatalf("generator must not run for a document that is not ready")
	}
}

func TestSummarizeEmptyOutputIsGenerationFailure(t *testing.T) {
	uc, repo, generator := newSummaryFixture(t, completedDoc("doc-1"))
	generator.summary = "   "

	_, err := uc.Summarize(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if repo.get("doc-1").Summary != nil {
		t.Fatalf("empty summary must not be persisted")
	}
}
