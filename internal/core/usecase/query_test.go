package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func newQueryFixture(topK int, docs ...domain.Document) (*QueryUseCase, *indexFake, *generatorFake) {
	repo := newRepoFake(docs...)
	sessions := newSessionsFake()
	for _, doc := range docs {
		if doc.Status == domain.StatusCompleted {
			session := readySession(doc.ID)
			_ = sessions.Put(context.Background(), &session)
		}
	}
	index := newIndexFake()
	for i := 0; i < 10; i++ {
		index.results = append(index.results, domain.ScoredChunk{
			Chunk: domain.Chunk{Index: i, Text: "chunk"},
			Score: 1 - float64(i)/10,
		})
	}
	generator := &generatorFake{answer: "The document does not say."}
	resolver := NewSessionResolver(repo, sessions, &rebuilderFake{sessions: sessions})
	return NewQueryUseCase(resolver, index, generator, topK), index, generator
}

func TestAnswerReturnsGeneratorTextAndSources(t *testing.T) {
	uc, index, generator := newQueryFixture(0, completedDoc("doc-1"))

	answer, err := uc.Answer(context.Background(), "doc-1", "What is this about?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "The document does not say." {
		t.Fatalf("expected verbatim answer, got %q", answer.Text)
	}
	if index.searchK != defaultAnswerTopK || len(answer.Sources) != defaultAnswerTopK {
		t.Fatalf("expected top %d sources, got k=%d sources=%d", defaultAnswerTopK, index.searchK, len(answer.Sources))
	}
	if generator.gotQuestion != "What is this about?" || len(generator.gotContext) != defaultAnswerTopK {
		t.Fatalf("generator got question=%q context=%d", generator.gotQuestion, len(generator.gotContext))
	}
}

func TestAnswerUsesConfiguredTopK(t *testing.T) {
	uc, index, _ := newQueryFixture(2, completedDoc("doc-1"))

	if _, err := uc.Answer(context.Background(), "doc-1", "q"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if index.searchK != 2 {
		t.Fatalf("expected k=2, got %d", index.searchK)
	}
}

func TestAnswerValidation(t *testing.T) {
	uc, _, _ := newQueryFixture(0, completedDoc("doc-1"))

	if _, err := uc.Answer(context.Background(), "doc-1", " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Answer(context.Background(), "nonexistent-id", "q"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnswerPropagatesGenerationFailure(t *testing.T) {
	uc, _, generator := newQueryFixture(0, completedDoc("doc-1"))
	generator.err = domain.WrapError(domain.ErrGenerationFailure, "llm", errors.New("timeout"))

	_, err := uc.Answer(context.Background(), "doc-1", "q")
	if !errors.Is(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestSearchTopK(t *testing.T) {
	uc, index, _ := newQueryFixture(0, completedDoc("doc-1"))

	results, err := uc.Search(context.Background(), "doc-1", "test", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != defaultSearchTopK || index.searchK != defaultSearchTopK {
		t.Fatalf("expected default top %d, got %d", defaultSearchTopK, len(results))
	}

	for _, k := range []int{-1, 21} {
		if _, err := uc.Search(context.Background(), "doc-1", "test", k); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("top_k=%d: expected invalid input, got %v", k, err)
		}
	}
	if _, err := uc.Search(context.Background(), "doc-1", "", 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty query: expected invalid input, got %v", err)
	}
}

func TestSearchUnknownDocument(t *testing.T) {
	uc, _, _ := newQueryFixture(0)

	_, err := uc.Search(context.Background(), "nonexistent-id", "test", 5)
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
