// Package index binds an embedder to a vector store into a per-document index.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

type Provider struct {
	embedder ports.Embedder
	store    ports.VectorStore
	backend  string
}

func NewProvider(embedder ports.Embedder, store ports.VectorStore, backend string) *Provider {
	return &Provider{embedder: embedder, store: store, backend: backend}
}

// Index replaces whatever the store held for the document with the given chunks.
func (p *Provider) Index(ctx context.Context, documentID string, chunks []domain.Chunk) (domain.IndexHandle, error) {
	if strings.TrimSpace(documentID) == "" {
		return domain.IndexHandle{}, domain.WrapError(domain.ErrInvalidInput, "index document", errors.New("document id is required"))
	}
	if len(chunks) == 0 {
		return domain.IndexHandle{}, domain.WrapError(domain.ErrNotReady, "index document", errors.New("no chunks to index"))
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IndexHandle{}, domain.WrapError(domain.ErrIndexUnavailable, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return domain.IndexHandle{}, domain.WrapError(domain.ErrIndexUnavailable, "embed chunks",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	if err := p.store.ReplaceDocument(ctx, documentID, chunks, vectors); err != nil {
		return domain.IndexHandle{}, domain.WrapError(domain.ErrIndexUnavailable, "store vectors", err)
	}

	return domain.IndexHandle{
		DocumentID: documentID,
		Backend:    p.backend,
		ChunkCount: len(chunks),
	}, nil
}

// Search returns at most k chunks of the handle's document, most similar first.
func (p *Provider) Search(ctx context.Context, handle domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error) {
	if !handle.Valid() {
		return nil, domain.WrapError(domain.ErrNotReady, "search index", errors.New("index handle is empty"))
	}
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search index", fmt.Errorf("k must be positive, got %d", k))
	}

	queryVector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "embed query", err)
	}
	results, err := p.store.Search(ctx, handle.DocumentID, queryVector, k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "search vectors", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (p *Provider) Drop(ctx context.Context, handle domain.IndexHandle) error {
	if handle.DocumentID == "" {
		return nil
	}
	if err := p.store.DeleteDocument(ctx, handle.DocumentID); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "drop index", err)
	}
	return nil
}
