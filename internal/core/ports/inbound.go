package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for running the processing pipeline.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentSummarizer produces and persists whole-document summaries.
type DocumentSummarizer interface {
	Summarize(ctx context.Context, documentID string) (string, error)
}

// DocumentQueryService answers questions and runs retrieval against one document.
type DocumentQueryService interface {
	Answer(ctx context.Context, documentID, question string) (*domain.Answer, error)
	Search(ctx context.Context, documentID, query string, topK int) ([]domain.ScoredChunk, error)
}

// DocumentManager is the inbound read/delete model for document metadata.
type DocumentManager interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}
