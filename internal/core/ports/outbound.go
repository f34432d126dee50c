package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

// DocumentRepository persists document metadata records keyed by id.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentLoader turns a stored upload into ordered text segments.
type DocumentLoader interface {
	Load(ctx context.Context, doc *domain.Document) ([]domain.Segment, error)
}

// Chunker splits loaded segments into overlapping chunks.
type Chunker interface {
	Split(segments []domain.Segment) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore keeps per-document chunk vectors and searches within one document.
type VectorStore interface {
	ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, documentID string, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// IndexProvider embeds and indexes a document's chunks and retrieves from that index only.
type IndexProvider interface {
	Index(ctx context.Context, documentID string, chunks []domain.Chunk) (domain.IndexHandle, error)
	Search(ctx context.Context, handle domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error)
	Drop(ctx context.Context, handle domain.IndexHandle) error
}

// GenerationProvider produces natural-language summaries and grounded answers.
type GenerationProvider interface {
	Summarize(ctx context.Context, chunks []domain.Chunk) (string, error)
	Answer(ctx context.Context, question string, sources []domain.ScoredChunk) (string, error)
}

// SessionRegistry keeps document sessions retrievable by id from any handler.
type SessionRegistry interface {
	Get(ctx context.Context, documentID string) (*domain.Session, error)
	Put(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, documentID string) error
}

// PipelineObserver records pipeline outcomes (metrics).
type PipelineObserver interface {
	ObserveQueueLag(lag time.Duration)
	StartDocument()
	FinishDocument(stage domain.Stage, duration time.Duration, err error)
}
