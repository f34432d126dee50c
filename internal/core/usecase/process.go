package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

// recordTimeout bounds status writes made after the pipeline context ended.
const recordTimeout = 10 * time.Second

type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	loader   ports.DocumentLoader
	chunker  ports.Chunker
	index    ports.IndexProvider
	sessions ports.SessionRegistry
	observer ports.PipelineObserver
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	index ports.IndexProvider,
	sessions ports.SessionRegistry,
	observer ports.PipelineObserver,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		repo:     repo,
		loader:   loader,
		chunker:  chunker,
		index:    index,
		sessions: sessions,
		observer: observer,
	}
}

// ProcessByID drives a document from uploaded to a terminal status. Documents
// already completed or failed are left untouched.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status.Terminal() {
		slog.Info("document_process_skipped", "document_id", doc.ID, "status", doc.Status)
		return nil
	}

	started := time.Now()
	uc.observer.ObserveQueueLag(started.Sub(doc.UploadDate))
	uc.observer.StartDocument()

	session, stage, err := uc.buildSession(ctx, doc, func(stage domain.Stage) error {
		return uc.advance(ctx, doc, stage)
	})
	uc.observer.FinishDocument(stage, time.Since(started), err)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			uc.discard(ctx, doc.ID)
			return nil
		}
		if failErr := uc.markFailed(ctx, doc, stage, err); failErr != nil {
			if domain.IsKind(failErr, domain.ErrDocumentNotFound) {
				uc.discard(ctx, doc.ID)
				return nil
			}
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	doc.Status = domain.StatusCompleted
	doc.Stage = domain.StageCompleted
	doc.Error = ""
	doc.ErrorKind = ""
	doc.SetChunkCount(len(session.Chunks))
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.persist(ctx, doc); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			uc.discard(ctx, doc.ID)
			return nil
		}
		return fmt.Errorf("set status=completed: %w", err)
	}

	slog.Info("document_processed",
		"document_id", doc.ID,
		"chunks", len(session.Chunks),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// Rebuild reconstructs the session of a completed document whose session was
// lost (registry restart, eviction). The document keeps its terminal status on
// success. Backend outages leave the record as is; any other rebuild failure
// marks the document failed.
func (uc *ProcessDocumentUseCase) Rebuild(ctx context.Context, doc *domain.Document) (*domain.Session, error) {
	session, stage, err := uc.buildSession(ctx, doc, func(domain.Stage) error { return nil })
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexUnavailable) || domain.IsKind(err, domain.ErrTemporary) {
			return nil, err
		}
		if failErr := uc.markFailed(ctx, doc, stage, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if _, err := uc.repo.GetByID(ctx, doc.ID); domain.IsKind(err, domain.ErrDocumentNotFound) {
		uc.discard(ctx, doc.ID)
		return nil, err
	}

	if doc.ChunkCount == nil || *doc.ChunkCount != len(session.Chunks) {
		doc.SetChunkCount(len(session.Chunks))
		doc.UpdatedAt = time.Now().UTC()
		if err := uc.repo.Save(ctx, doc); err != nil {
			slog.Warn("document_chunk_count_refresh_failed", "document_id", doc.ID, "error", err)
		}
	}

	slog.Info("document_session_rebuilt", "document_id", doc.ID, "chunks", len(session.Chunks))
	return session, nil
}

// buildSession runs load, chunk and index, and registers the session only once
// indexing succeeded. It returns the stage that was running when it stopped.
func (uc *ProcessDocumentUseCase) buildSession(
	ctx context.Context,
	doc *domain.Document,
	enter func(domain.Stage) error,
) (*domain.Session, domain.Stage, error) {
	if err := enter(domain.StageLoading); err != nil {
		return nil, domain.StageLoading, err
	}
	segments, err := uc.load(ctx, doc)
	if err != nil {
		return nil, domain.StageLoading, err
	}

	if err := enter(domain.StageChunking); err != nil {
		return nil, domain.StageChunking, err
	}
	chunks, err := uc.chunk(segments)
	if err != nil {
		return nil, domain.StageChunking, err
	}

	if err := enter(domain.StageIndexing); err != nil {
		return nil, domain.StageIndexing, err
	}
	handle, err := uc.indexChunks(ctx, doc.ID, chunks)
	if err != nil {
		return nil, domain.StageIndexing, err
	}

	session := &domain.Session{
		DocumentID: doc.ID,
		Segments:   segments,
		Chunks:     chunks,
		Index:      handle,
	}
	if err := uc.sessions.Put(ctx, session); err != nil {
		return nil, domain.StageIndexing, fmt.Errorf("register session: %w", err)
	}
	return session, domain.StageCompleted, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) load(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	segments, err := uc.loader.Load(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return segments, nil
}

func (uc *ProcessDocumentUseCase) chunk(segments []domain.Segment) ([]domain.Chunk, error) {
	chunks := uc.chunker.Split(segments)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrNotReady, "chunk document", errors.New("document has no extractable text"))
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) indexChunks(ctx context.Context, documentID string, chunks []domain.Chunk) (domain.IndexHandle, error) {
	handle, err := uc.index.Index(ctx, documentID, chunks)
	if err != nil {
		return domain.IndexHandle{}, fmt.Errorf("index chunks: %w", err)
	}
	return handle, nil
}

func (uc *ProcessDocumentUseCase) advance(ctx context.Context, doc *domain.Document, stage domain.Stage) error {
	doc.Stage = stage
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("set stage=%s: %w", stage, err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, doc *domain.Document, stage domain.Stage, processErr error) error {
	if processErr == nil {
		return nil
	}
	slog.Error("document_process_failed",
		"document_id", doc.ID,
		"stage", stage,
		"error_kind", domain.KindOf(processErr),
		"error", processErr,
	)
	doc.Status = domain.StatusFailed
	doc.Stage = domain.StageFailed
	doc.Error = processErr.Error()
	doc.ErrorKind = domain.KindOf(processErr)
	doc.UpdatedAt = time.Now().UTC()
	return uc.persist(ctx, doc)
}

// persist writes a terminal record even when ctx is already cancelled or past
// its deadline, so a dropped request cannot leave the document processing.
func (uc *ProcessDocumentUseCase) persist(ctx context.Context, doc *domain.Document) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return uc.repo.Save(ctx, doc)
}

// discard releases the index points and session built for a document that
// was deleted while the pipeline ran.
func (uc *ProcessDocumentUseCase) discard(ctx context.Context, documentID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := uc.index.Drop(ctx, domain.IndexHandle{DocumentID: documentID}); err != nil {
		slog.Warn("document_orphan_index_drop_failed", "document_id", documentID, "error", err)
	}
	if err := uc.sessions.Delete(ctx, documentID); err != nil {
		slog.Warn("document_orphan_session_delete_failed", "document_id", documentID, "error", err)
	}
	slog.Info("document_deleted_during_processing", "document_id", documentID)
}

type noopObserver struct{}

func (noopObserver) ObserveQueueLag(time.Duration) {}

func (noopObserver) StartDocument() {}

func (noopObserver) FinishDocument(domain.Stage, time.Duration, error) {}
