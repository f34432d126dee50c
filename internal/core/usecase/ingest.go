package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the file, creates its metadata record with status=processing and
// dispatches the processing pipeline. The returned record reflects the latest
// persisted state, which is terminal when the queue runs the pipeline inline.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := path.Join(id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:         id,
		Filename:   filepath.Base(filename),
		MimeType:   mimeType,
		Format:     domain.FormatFromFilename(filename),
		StorageKey: storageKey,
		UploadDate: now,
		Status:     domain.StatusProcessing,
		Stage:      domain.StageUploaded,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		publishErr := fmt.Errorf("publish ingestion event: %w", err)
		uc.markDispatchFailed(ctx, doc, publishErr)
		return nil, publishErr
	}

	latest, err := uc.repo.GetByID(ctx, doc.ID)
	if err != nil {
		slog.Warn("document_reload_failed", "document_id", doc.ID, "error", err)
		return doc, nil
	}
	return latest, nil
}

func (uc *IngestDocumentUseCase) markDispatchFailed(ctx context.Context, doc *domain.Document, cause error) {
	doc.Status = domain.StatusFailed
	doc.Stage = domain.StageFailed
	doc.Error = cause.Error()
	doc.ErrorKind = domain.KindOf(cause)
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		slog.Error("document_mark_failed_error", "document_id", doc.ID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
