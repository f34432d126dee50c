package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

type DocumentsUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	sessions ports.SessionRegistry
	index    ports.IndexProvider
}

func NewDocumentsUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	sessions ports.SessionRegistry,
	index ports.IndexProvider,
) *DocumentsUseCase {
	return &DocumentsUseCase{
		repo:     repo,
		storage:  storage,
		sessions: sessions,
		index:    index,
	}
}

func (uc *DocumentsUseCase) Get(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *DocumentsUseCase) List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	docs, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete releases everything held for a document. Index points go first so a
// backend outage leaves the record in place and the call can be retried.
func (uc *DocumentsUseCase) Delete(ctx context.Context, id string) error {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.index.Drop(ctx, domain.IndexHandle{DocumentID: doc.ID}); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := uc.sessions.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if doc.StorageKey != "" {
		if err := uc.storage.Delete(ctx, doc.StorageKey); err != nil {
			slog.Warn("document_file_delete_failed", "document_id", doc.ID, "storage_key", doc.StorageKey, "error", err)
		}
	}
	if err := uc.repo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}

	slog.Info("document_deleted", "document_id", doc.ID)
	return nil
}
