package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := newRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "report 1.txt", "text/plain", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusProcessing || doc.Stage != domain.StageUploaded {
		t.Fatalf("expected processing/uploaded, got %s/%s", doc.Status, doc.Stage)
	}
	if doc.Format != domain.FormatText {
		t.Fatalf("expected txt format, got %q", doc.Format)
	}
	if doc.Filename != "report 1.txt" {
		t.Fatalf("expected original filename, got %q", doc.Filename)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected queued doc id %s, got %v", doc.ID, queue.published)
	}
	if doc.StorageKey != doc.ID+"/report_1.txt" {
		t.Fatalf("unexpected storage key %s", doc.StorageKey)
	}
	if string(storage.objects[doc.StorageKey]) != "hello" {
		t.Fatalf("expected saved body hello, got %q", storage.objects[doc.StorageKey])
	}
}

func TestIngestUploadUnknownExtensionIsAccepted(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{})

	doc, err := uc.Upload(context.Background(), "notes.xyz", "", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Format != domain.FormatUnknown {
		t.Fatalf("expected unknown format, got %q", doc.Format)
	}
}

func TestIngestUploadRejectsEmptyFilename(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{})

	_, err := uc.Upload(context.Background(), "  ", "", strings.NewReader("data"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestUploadQueueErrorMarksFailed(t *testing.T) {
	repo := newRepoFake()
	queue := &queueFake{err: errors.New("queue down")}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), queue)

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}

	docs, _ := repo.List(context.Background(), domain.ListFilter{})
	if len(docs) != 1 || docs[0].Status != domain.StatusFailed || docs[0].Error == "" {
		t.Fatalf("expected one failed document with error, got %+v", docs)
	}
}

func TestIngestUploadReturnsTerminalRecordWhenProcessedInline(t *testing.T) {
	repo := newRepoFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), queue)
	queue.handler = func(ctx context.Context, id string) error {
		doc, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		doc.Status = domain.StatusCompleted
		doc.Stage = domain.StageCompleted
		return repo.Save(ctx, doc)
	}

	doc, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected completed record, got %s", doc.Status)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report 1.txt":     "report_1.txt",
		"../../etc/passwd": "passwd",
		"отчёт.pdf":        "_____.pdf",
		"..":               "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
