package filestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func newDoc(id string, uploaded time.Time, status domain.DocumentStatus) *domain.Document {
	return &domain.Document{
		ID:         id,
		Filename:   id + ".txt",
		Format:     domain.FormatText,
		StorageKey: id + "/" + id + ".txt",
		UploadDate: uploaded,
		Status:     status,
		Stage:      domain.StageUploaded,
		UpdatedAt:  uploaded,
	}
}

func TestCreateGetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewDocumentRepository(dir)
	if err != nil {
		t.Fatalf("NewDocumentRepository() error = %v", err)
	}
	ctx := context.Background()
	uploaded := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, newDoc("doc-1", uploaded, domain.StatusProcessing)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reopened, err := NewDocumentRepository(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	doc, err := reopened.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Filename != "doc-1.txt" || !doc.UploadDate.Equal(uploaded) || doc.Status != domain.StatusProcessing {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestNotFound(t *testing.T) {
	repo, _ := NewDocumentRepository(t.TempDir())
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "nonexistent-id"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("GetByID: expected not found, got %v", err)
	}
	if err := repo.Save(ctx, &domain.Document{ID: "nonexistent-id"}); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("Save: expected not found, got %v", err)
	}
	if err := repo.Delete(ctx, "nonexistent-id"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("Delete: expected not found, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "../escape"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("GetByID(../escape): expected not found, got %v", err)
	}
}

func TestSaveKeepsImmutableFields(t *testing.T) {
	repo, _ := NewDocumentRepository(t.TempDir())
	ctx := context.Background()
	uploaded := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, newDoc("doc-1", uploaded, domain.StatusProcessing))

	update := newDoc("doc-1", time.Now(), domain.StatusCompleted)
	update.Filename = "renamed.txt"
	update.SetSummary("short")
	if err := repo.Save(ctx, update); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	doc, _ := repo.GetByID(ctx, "doc-1")
	if doc.Filename != "doc-1.txt" || !doc.UploadDate.Equal(uploaded) {
		t.Fatalf("immutable fields changed: %+v", doc)
	}
	if doc.Status != domain.StatusCompleted || doc.Summary == nil || *doc.Summary != "short" {
		t.Fatalf("mutable fields not saved: %+v", doc)
	}
}

func TestListNewestFirstWithFilter(t *testing.T) {
	repo, _ := NewDocumentRepository(t.TempDir())
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, newDoc("old", base, domain.StatusCompleted))
	_ = repo.Create(ctx, newDoc("new", base.Add(time.Hour), domain.StatusCompleted))
	_ = repo.Create(ctx, newDoc("busy", base.Add(2*time.Hour), domain.StatusProcessing))

	all, err := repo.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "busy" || all[2].ID != "old" {
		t.Fatalf("unexpected order %v", ids(all))
	}

	completed, _ := repo.List(ctx, domain.ListFilter{Status: domain.StatusCompleted, Limit: 1})
	if len(completed) != 1 || completed[0].ID != "new" {
		t.Fatalf("unexpected filtered list %v", ids(completed))
	}
}

func TestConcurrentSavesNeverCorrupt(t *testing.T) {
	repo, _ := NewDocumentRepository(t.TempDir())
	ctx := context.Background()
	_ = repo.Create(ctx, newDoc("doc-1", time.Now(), domain.StatusProcessing))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := newDoc("doc-1", time.Now(), domain.StatusProcessing)
			doc.SetChunkCount(i)
			if err := repo.Save(ctx, doc); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if _, err := repo.GetByID(ctx, "doc-1"); err != nil {
		t.Fatalf("GetByID() after concurrent saves error = %v", err)
	}
}

func ids(docs []domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
