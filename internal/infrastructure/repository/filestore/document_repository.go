package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

// DocumentRepository keeps one JSON file per document under dir. Writes go
// through a temp file and rename, so a record is never observed half-written.
type DocumentRepository struct {
	dir string
	mu  sync.RWMutex
}

func NewDocumentRepository(dir string) (*DocumentRepository, error) {
	if dir == "" {
		dir = "./data/document_metadata"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}
	return &DocumentRepository{dir: dir}, nil
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.path(doc.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("id=%s already exists", doc.ID))
	}
	return r.write(path, doc)
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, err := r.path(id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", err)
	}
	return r.read(path, id)
}

func (r *DocumentRepository) List(_ context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read metadata dir: %w", err)
	}

	out := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		doc, err := r.read(filepath.Join(r.dir, entry.Name()), id)
		if err != nil {
			return nil, err
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, *doc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadDate.After(out[j].UploadDate)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Save replaces the record. id, filename and upload_date keep their stored values.
func (r *DocumentRepository) Save(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.path(doc.ID)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", err)
	}
	current, err := r.read(path, doc.ID)
	if err != nil {
		return err
	}

	next := *doc
	next.Filename = current.Filename
	next.UploadDate = current.UploadDate
	return r.write(path, &next)
}

func (r *DocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.path(id)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", err)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
		}
		return fmt.Errorf("remove metadata file: %w", err)
	}
	return nil
}

func (r *DocumentRepository) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

func (r *DocumentRepository) read(path, id string) (*domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return &doc, nil
}

func (r *DocumentRepository) write(path string, doc *domain.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	f, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}
