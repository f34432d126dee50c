package loader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

// FormatLoader extracts ordered segments from the raw bytes of one format.
// Implementations return everything or an error, never a partial result.
type FormatLoader interface {
	Load(ctx context.Context, raw []byte) ([]domain.Segment, error)
}

// Loader reads a stored upload and dispatches on the format resolved at upload.
type Loader struct {
	storage ports.ObjectStorage
	formats map[domain.Format]FormatLoader
	maxSize int64
}

type Option func(*Loader)

// WithMaxSize rejects stored files larger than n bytes.
func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

func New(storage ports.ObjectStorage, formats map[domain.Format]FormatLoader, opts ...Option) *Loader {
	l := &Loader{
		storage: storage,
		formats: make(map[domain.Format]FormatLoader, len(formats)),
		maxSize: 64 << 20,
	}
	for format, fl := range formats {
		l.formats[format] = fl
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Load(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	fl, ok := l.formats[doc.Format]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "load document",
			fmt.Errorf("filename %q has no supported extension (pdf, docx, txt)", doc.Filename))
	}

	raw, err := l.read(ctx, doc.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load document", err)
	}

	segments, err := fl.Load(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrLoadFailure) || errors.Is(err, domain.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrLoadFailure, fmt.Sprintf("load %s", doc.Format), err)
	}
	return segments, nil
}

func (l *Loader) read(ctx context.Context, key string) ([]byte, error) {
	reader, err := l.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > l.maxSize {
		return nil, fmt.Errorf("source document exceeds %d bytes", l.maxSize)
	}
	return raw, nil
}
