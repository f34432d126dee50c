package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type Loader struct{}

func New() *Loader {
	return &Loader{}
}

// Load extracts one segment per page that carries text. Page numbers are 1-based.
// The parser panics on some malformed files; that is reported as a load failure.
func (l *Loader) Load(ctx context.Context, raw []byte) (segments []domain.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = domain.WrapError(domain.ErrLoadFailure, "load pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load pdf", err)
	}

	pageCount := reader.NumPage()
	segments = make([]domain.Segment, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrLoadFailure, "load pdf", fmt.Errorf("page %d: %w", i, err))
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{Text: text, Position: domain.Position{Page: i}})
	}
	return segments, nil
}
