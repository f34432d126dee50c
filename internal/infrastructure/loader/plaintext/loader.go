package plaintext

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type Loader struct{}

func New() *Loader {
	return &Loader{}
}

// Load returns the whole file as a single segment on page 1.
func (l *Loader) Load(_ context.Context, raw []byte) ([]domain.Segment, error) {
	raw = trimBOM(raw)
	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load txt", errors.New("file is not valid UTF-8 text"))
	}

	text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}
	return []domain.Segment{{Text: text, Position: domain.Position{Page: 1}}}, nil
}

func trimBOM(raw []byte) []byte {
	if len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF {
		return raw[3:]
	}
	return raw
}
