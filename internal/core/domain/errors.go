package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrLoadFailure       = errors.New("load failure")
	ErrIndexUnavailable  = errors.New("index unavailable")
	ErrGenerationFailure = errors.New("generation failure")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNotReady          = errors.New("document not ready")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var errorKinds = []struct {
	kind error
	name string
}{
	{ErrDocumentNotFound, "not_found"},
	{ErrNotReady, "not_ready"},
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrLoadFailure, "load_failure"},
	{ErrIndexUnavailable, "index_unavailable"},
	{ErrGenerationFailure, "generation_failure"},
	{ErrInvalidInput, "invalid_input"},
	{ErrTemporary, "temporary"},
	{ErrSessionNotFound, "not_ready"},
}

// KindOf returns the snake_case error kind exposed to API clients.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
