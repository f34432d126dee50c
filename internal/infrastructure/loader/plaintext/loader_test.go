package plaintext

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func TestLoadWholeFileIsOneSegment(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("  line one\r\nline two \n")...)

	segments, err := New().Load(context.Background(), raw)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "line one\nline two" {
		t.Fatalf("unexpected text %q", segments[0].Text)
	}
	if segments[0].Position.Page != 1 {
		t.Fatalf("expected page 1, got %+v", segments[0].Position)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	segments, err := New().Load(context.Background(), []byte(" \n "))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(segments))
	}
}

func TestLoadRejectsBinary(t *testing.T) {
	_, err := New().Load(context.Background(), []byte{0xff, 0xfe, 0x00, 0x81})
	if !errors.Is(err, domain.ErrLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
}
