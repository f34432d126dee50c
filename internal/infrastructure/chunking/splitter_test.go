package chunking

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func TestNewSplitterNormalizesInvalidSettings(t *testing.T) {
	cases := []struct {
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{0, 200, DefaultChunkSize, DefaultOverlap},
		{100, -5, 100, 0},
		{100, 100, 100, 25},
		{100, 150, 100, 25},
	}
	for _, tc := range cases {
		s := NewSplitter(tc.size, tc.overlap)
		if s.ChunkSize != tc.wantSize || s.Overlap != tc.wantOverlap {
			t.Fatalf("NewSplitter(%d, %d) = %d/%d, want %d/%d",
				tc.size, tc.overlap, s.ChunkSize, s.Overlap, tc.wantSize, tc.wantOverlap)
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter(0, 0)
	if got := s.Split(nil); len(got) != 0 {
		t.Fatalf("expected no chunks for nil input, got %d", len(got))
	}
	if got := s.Split([]domain.Segment{{Text: " \n\t "}}); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %d", len(got))
	}
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split([]domain.Segment{{Text: "Hello world.", Position: domain.Position{Page: 1}}})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Hello world." || chunks[0].Start != 0 || chunks[0].End != 12 {
		t.Fatalf("unexpected chunk %+v", chunks[0])
	}
	if chunks[0].Position.Page != 1 {
		t.Fatalf("expected page 1, got %+v", chunks[0].Position)
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 60) + ". " + strings.Repeat("b", 60)
	s := NewSplitter(100, 10)
	chunks := s.Split([]domain.Segment{{Text: text}})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ". ") {
		t.Fatalf("expected first chunk to end after the sentence, got %q", chunks[0].Text)
	}
}

func TestSplitCarriesSegmentPositions(t *testing.T) {
	segments := []domain.Segment{
		{Text: strings.Repeat("first page text. ", 10), Position: domain.Position{Page: 1}},
		{Text: strings.Repeat("second page text. ", 10), Position: domain.Position{Page: 2}},
	}
	s := NewSplitter(120, 20)
	chunks := s.Split(segments)

	first, last := chunks[0], chunks[len(chunks)-1]
	if first.Position.Page != 1 {
		t.Fatalf("expected first chunk on page 1, got %+v", first.Position)
	}
	if last.Position.Page != 2 {
		t.Fatalf("expected last chunk on page 2, got %+v", last.Position)
	}
}

func TestSplitProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"lorem", "ipsum", "dolor", "sit", "amet.", "consectetur", "adipiscing!", "elit?", "\n\n", "\n", "данные", "ü", "日本語"}

	for iter := 0; iter < 200; iter++ {
		var segments []domain.Segment
		for p := 0; p < 1+rng.Intn(4); p++ {
			var b strings.Builder
			for w := 0; w < rng.Intn(400); w++ {
				if w > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(words[rng.Intn(len(words))])
			}
			segments = append(segments, domain.Segment{Text: b.String(), Position: domain.Position{Page: p + 1}})
		}
		size := 20 + rng.Intn(300)
		overlap := rng.Intn(size)
		s := NewSplitter(size, overlap)

		text := ExtractedText(segments)
		chunks := s.Split(segments)
		if strings.TrimSpace(text) == "" {
			if len(chunks) != 0 {
				t.Fatalf("iter %d: expected no chunks for blank text", iter)
			}
			continue
		}
		assertChunkInvariants(t, iter, text, chunks, s)
	}
}

func TestSplitDefaultSettingsOnLongText(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	s := NewSplitter(DefaultChunkSize, DefaultOverlap)
	chunks := s.Split([]domain.Segment{{Text: text, Position: domain.Position{Page: 1}}})
	if len(chunks) < 9 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	assertChunkInvariants(t, 0, text, chunks, s)
}

func assertChunkInvariants(t *testing.T, iter int, text string, chunks []domain.Chunk, s *Splitter) {
	t.Helper()
	runes := []rune(text)

	var rebuilt []rune
	for i, c := range chunks {
		cr := []rune(c.Text)
		if len(cr) == 0 {
			t.Fatalf("iter %d: chunk %d is empty", iter, i)
		}
		if len(cr) > s.ChunkSize {
			t.Fatalf("iter %d: chunk %d has %d runes > %d", iter, i, len(cr), s.ChunkSize)
		}
		if c.Index != i {
			t.Fatalf("iter %d: chunk %d has index %d", iter, i, c.Index)
		}
		if string(runes[c.Start:c.End]) != c.Text {
			t.Fatalf("iter %d: chunk %d offsets do not match its text", iter, i)
		}
		if i == 0 {
			if c.Start != 0 {
				t.Fatalf("iter %d: first chunk starts at %d", iter, c.Start)
			}
			rebuilt = append(rebuilt, cr...)
			continue
		}
		prev := chunks[i-1]
		if prev.End-c.Start != s.Overlap {
			t.Fatalf("iter %d: chunks %d/%d overlap by %d, want %d", iter, i-1, i, prev.End-c.Start, s.Overlap)
		}
		rebuilt = append(rebuilt, cr[s.Overlap:]...)
	}
	if string(rebuilt) != text {
		t.Fatalf("iter %d: concatenation minus overlaps does not reproduce the text", iter)
	}
	if chunks[len(chunks)-1].End != len(runes) {
		t.Fatalf("iter %d: last chunk ends at %d, want %d", iter, chunks[len(chunks)-1].End, len(runes))
	}
}
