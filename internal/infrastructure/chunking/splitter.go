package chunking

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	segmentSeparator = "\n\n"
)

// Splitter cuts extracted text into windows of at most ChunkSize runes. Each
// chunk after the first starts exactly Overlap runes before the end of the
// previous one, so dropping the overlap prefixes reproduces the text.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(segments []domain.Segment) []domain.Chunk {
	text, offsets, positions := joinSegments(segments)
	if strings.TrimSpace(string(text)) == "" {
		return nil
	}

	n := len(text)
	minAdvance := max(s.ChunkSize/2, s.Overlap+1)
	out := make([]domain.Chunk, 0, n/(s.ChunkSize-s.Overlap)+1)

	start := 0
	for {
		end := start + s.ChunkSize
		if end >= n {
			out = append(out, s.chunk(len(out), text, start, n, offsets, positions))
			break
		}
		cut := findCut(text, start+minAdvance, end)
		out = append(out, s.chunk(len(out), text, start, cut, offsets, positions))
		start = cut - s.Overlap
	}
	return out
}

func (s *Splitter) chunk(index int, text []rune, start, end int, offsets []int, positions []domain.Position) domain.Chunk {
	// Last segment whose first rune is at or before start.
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > start }) - 1
	if i < 0 {
		i = 0
	}
	return domain.Chunk{
		Index:    index,
		Text:     string(text[start:end]),
		Start:    start,
		End:      end,
		Position: positions[i],
	}
}

// findCut picks the end of a chunk in [lo, hi]: after a paragraph break, then
// after a sentence end, then after whitespace, else hi.
func findCut(text []rune, lo, hi int) int {
	for _, boundary := range []func([]rune, int) bool{paragraphBoundary, sentenceBoundary, spaceBoundary} {
		for cut := hi; cut >= lo; cut-- {
			if boundary(text, cut) {
				return cut
			}
		}
	}
	return hi
}

func paragraphBoundary(text []rune, cut int) bool {
	return cut >= 2 && text[cut-1] == '\n' && text[cut-2] == '\n'
}

func sentenceBoundary(text []rune, cut int) bool {
	if cut < 2 || !unicode.IsSpace(text[cut-1]) {
		return false
	}
	switch text[cut-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func spaceBoundary(text []rune, cut int) bool {
	return cut >= 1 && unicode.IsSpace(text[cut-1])
}

func joinSegments(segments []domain.Segment) ([]rune, []int, []domain.Position) {
	var (
		b         strings.Builder
		offsets   []int
		positions []domain.Position
		runes     int
	)
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		if len(offsets) > 0 {
			b.WriteString(segmentSeparator)
			runes += len([]rune(segmentSeparator))
		}
		offsets = append(offsets, runes)
		positions = append(positions, seg.Position)
		b.WriteString(seg.Text)
		runes += len([]rune(seg.Text))
	}
	return []rune(b.String()), offsets, positions
}

// ExtractedText returns the text chunk offsets refer to.
func ExtractedText(segments []domain.Segment) string {
	text, _, _ := joinSegments(segments)
	return string(text)
}
