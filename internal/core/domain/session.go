package domain

import "strconv"

// Position locates a segment or chunk inside the source document for citation.
// Page is 1-based for PDF and plain text; Paragraph is 1-based for DOCX.
type Position struct {
	Page      int `json:"page,omitempty"`
	Paragraph int `json:"paragraph,omitempty"`
}

// Label renders the position as a short human-readable citation.
func (p Position) Label() string {
	switch {
	case p.Paragraph > 0:
		return "paragraph " + strconv.Itoa(p.Paragraph)
	case p.Page > 0:
		return "page " + strconv.Itoa(p.Page)
	default:
		return ""
	}
}

// Segment is one logical unit of loaded text (a page, a paragraph, a whole file).
type Segment struct {
	Text     string   `json:"text"`
	Position Position `json:"position"`
}

// Chunk is a bounded span of extracted text. Start and End are rune offsets into
// the extracted text (segments joined by a blank line).
type Chunk struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Position Position `json:"position"`
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexHandle identifies a document's index inside an index provider.
type IndexHandle struct {
	DocumentID string `json:"document_id"`
	Backend    string `json:"backend"`
	ChunkCount int    `json:"chunk_count"`
}

func (h IndexHandle) Valid() bool {
	return h.DocumentID != "" && h.ChunkCount > 0
}

// Session binds one document's loaded segments, chunks and index handle.
type Session struct {
	DocumentID string      `json:"document_id"`
	Segments   []Segment   `json:"segments"`
	Chunks     []Chunk     `json:"chunks"`
	Index      IndexHandle `json:"index"`
}

// Ready reports whether the session may serve summaries and questions.
func (s *Session) Ready() bool {
	if s == nil {
		return false
	}
	return len(s.Chunks) > 0 && s.Index.Valid() && s.Index.DocumentID == s.DocumentID
}

// Answer is the result of a grounded question.
type Answer struct {
	Text    string        `json:"text"`
	Sources []ScoredChunk `json:"sources"`
}
