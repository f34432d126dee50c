package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether no further pipeline transition is allowed.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the externally observable position of a document in the processing pipeline.
type Stage string

const (
	StageUploaded  Stage = "uploaded"
	StageLoading   Stage = "loading"
	StageChunking  Stage = "chunking"
	StageIndexing  Stage = "indexing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Format is the declared document type, resolved once at upload time.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatText    Format = "txt"
)

// FormatFromFilename maps a file extension to a supported format.
// Unsupported extensions resolve to FormatUnknown.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type,omitempty"`
	Format     Format         `json:"format,omitempty"`
	StorageKey string         `json:"storage_key"`
	UploadDate time.Time      `json:"upload_date"`
	Status     DocumentStatus `json:"status"`
	Stage      Stage          `json:"stage"`
	Summary    *string        `json:"summary,omitempty"`
	ChunkCount *int           `json:"chunk_count,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (d *Document) SetSummary(summary string) {
	d.Summary = &summary
}

func (d *Document) SetChunkCount(n int) {
	d.ChunkCount = &n
}

// ListFilter narrows document listing.
type ListFilter struct {
	Status DocumentStatus
	Limit  int
}
