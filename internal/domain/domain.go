package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatText:
		return "txt"
	default:
		return "unknown"
	}
}

// FormatFromName resolves the declared format from the lower-cased extension.
func FormatFromName(name string) (Format, string) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))

	switch ext {
	case ".pdf":
		return FormatPDF, ext
	case ".docx":
		return FormatDOCX, ext
	case ".txt":
		return FormatText, ext
	default:
		return FormatUnknown, ext
	}
}

type Document struct {
	Name      string
	Format    Format
	Extension string
}

func NewDocument(name string) Document {
	format, ext := FormatFromName(name)

	return Document{
		Name:      name,
		Format:    format,
		Extension: ext,
	}
}

// Chunk is a window of a token stream. Tokens aliases the stream and must not
// be modified.
type Chunk struct {
	Index  int
	Start  int
	Tokens []int
}

func (c Chunk) Len() int {
	return len(c.Tokens)
}

type StoredDocument struct {
	Name     string
	Size     int64
	Modified time.Time
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

type Run struct {
	ID           string
	DocumentName string
	Status       RunStatus
	FailureKind  string
	Message      string
	ChunkCount   int
	TokenCount   int
	StartedAt    time.Time
	FinishedAt   time.Time
}
