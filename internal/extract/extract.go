package extract

import (
	"context"
	"log/slog"

	"docsum/internal/domain"
)

type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// Extract converts the stored bytes of doc into plain text according to the
// document's declared format. No partial text is returned on failure.
func (e *Extractor) Extract(
	ctx context.Context,
	doc domain.Document,
	data []byte,
) (string, error) {
	var (
		text string
		err  error
	)

	switch doc.Format {
	case domain.FormatPDF:
		var pages int
		text, pages, err = extractPDF(data)
		if err == nil {
			e.log.DebugContext(ctx, "PDF is extracted",
				"document", doc.Name,
				"pages", pages)
		}
	case domain.FormatDOCX:
		var paragraphs int
		text, paragraphs, err = extractDOCX(data)
		if err == nil {
			e.log.DebugContext(ctx, "DOCX is extracted",
				"document", doc.Name,
				"paragraphs", paragraphs)
		}
	case domain.FormatText:
		text, err = extractText(data)
	default:
		return "", domain.UnsupportedFormat(doc.Extension)
	}

	if err != nil {
		return "", domain.ExtractionFailure(doc.Name, err)
	}

	return text, nil
}
