package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page in page order. Pages
// without text contribute nothing.
func extractPDF(data []byte) (text string, pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("parse PDF: %v", r)
		}
	}()

	if len(data) == 0 {
		return "", 0, errors.New("PDF is empty")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}

	pages = r.NumPage()

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		pageText, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			return "", 0, fmt.Errorf("read page %d: %w", i, pageErr)
		}

		b.WriteString(pageText)
	}

	return b.String(), pages, nil
}
