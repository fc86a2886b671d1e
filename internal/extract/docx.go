package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentPart = "word/document.xml"

// extractDOCX joins the text of the top-level body paragraphs with a single
// newline. Empty paragraphs become empty lines.
func extractDOCX(data []byte) (string, int, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open DOCX archive: %w", err)
	}

	var part *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, docxDocumentPart) {
			part = f
			break
		}
	}
	if part == nil {
		return "", 0, fmt.Errorf("%s is missing", docxDocumentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", docxDocumentPart, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", 0, err
	}

	return strings.Join(paragraphs, "\n"), len(paragraphs), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inPara     bool
		nestedPara int
		sawBody    bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxDocumentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local

			if name == "body" {
				sawBody = true
			}

			if name == "p" {
				switch {
				case inPara:
					nestedPara++
				case len(stack) > 0 && stack[len(stack)-1] == "body":
					inPara = true
					current.Reset()
				}
			}

			if inPara && nestedPara == 0 {
				switch name {
				case "t":
					var text string
					if err = dec.DecodeElement(&text, &t); err != nil {
						return nil, fmt.Errorf("decode text run: %w", err)
					}
					current.WriteString(text)
					continue
				case "tab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				}
			}

			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

			if t.Name.Local != "p" || !inPara {
				continue
			}

			if nestedPara > 0 {
				nestedPara--
				continue
			}

			paragraphs = append(paragraphs, current.String())
			inPara = false
		}
	}

	if !sawBody {
		return nil, errors.New("document body is missing")
	}

	return paragraphs, nil
}
