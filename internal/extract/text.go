package extract

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// extractText reads data as UTF-8. There is no encoding detection, so text in
// any other encoding fails.
func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}

	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
