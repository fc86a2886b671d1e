package markdown

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxMessageLength is the Telegram limit for one message text.
const MaxMessageLength = 4096

// See https://core.telegram.org/bots/api#markdownv2-style.
const specialChars = `._[](){}#|!+-=*~>` + "`"

func isSpecial(r rune) bool {
	return r < utf8.RuneSelf && strings.ContainsRune(specialChars, r)
}

// escapeRune returns r as MarkdownV2 text and its length in UTF-16 units.
func escapeRune(r rune) (string, int) {
	size := utf16.RuneLen(r)
	if size < 0 {
		size = 1
	}

	if isSpecial(r) {
		return `\` + string(r), size + 1
	}

	return string(r), size
}

func EscapeV2(input string) string {
	if !strings.ContainsAny(input, specialChars) {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + len(input)/4)

	for _, r := range input {
		text, _ := escapeRune(r)
		b.WriteString(text)
	}

	return b.String()
}

type unit struct {
	text  string
	size  int
	space bool
}

// SplitV2 escapes input for MarkdownV2 and splits it into parts of at most
// limit UTF-16 code units. Parts break after whitespace when possible and
// never inside an escape sequence.
func SplitV2(input string, limit int) []string {
	if limit < 2 {
		return nil
	}

	units := make([]unit, 0, len(input))

	for _, r := range input {
		text, size := escapeRune(r)
		units = append(units, unit{
			text:  text,
			size:  size,
			space: unicode.IsSpace(r),
		})
	}

	var parts []string

	for start := 0; start < len(units); {
		size := 0
		end := start
		lastBreak := -1

		for end < len(units) && size+units[end].size <= limit {
			size += units[end].size
			if units[end].space {
				lastBreak = end
			}
			end++
		}

		if end < len(units) && lastBreak > start {
			end = lastBreak + 1
		}
		if end == start {
			end++
		}

		var b strings.Builder
		for _, u := range units[start:end] {
			b.WriteString(u.text)
		}

		if part := strings.TrimSpace(b.String()); part != "" {
			parts = append(parts, part)
		}

		start = end
	}

	return parts
}

// Len is the length of text in UTF-16 code units, the unit of Telegram's
// message limit.
func Len(text string) int {
	n := 0
	for _, r := range text {
		if size := utf16.RuneLen(r); size > 0 {
			n += size
		} else {
			n++
		}
	}
	return n
}
