package pipeline

import "strings"

// Aggregate joins chunk summaries in chunk order with a single space. There is
// no second summarization pass, so long documents give long summaries.
func Aggregate(summaries []string) string {
	return strings.Join(summaries, " ")
}
