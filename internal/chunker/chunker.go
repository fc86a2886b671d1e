package chunker

import (
	"fmt"

	"docsum/internal/domain"
)

// Chunk partitions tokens into consecutive windows of windowSize tokens, the
// last window holding the remainder. An empty stream yields no chunks.
func Chunk(tokens []int, windowSize int) ([]domain.Chunk, error) {
	if windowSize <= 0 {
		return nil, domain.InvalidConfiguration(fmt.Sprintf("window size must be positive, got %d", windowSize))
	}

	n := len(tokens)
	if n == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, Count(n, windowSize))

	for start := 0; start < n; {
		end := min(start+windowSize, n)

		chunks = append(chunks, domain.Chunk{
			Index:  len(chunks),
			Start:  start,
			Tokens: tokens[start:end:end],
		})

		start = end
	}

	return chunks, nil
}

// Count returns ceil(n/windowSize), the number of chunks Chunk produces.
func Count(n, windowSize int) int {
	if n <= 0 || windowSize <= 0 {
		return 0
	}
	return (n + windowSize - 1) / windowSize
}
