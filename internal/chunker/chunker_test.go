package chunker_test

import (
	"slices"
	"testing"

	"docsum/internal/chunker"
	"docsum/internal/domain"
)

func sequence(n int) []int {
	tokens := make([]int, n)
	for i := range tokens {
		tokens[i] = i + 100
	}
	return tokens
}

func TestChunkCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 999, 1000, 1001, 2500, 3000} {
		for _, w := range []int{1, 3, 7, 1000, 5000} {
			tokens := sequence(n)

			chunks, err := chunker.Chunk(tokens, w)
			if err != nil {
				t.Fatalf("n=%d w=%d: unexpected error: %v", n, w, err)
			}

			if want := chunker.Count(n, w); len(chunks) != want {
				t.Fatalf("n=%d w=%d: expected %d chunks, got %d", n, w, want, len(chunks))
			}

			var rebuilt []int
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("n=%d w=%d: chunk %d has index %d", n, w, i, c.Index)
				}
				if c.Start != len(rebuilt) {
					t.Fatalf("n=%d w=%d: chunk %d starts at %d, expected %d", n, w, i, c.Start, len(rebuilt))
				}
				if i < len(chunks)-1 && c.Len() != w {
					t.Fatalf("n=%d w=%d: non-final chunk %d has %d tokens", n, w, i, c.Len())
				}
				if c.Len() == 0 || c.Len() > w {
					t.Fatalf("n=%d w=%d: chunk %d has %d tokens", n, w, i, c.Len())
				}
				rebuilt = append(rebuilt, c.Tokens...)
			}

			if !slices.Equal(rebuilt, tokens) {
				t.Fatalf("n=%d w=%d: chunks do not reconstruct the stream", n, w)
			}
		}
	}
}

func TestChunkEmptyStream(t *testing.T) {
	chunks, err := chunker.Chunk(nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks, got %d", len(chunks))
	}
}

func TestChunkSingleWindow(t *testing.T) {
	tokens := sequence(42)

	chunks, err := chunker.Chunk(tokens, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || !slices.Equal(chunks[0].Tokens, tokens) {
		t.Fatalf("expected exactly one chunk with the whole stream, got %+v", chunks)
	}
}

func TestChunkSizes(t *testing.T) {
	chunks, err := chunker.Chunk(sequence(2500), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sizes []int
	for _, c := range chunks {
		sizes = append(sizes, c.Len())
	}

	if !slices.Equal(sizes, []int{1000, 1000, 500}) {
		t.Fatalf("unexpected chunk sizes: %v", sizes)
	}
}

func TestChunkExactMultiple(t *testing.T) {
	chunks, err := chunker.Chunk(sequence(3000), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 || chunks[2].Len() != 1000 {
		t.Fatalf("expected three full windows, got %d chunks", len(chunks))
	}
}

func TestChunkInvalidWindow(t *testing.T) {
	for _, w := range []int{0, -1} {
		_, err := chunker.Chunk(sequence(5), w)
		if !domain.IsKind(err, domain.KindInvalidConfiguration) {
			t.Fatalf("w=%d: expected InvalidConfiguration, got %v", w, err)
		}
	}
}

func TestChunkDoesNotAliasBeyondWindow(t *testing.T) {
	tokens := sequence(10)

	chunks, err := chunker.Chunk(tokens, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := append(chunks[0].Tokens, -1)
	if tokens[4] == -1 || first[4] != -1 {
		t.Fatalf("appending to a chunk must not overwrite the next window")
	}
}
