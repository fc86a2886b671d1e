package tokenizer

import (
	"fmt"

	"docsum/internal/domain"
)

const DefaultSafetyMargin = 50

// Tokenizer turns text into token ids and back. Implementations are built once
// per process and shared by all requests.
type Tokenizer interface {
	Tokenize(text string) ([]int, error)
	// Decode returns the text of ids with special tokens removed.
	Decode(ids []int) string
	MaxInputLength() int
}

// WindowSize leaves safetyMargin tokens below the model's input limit for the
// boundary tokens the tokenizer adds.
func WindowSize(maxInputLength, safetyMargin int) (int, error) {
	if maxInputLength < 1 {
		return 0, domain.InvalidConfiguration(fmt.Sprintf("max input length must be at least 1, got %d", maxInputLength))
	}
	if safetyMargin < 0 {
		return 0, domain.InvalidConfiguration(fmt.Sprintf("safety margin must not be negative, got %d", safetyMargin))
	}

	window := maxInputLength - safetyMargin
	if window <= 0 {
		return 0, domain.InvalidConfiguration(fmt.Sprintf(
			"safety margin %d leaves no room in max input length %d", safetyMargin, maxInputLength))
	}

	return window, nil
}
