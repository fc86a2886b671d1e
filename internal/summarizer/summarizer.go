package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
)

var ErrEmptyInput = errors.New("input is empty")

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the plain text to summarise.
	Text string
	// MinLength and MaxLength bound the summary length in model tokens.
	MinLength int
	MaxLength int
}

// Summarizer produces a single summary for a given input text. Calls are
// deterministic: the same input and model yield the same summary.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}

type Config struct {
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
	HFEndpoint   string
	HFToken      string
}

func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case ProviderHuggingFace:
		return NewHuggingFaceSummarizer(cfg.HFEndpoint, cfg.HFToken, nil)
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}

func validateInput(input Input) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", ErrEmptyInput
	}

	if input.MinLength < 0 || input.MaxLength < 1 || input.MinLength > input.MaxLength {
		return "", fmt.Errorf("invalid length bounds (min = %d, max = %d)", input.MinLength, input.MaxLength)
	}

	return text, nil
}
