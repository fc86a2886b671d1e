package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultOpenAIModel = "gpt-4.1-mini"

	systemPrompt = `Write an abstractive summary of the document excerpt.

Rules:
- Between %d and %d tokens.
- Keep the core ideas, names, dates and numbers.
- Plain prose, no lists, no headings, no preamble.
- Same language as the input.`
)

// OpenAISummarizer calls OpenAI's Responses API with temperature 0.
type OpenAISummarizer struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAISummarizer(apiKey string, model string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is empty")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(model),
	}, nil
}

func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text, err := validateInput(input)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           s.model,
		MaxOutputTokens: openai.Int(int64(input.MaxLength)),
		Temperature:     openai.Float(0),
		Instructions:    openai.String(fmt.Sprintf(systemPrompt, input.MinLength, input.MaxLength)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	summary := strings.TrimSpace(resp.OutputText())

	// A summary cut at the token limit is still bounded output.
	if resp.Status == "incomplete" && resp.IncompleteDetails.Reason != "max_output_tokens" {
		return "", fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason)
	}

	if summary == "" {
		return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
	}

	return summary, nil
}
