package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBodyBytes = 4096

// HuggingFaceSummarizer calls a summarization endpoint that speaks the
// HuggingFace Inference API format, e.g. a deployment of
// sshleifer/distilbart-cnn-12-6.
type HuggingFaceSummarizer struct {
	endpoint string
	token    string
	client   *http.Client
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MinLength int  `json:"min_length"`
	MaxLength int  `json:"max_length"`
	DoSample  bool `json:"do_sample"`
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func NewHuggingFaceSummarizer(endpoint string, token string, client *http.Client) (*HuggingFaceSummarizer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("HuggingFace endpoint is empty")
	}

	if client == nil {
		client = &http.Client{}
	}

	return &HuggingFaceSummarizer{
		endpoint: endpoint,
		token:    strings.TrimSpace(token),
		client:   client,
	}, nil
}

func (s *HuggingFaceSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text, err := validateInput(input)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(hfRequest{
		Inputs: text,
		Parameters: hfParameters{
			MinLength: input.MinLength,
			MaxLength: input.MaxLength,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readHTTPError(resp)
	}

	var summaries []hfSummary
	if err = json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(summaries) == 0 {
		return "", errors.New("response has no summaries")
	}

	summary := strings.TrimSpace(summaries[0].SummaryText)
	if summary == "" {
		return "", errors.New("summary text is missing")
	}

	return summary, nil
}

func readHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	message := strings.TrimSpace(string(raw))

	var payload hfError
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &HTTPError{StatusCode: resp.StatusCode, Message: message}
}
