package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HuggingFace loads a tokenizer.json exported by the HuggingFace tokenizers
// library, e.g. the one shipped with sshleifer/distilbart-cnn-12-6.
type HuggingFace struct {
	tk             *tokenizer.Tokenizer
	maxInputLength int
}

func NewHuggingFace(path string, maxInputLength int) (*HuggingFace, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tokenizer path is empty")
	}

	if maxInputLength < 1 {
		return nil, fmt.Errorf("max input length must be at least 1, got %d", maxInputLength)
	}

	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer (path = %s): %w", path, err)
	}

	// The whole document is tokenized at once and split afterwards.
	tk.WithTruncation(nil)
	tk.WithPadding(nil)

	return &HuggingFace{tk: tk, maxInputLength: maxInputLength}, nil
}

func (h *HuggingFace) Tokenize(text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}

	enc, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}

	return enc.Ids, nil
}

func (h *HuggingFace) Decode(ids []int) string {
	return h.tk.Decode(ids, true)
}

func (h *HuggingFace) MaxInputLength() int {
	return h.maxInputLength
}
