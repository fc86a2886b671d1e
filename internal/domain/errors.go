package domain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnsupportedFormat    Kind = "UnsupportedFormat"
	KindDocumentNotFound     Kind = "DocumentNotFound"
	KindExtractionFailure    Kind = "ExtractionFailure"
	KindInvalidConfiguration Kind = "InvalidConfiguration"
	KindSummarizationFailure Kind = "SummarizationFailure"
)

// Error is the failure reported by any pipeline stage.
type Error struct {
	Kind    Kind
	Message string
	// Extension is set for UnsupportedFormat.
	Extension string
	// ChunkIndex is the 1-based chunk number, set for SummarizationFailure.
	ChunkIndex int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func UnsupportedFormat(ext string) *Error {
	shown := ext
	if shown == "" {
		shown = "(none)"
	}

	return &Error{
		Kind:      KindUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported file format %s", shown),
		Extension: ext,
	}
}

func DocumentNotFound(name string, err error) *Error {
	return &Error{
		Kind:    KindDocumentNotFound,
		Message: fmt.Sprintf("document %q does not exist", name),
		Err:     err,
	}
}

func ExtractionFailure(name string, err error) *Error {
	return &Error{
		Kind:    KindExtractionFailure,
		Message: fmt.Sprintf("extract %q", name),
		Err:     err,
	}
}

func InvalidConfiguration(message string) *Error {
	return &Error{
		Kind:    KindInvalidConfiguration,
		Message: message,
	}
}

func SummarizationFailure(chunkIndex int, err error) *Error {
	return &Error{
		Kind:       KindSummarizationFailure,
		Message:    fmt.Sprintf("chunk %d", chunkIndex),
		ChunkIndex: chunkIndex,
		Err:        err,
	}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
