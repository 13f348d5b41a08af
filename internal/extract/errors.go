package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileNotFound      = errors.New("file not found")
	// ErrNoText means every strategy ran but none produced a character.
	ErrNoText = errors.New("no text could be extracted")
)

// Attempt records one strategy tried by an adapter.
type Attempt struct {
	Method string `json:"method"`
	Chars  int    `json:"chars"`
	Err    string `json:"error,omitempty"`
}

// ExtractionError means every strategy for FileType failed.
type ExtractionError struct {
	FileType string
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.FileType, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// OcrExhaustedError means every OCR strategy produced empty text.
type OcrExhaustedError struct {
	Attempts []Attempt
}

func (e *OcrExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reason := a.Err
		if reason == "" {
			reason = "empty text"
		}
		parts = append(parts, a.Method+": "+reason)
	}
	return "all OCR strategies failed (" + strings.Join(parts, "; ") + ")"
}

// Is lets errors.Is(err, ErrNoText) match exhausted OCR too.
func (e *OcrExhaustedError) Is(target error) bool { return target == ErrNoText }
