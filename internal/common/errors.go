package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy. Collaborator adapters wrap
// the matching sentinel so the orchestrator can classify failures without
// knowing concrete provider types.
var (
	ErrValidation     = errors.New("validation failed")
	ErrExtraction     = errors.New("extraction failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrNetwork        = errors.New("network error")
	ErrProvider       = errors.New("provider error")
	ErrStorage        = errors.New("storage error")
	ErrRegistry       = errors.New("registry error")
	ErrDuplicate      = errors.New("invoice already registered")
)

// ExtractionError reports which fact could not be recovered from a document.
// Field is "text", "date" or "amounts".
type ExtractionError struct {
	Field string
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not extract %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("could not extract %s", e.Field)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// NewExtractionError builds an ExtractionError for the named field.
func NewExtractionError(field string, cause error) *ExtractionError {
	return &ExtractionError{Field: field, Cause: cause}
}

// ValidationErrorf wraps ErrValidation with a formatted message.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
