package recipe

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	// ErrFormat indicates the document is not valid YAML or JSON.
	ErrFormat = errors.New("recipe format error")

	// ErrInputType indicates the recipe source is neither a path nor a stream.
	ErrInputType = errors.New("recipe input type error")

	// ErrValidation indicates a well-formed document that does not describe a recipe.
	ErrValidation = errors.New("recipe validation error")
)

// FormatError reports a document that could not be decoded.
// Wraps ErrFormat for errors.Is() compatibility.
type FormatError struct {
	Msg string
	Err error // underlying decoder error, available via errors.As on the chain
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return ErrFormat.Error()
	}
	return fmt.Sprintf("%s: %s", ErrFormat.Error(), e.Msg)
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// InputTypeError reports a recipe source of an unsupported Go type.
// Wraps ErrInputType for errors.Is() compatibility.
type InputTypeError struct {
	Type string
}

func (e *InputTypeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: must provide a path or a stream, got %s", ErrInputType.Error(), e.Type)
}

func (e *InputTypeError) Unwrap() error { return ErrInputType }

// ValidationError reports a structurally insufficient recipe.
// Wraps ErrValidation for errors.Is() compatibility.
type ValidationError struct {
	Field string // offending field, e.g. "steps[1].operator"; empty for document-level problems
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Msg)
	}
	if e.Msg == "" {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
