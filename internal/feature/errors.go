package feature

import (
	"errors"
	"fmt"
)

// ErrFeature is matched by every error kind of this package, so callers can
// guard "any feature failure" with a single errors.Is check.
var ErrFeature = errors.New("feature")

// NotFoundError reports a missing feature name or a missing version of a known feature.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("feature %q is not registered", e.Name)
	}
	return fmt.Sprintf("feature %q has no version %q", e.Name, e.Version)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrFeature }

// RegistrationError reports a malformed registration or a generator that
// could not be constructed.
type RegistrationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("feature %q registration: %s", e.Name, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

func (e *RegistrationError) Is(target error) bool { return target == ErrFeature }

// ValidationError reports invalid options or a generated result that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrFeature }

// PromptBuildError reports a failure while assembling an LLM prompt.
type PromptBuildError struct {
	Template string
	Err      error
}

func (e *PromptBuildError) Error() string {
	return fmt.Sprintf("build prompt %q: %v", e.Template, e.Err)
}

func (e *PromptBuildError) Unwrap() error { return e.Err }

func (e *PromptBuildError) Is(target error) bool { return target == ErrFeature }

// Invalid is a shorthand for a ValidationError on field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
