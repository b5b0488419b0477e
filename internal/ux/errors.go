package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	foremanerrors "github.com/crewline/foreman/internal/errors"
)

// ErrorWithSuggestion wraps an error with a recovery suggestion
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a recovery suggestion to raw failures that bypassed
// the structured error taxonomy. Errors that already carry suggestions
// pass through untouched.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	// Structured errors name their own next steps.
	var fe *foremanerrors.ForemanError
	if stderrors.As(err, &fe) && len(fe.Suggestions) > 0 {
		return err
	}

	errMsg := err.Error()

	// File not found errors
	if strings.Contains(errMsg, "no such file or directory") {
		if strings.Contains(errMsg, "blueprint") {
			return NewErrorWithSuggestion(err,
				"Run 'foreman init' to scaffold a blueprint, or point --dir at the project root")
		}
		if strings.Contains(errMsg, "plan.json") {
			return NewErrorWithSuggestion(err,
				"Compile a plan first with 'foreman plan'")
		}
		return NewErrorWithSuggestion(err,
			"Check that --dir points at the project root (the directory holding foreman.yaml)")
	}

	// Permission errors
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check write permissions on the project's state directory (.foreman by default)")
	}

	// Hand-edited machine files
	if strings.Contains(errMsg, "plan.json") && strings.Contains(errMsg, "invalid character") {
		return NewErrorWithSuggestion(err,
			"plan.json is machine-written; recompile it with 'foreman plan' instead of editing it")
	}

	// YAML syntax errors from blueprint or config edits
	if strings.Contains(errMsg, "yaml:") {
		return NewErrorWithSuggestion(err,
			"Fix the YAML syntax at the line named above, then run 'foreman validate'")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
