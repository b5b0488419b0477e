package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Blueprint errors (BLUEPRINT-001 to BLUEPRINT-099)
	ErrCodeBlueprintNotFound     ErrorCode = "BLUEPRINT-001"
	ErrCodeBlueprintInvalid      ErrorCode = "BLUEPRINT-002"
	ErrCodeBlueprintUnmarshal    ErrorCode = "BLUEPRINT-003"
	ErrCodeBlueprintHashMismatch ErrorCode = "BLUEPRINT-004"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanNotFound    ErrorCode = "PLAN-001"
	ErrCodePlanMalformed   ErrorCode = "PLAN-002"
	ErrCodePlanCyclicDep   ErrorCode = "PLAN-003"
	ErrCodePlanTaskMissing ErrorCode = "PLAN-004"
	ErrCodePhaseNotReady   ErrorCode = "PLAN-005"
	ErrCodePhaseUnknown    ErrorCode = "PLAN-006"

	// Scope errors (SCOPE-001 to SCOPE-099)
	ErrCodeScopeConflict     ErrorCode = "SCOPE-001"
	ErrCodeScopeEmpty        ErrorCode = "SCOPE-002"
	ErrCodeScopeLeaseUnknown ErrorCode = "SCOPE-003"

	// Worker pool errors (POOL-001 to POOL-099)
	ErrCodePoolSaturated      ErrorCode = "POOL-001"
	ErrCodePoolUnknownTag     ErrorCode = "POOL-002"
	ErrCodeTicketUnknown      ErrorCode = "POOL-003"
	ErrCodeTicketBadTransit   ErrorCode = "POOL-004"
	ErrCodeTicketNotResumable ErrorCode = "POOL-005"

	// Phase gate errors (GATE-001 to GATE-099)
	ErrCodeGateInvalidEvent ErrorCode = "GATE-001"
	ErrCodeGateNotAwaiting  ErrorCode = "GATE-002"
	ErrCodeGateComplete     ErrorCode = "GATE-003"

	// Ticket and report file errors (TICKET-001 to TICKET-099)
	ErrCodeTicketFileInvalid ErrorCode = "TICKET-001"
	ErrCodeReportInvalid     ErrorCode = "TICKET-002"
	ErrCodeRunDirMissing     ErrorCode = "TICKET-003"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// State store errors (STORE-001 to STORE-099)
	ErrCodeStoreAppend     ErrorCode = "STORE-001"
	ErrCodeStoreSnapshot   ErrorCode = "STORE-002"
	ErrCodeStoreLogCorrupt ErrorCode = "STORE-003"
	ErrCodeDecisionUnknown ErrorCode = "STORE-004"

	// Resume errors (RESUME-001 to RESUME-099)
	ErrCodeResumeNoState  ErrorCode = "RESUME-001"
	ErrCodeResumeMismatch ErrorCode = "RESUME-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// ForemanError represents an enhanced error with code, suggestions, and documentation
type ForemanError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *ForemanError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ForemanError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the taxonomy code; ForemanError satisfies Coder.
func (e *ForemanError) ErrorCode() ErrorCode {
	return e.Code
}

// Coder is implemented by errors that carry a taxonomy code. Structured
// errors defined in other packages implement it so the CLI can map any
// failure to an exit code without importing those packages.
type Coder interface {
	error
	ErrorCode() ErrorCode
}

// CodeOf extracts the taxonomy code from the first Coder in the error
// chain, or empty when the chain carries none.
func CodeOf(err error) ErrorCode {
	var coder Coder
	if stderrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// New creates a new ForemanError
func New(code ErrorCode, message string) *ForemanError {
	return &ForemanError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ForemanError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ForemanError {
	return &ForemanError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ForemanError) WithSuggestion(suggestion string) *ForemanError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ForemanError) WithSuggestions(suggestions ...string) *ForemanError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *ForemanError) WithDocs(url string) *ForemanError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewBlueprintNotFoundError creates a blueprint file not found error
func NewBlueprintNotFoundError(path string) *ForemanError {
	return New(ErrCodeBlueprintNotFound, fmt.Sprintf("blueprint file not found: %s", path)).
		WithSuggestion("Run 'foreman init' to scaffold a blueprint").
		WithSuggestion("Check if the file path is correct")
}

// NewBlueprintInvalidError creates a blueprint validation error
func NewBlueprintInvalidError(details string) *ForemanError {
	return New(ErrCodeBlueprintInvalid, fmt.Sprintf("invalid blueprint: %s", details)).
		WithSuggestion("Run 'foreman validate' to see all validation errors").
		WithSuggestion("Every phase needs at least one deliverable, and every deliverable at least one acceptance criterion")
}

// NewBlueprintHashMismatchError reports that the blueprint changed after the
// plan was compiled from it.
func NewBlueprintHashMismatchError(expected, actual string) *ForemanError {
	return New(ErrCodeBlueprintHashMismatch, "blueprint has changed since the plan was compiled").
		WithSuggestion("Run 'foreman plan' to recompile from the current blueprint").
		WithSuggestion(fmt.Sprintf("Expected hash: %s, got: %s", expected, actual))
}

// NewPlanNotFoundError creates a plan file not found error
func NewPlanNotFoundError(path string) *ForemanError {
	return New(ErrCodePlanNotFound, fmt.Sprintf("compiled plan not found: %s", path)).
		WithSuggestion("Run 'foreman plan' to compile the blueprint into a plan")
}

// NewStoreAppendError reports a failed decision log append. Appends are
// fail-closed: the transition that produced the entry must not proceed.
func NewStoreAppendError(path string, cause error) *ForemanError {
	return Wrap(ErrCodeStoreAppend, fmt.Sprintf("failed to append decision entry: %s", path), cause).
		WithSuggestion("Check disk space and write permissions on the state directory").
		WithSuggestion("No state was changed; retry the operation once the disk is writable")
}

// NewStoreSnapshotError reports a failed status snapshot replace.
func NewStoreSnapshotError(path string, cause error) *ForemanError {
	return Wrap(ErrCodeStoreSnapshot, fmt.Sprintf("failed to write status snapshot: %s", path), cause).
		WithSuggestion("Check disk space and write permissions on the state directory").
		WithSuggestion("The previous snapshot is intact; the decision log remains authoritative")
}

// NewLogCorruptError reports a decision log that cannot be replayed.
func NewLogCorruptError(path string, line int, cause error) *ForemanError {
	return Wrap(ErrCodeStoreLogCorrupt, fmt.Sprintf("decision log %s is corrupt at line %d", path, line), cause).
		WithSuggestion("Restore the log from backup; entries before the corrupt line are still readable").
		WithSuggestion("A corrupt final line alone is tolerated as a torn write and does not raise this error")
}

// NewTicketUnknownError creates an unknown ticket error
func NewTicketUnknownError(ticketID string) *ForemanError {
	return New(ErrCodeTicketUnknown, fmt.Sprintf("unknown ticket: %s", ticketID)).
		WithSuggestion("Run 'foreman status' to list live tickets")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *ForemanError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *ForemanError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
