package exitcode

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/crewline/foreman/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// MalformedPlan indicates the blueprint could not be compiled into a valid plan
	MalformedPlan = 3

	// ScopeConflict indicates a task claim overlapped a live scope lease
	ScopeConflict = 4

	// PoolSaturated indicates a submission was rejected because no worker slot was free
	PoolSaturated = 5

	// PhaseNotReady indicates a phase advance was attempted before its deliverables were done
	PhaseNotReady = 6

	// StoreWrite indicates the decision log or snapshot could not be written
	StoreWrite = 7

	// Interrupted indicates the process was stopped by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Errors carrying a taxonomy code map directly; anything else falls back to
// message heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coder errors.Coder
	if stderrors.As(err, &coder) {
		if code, ok := codeFor(coder.ErrorCode()); ok {
			return code
		}
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "scope conflict") || strings.Contains(errMsg, "overlapping") {
		return ScopeConflict
	}

	if strings.Contains(errMsg, "saturated") || strings.Contains(errMsg, "no free slot") {
		return PoolSaturated
	}

	if strings.Contains(errMsg, "not ready") && strings.Contains(errMsg, "phase") {
		return PhaseNotReady
	}

	if strings.Contains(errMsg, "circular dependency") || strings.Contains(errMsg, "malformed plan") {
		return MalformedPlan
	}

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}

	return GeneralError
}

func codeFor(code errors.ErrorCode) (int, bool) {
	switch code {
	case errors.ErrCodeScopeConflict:
		return ScopeConflict, true
	case errors.ErrCodePoolSaturated:
		return PoolSaturated, true
	case errors.ErrCodePhaseNotReady:
		return PhaseNotReady, true
	case errors.ErrCodePlanMalformed, errors.ErrCodePlanCyclicDep, errors.ErrCodeBlueprintInvalid:
		return MalformedPlan, true
	case errors.ErrCodeStoreAppend, errors.ErrCodeStoreSnapshot:
		return StoreWrite, true
	}
	return 0, false
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case MalformedPlan:
		return "Blueprint could not be compiled into a valid plan"
	case ScopeConflict:
		return "Scope conflict with a running task"
	case PoolSaturated:
		return "Worker pool saturated"
	case PhaseNotReady:
		return "Phase has unfinished deliverables"
	case StoreWrite:
		return "State store write failed"
	case Interrupted:
		return "Interrupted by signal"
	default:
		return "Unknown error"
	}
}
