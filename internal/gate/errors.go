package gate

import (
	"fmt"

	"github.com/crewline/foreman/internal/errors"
)

// StateError reports an event fired in a control state that does not
// accept it. The gate never guesses; out-of-order events are refused.
type StateError struct {
	Current State
	Event   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("event %s is not allowed in control state %s", e.Event, e.Current)
}

// ErrorCode implements errors.Coder
func (e *StateError) ErrorCode() errors.ErrorCode {
	if e.Current == StateComplete {
		return errors.ErrCodeGateComplete
	}
	switch e.Event {
	case EventApprovePlan, EventRejectPlan, EventApprovePhase, EventRejectPhase:
		return errors.ErrCodeGateNotAwaiting
	}
	return errors.ErrCodeGateInvalidEvent
}
