package sched

import (
	"fmt"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
)

// SaturatedError reports that a submission would exceed the pool's
// capacity ceiling. The caller decides whether to wait or reject;
// nothing was enqueued.
type SaturatedError struct {
	Tag               domain.CapabilityTag
	TagOutstanding    int
	TagCapacity       int
	GlobalOutstanding int
	GlobalLimit       int
}

func (e *SaturatedError) Error() string {
	if e.TagOutstanding >= e.TagCapacity {
		return fmt.Sprintf("worker pool saturated: tag %q has %d of %d slots taken (queued or running)",
			e.Tag, e.TagOutstanding, e.TagCapacity)
	}
	return fmt.Sprintf("worker pool saturated: global ceiling reached with %d of %d tickets outstanding",
		e.GlobalOutstanding, e.GlobalLimit)
}

// ErrorCode implements errors.Coder
func (e *SaturatedError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodePoolSaturated
}

// TransitionError reports an illegal ticket state change. These point at
// controller bugs or out-of-order operator commands, never at workers.
type TransitionError struct {
	TicketID domain.TicketID
	From     TicketState
	To       TicketState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ticket %s cannot move from %s to %s", e.TicketID, e.From, e.To)
}

// ErrorCode implements errors.Coder
func (e *TransitionError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeTicketBadTransit
}
