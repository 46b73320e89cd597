// Package corerr defines the core's error enum, replacing the deep
// exception trees of the source implementation with a flat set of sentinel
// errors. The controller's step decides each error's disposition through
// Recoverable: recoverable errors go to AgentController.reportError and the
// loop continues; any other error ends the task with ERROR.
package corerr

import "errors"

var (
	// ErrMalformedAction is returned by an Agent.Step implementation when it
	// cannot produce a usable action from the given state. Recoverable: the
	// loop continues.
	ErrMalformedAction = errors.New("corerr: malformed action")

	// ErrNoAction is returned when Agent.Step has nothing to do. Recoverable.
	ErrNoAction = errors.New("corerr: no action")

	// ErrResponse wraps an LLM/response-layer failure surfaced from
	// Agent.Step. Recoverable.
	ErrResponse = errors.New("corerr: response error")

	// ErrBudget marks an iteration or cost budget overrun. Terminal for the
	// current step but not for the task: the controller transitions to
	// PAUSED/THROTTLING rather than ERROR.
	ErrBudget = errors.New("corerr: budget exceeded")

	// ErrStuck marks a StuckDetector positive. Terminal: ERROR.
	ErrStuck = errors.New("corerr: stuck")

	// ErrSerialize marks a State (de)serialization failure.
	ErrSerialize = errors.New("corerr: serialize")

	// ErrPersist marks a FileStore failure during save/restore.
	ErrPersist = errors.New("corerr: persist")

	// ErrMalformedTaskID marks an add_subtask/set_subtask_state call with a
	// malformed or unknown dotted-path task id.
	ErrMalformedTaskID = errors.New("corerr: malformed task id")

	// ErrInvalidTaskState marks set_subtask_state given an unrecognized
	// state string.
	ErrInvalidTaskState = errors.New("corerr: invalid task state")

	// ErrInternal marks any uncaught exception surfaced from the step loop.
	// Terminal: ERROR.
	ErrInternal = errors.New("corerr: internal")
)

// Recoverable reports whether err (or an error it wraps) is one of the
// dispositions that reports and continues the loop rather than ending the
// task.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrMalformedAction),
		errors.Is(err, ErrNoAction),
		errors.Is(err, ErrResponse):
		return true
	default:
		return false
	}
}
