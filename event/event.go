// Package event defines the tagged-variant Event that is the sole medium of
// communication inside the agent execution core: every Action an agent or
// user emits, and every Observation that answers it, is carried as an Event.
package event

import (
	"errors"
	"time"
)

type (
	// Source identifies who or what produced an Event.
	Source string

	// Event is the atomic, immutable unit of the core. Exactly one of Action
	// or Observation is set; which one determines the Event's variant.
	Event struct {
		// ID is assigned by the EventStream at append time. It is monotonically
		// increasing from 0 per stream. Unassigned is -1.
		ID int64
		// Timestamp is stamped by the EventStream at append time.
		Timestamp time.Time
		// Source records who produced the event.
		Source Source
		// Cause, for observations, is the id of the action they answer.
		// Nil for actions and for observations with no originating action.
		Cause *int64
		// Action is set when this event carries intent. Nil for observations.
		Action Action
		// Observation is set when this event carries a result. Nil for actions.
		Observation Observation
	}

	// Action is intent emitted by an agent or user.
	Action interface {
		// ActionTag returns the stable string discriminator for this variant.
		ActionTag() string
		// Runnable reports whether this action's effect requires sandbox
		// execution; the controller blocks on its paired observation before
		// issuing another runnable action.
		Runnable() bool
	}

	// Observation is the effect of an action, or a spontaneous environment
	// signal.
	Observation interface {
		// ObservationTag returns the stable string discriminator for this variant.
		ObservationTag() string
	}
)

const (
	// SourceUser identifies events produced by the end user.
	SourceUser Source = "user"
	// SourceAgent identifies events produced by an agent.
	SourceAgent Source = "agent"
	// SourceEnvironment identifies events produced by the sandbox/runtime.
	SourceEnvironment Source = "environment"
)

// Unassigned is the id carried by an Event before the EventStream assigns it.
const Unassigned int64 = -1

// MalformedEventError is returned when deserializing an event whose tag is
// not registered, or whose args don't decode into the registered variant.
var MalformedEventError = errors.New("event: malformed event")

// IsAction reports whether e carries an Action.
func (e Event) IsAction() bool { return e.Action != nil }

// IsObservation reports whether e carries an Observation.
func (e Event) IsObservation() bool { return e.Observation != nil }

// Tag returns the variant's stable discriminator, or "" if neither Action
// nor Observation is set.
func (e Event) Tag() string {
	switch {
	case e.Action != nil:
		return e.Action.ActionTag()
	case e.Observation != nil:
		return e.Observation.ObservationTag()
	default:
		return ""
	}
}

// IsNull reports whether e carries the Null action or Null observation
// variant. ShortTermHistory hides these from ordinary iteration.
func (e Event) IsNull() bool {
	if a, ok := e.Action.(*NullAction); ok && a != nil {
		return true
	}
	if o, ok := e.Observation.(*NullObservation); ok && o != nil {
		return true
	}
	return false
}
