// Package stuck implements StuckDetector: a pure predicate over recent
// history that flags pathological repetition so the controller can end a
// looping task with ERROR rather than burn its whole iteration budget.
package stuck

import (
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/history"
)

// Delegate is the minimal surface StuckDetector needs from a controller's
// current delegate to check condition 4 (recursive delegate-stuck). It is
// satisfied by *controller.AgentController without this package importing
// controller, avoiding an import cycle.
type Delegate interface {
	IsStuck() bool
}

// windowSize is how many trailing raw events are fetched before pairing.
// Condition 3 needs the last 6 (action, observation) pairs, and pairing is
// 1:1 when the window is alternating action/observation as a stuck loop
// always is, so the raw-event window must be twice that: 12.
const windowSize = 12

// IsStuck reports whether h's recent window shows one of the four
// pathological patterns from spec §4.7. delegate may be nil.
func IsStuck(h *history.ShortTermHistory, delegate Delegate) bool {
	if delegate != nil && delegate.IsStuck() {
		return true
	}

	events := h.GetLastEvents(windowSize)
	pairs := actionObservationPairs(events)

	if repeatingActionObservation(pairs) {
		return true
	}
	if actionErrorMonotone(pairs) {
		return true
	}
	if twoStepPatternRepeats(pairs) {
		return true
	}
	return false
}

type pair struct {
	action      event.Action
	observation event.Observation
}

// actionObservationPairs walks events in order, pairing each action with
// the next observation that follows it in the window.
func actionObservationPairs(events []event.Event) []pair {
	var pairs []pair
	var pendingAction event.Action
	for _, e := range events {
		switch {
		case e.Action != nil:
			pendingAction = e.Action
		case e.Observation != nil && pendingAction != nil:
			pairs = append(pairs, pair{action: pendingAction, observation: e.Observation})
			pendingAction = nil
		}
	}
	return pairs
}

// repeatingActionObservation is condition 1: the last 4 (action,
// observation) pairs are element-wise equal, ignoring ids/timestamps.
func repeatingActionObservation(pairs []pair) bool {
	if len(pairs) < 4 {
		return false
	}
	last4 := pairs[len(pairs)-4:]
	first := last4[0]
	for _, p := range last4[1:] {
		if !actionsEqual(p.action, first.action) || !observationsEqual(p.observation, first.observation) {
			return false
		}
	}
	return true
}

// actionErrorMonotone is condition 2: the last 4 actions are equal and each
// is followed by an Error observation (messages may differ).
func actionErrorMonotone(pairs []pair) bool {
	if len(pairs) < 4 {
		return false
	}
	last4 := pairs[len(pairs)-4:]
	first := last4[0]
	for _, p := range last4 {
		if !actionsEqual(p.action, first.action) {
			return false
		}
		if _, isErr := p.observation.(*event.ErrorObservation); !isErr {
			return false
		}
	}
	return true
}

// twoStepPatternRepeats is condition 3: among the last 6 (action,
// observation) pairs, a 2-step pattern [A1,O1,A2,O2] repeats three times
// with A1 != A2. Operates over the same pairs conditions 1 and 2 use,
// rather than raw events, so it needs only as many pairs as the pattern
// actually spans.
func twoStepPatternRepeats(pairs []pair) bool {
	if len(pairs) < 6 {
		return false
	}
	last6 := pairs[len(pairs)-6:]
	a1, o1 := last6[0].action, last6[0].observation
	a2, o2 := last6[1].action, last6[1].observation
	if actionsEqual(a1, a2) {
		return false
	}
	for i := 0; i < 3; i++ {
		base := i * 2
		if !actionsEqual(last6[base].action, a1) || !observationsEqual(last6[base].observation, o1) {
			return false
		}
		if !actionsEqual(last6[base+1].action, a2) || !observationsEqual(last6[base+1].observation, o2) {
			return false
		}
	}
	return true
}

// actionsEqual compares tag and semantic payload only, ignoring any
// ids/timestamps (actions never carry them directly, but this keeps the
// comparison explicit and centralized).
func actionsEqual(a, b event.Action) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ActionTag() != b.ActionTag() {
		return false
	}
	return deepEqualVariant(a, b)
}

func observationsEqual(a, b event.Observation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ObservationTag() != b.ObservationTag() {
		return false
	}
	return deepEqualVariant(a, b)
}
