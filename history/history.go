// Package history implements ShortTermHistory: a filtered, windowed view
// over an EventStream — not a container — that yields the (action,
// observation) pairs and flattened event sequence an agent's step
// consumes.
package history

import (
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
)

// Pair is a runnable action matched with its answering observation, or
// event.NullObservation if none arrived yet / the action was non-runnable.
type Pair struct {
	Action      event.Action
	Observation event.Observation
}

// ShortTermHistory is a view over [StartID, EndID] of an EventStream.
// EndID == -1 means "follow the tip": reads always extend to the stream's
// latest id at call time.
type ShortTermHistory struct {
	stream  *eventstream.EventStream
	StartID int64
	EndID   int64

	// lastSummarizedEventID masks events with id <= this value from ordinary
	// iteration once a condenser injects an AgentSummarize-style boundary.
	// Nothing is deleted from the underlying stream; this is a read-time
	// filter only.
	lastSummarizedEventID int64
}

// New binds a ShortTermHistory to stream over [startID, endID].
func New(stream *eventstream.EventStream, startID, endID int64) *ShortTermHistory {
	return &ShortTermHistory{stream: stream, StartID: startID, EndID: endID, lastSummarizedEventID: -1}
}

// SetSummarizationBoundary hides events with id <= lastID from ordinary
// iteration; it does not touch the EndID to which the view still reads.
func (h *ShortTermHistory) SetSummarizationBoundary(lastID int64) {
	h.lastSummarizedEventID = lastID
}

func (h *ShortTermHistory) isVisible(evt event.Event) bool {
	if evt.IsNull() {
		return false
	}
	if _, ok := evt.Action.(*event.ChangeAgentStateAction); ok {
		return false
	}
	if evt.ID <= h.lastSummarizedEventID {
		return false
	}
	return true
}

// GetEvents returns every visible event in the window, in ascending id
// order unless reverse is true.
func (h *ShortTermHistory) GetEvents(reverse bool) []event.Event {
	return h.stream.GetEvents(h.StartID, h.EndID, h.isVisible, reverse)
}

// GetLastEvents returns the tail of up to n visible events, oldest first.
// For n <= 0 it returns every visible event.
func (h *ShortTermHistory) GetLastEvents(n int) []event.Event {
	all := h.GetEvents(false)
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// GetLastAction returns the most recent action in the window, or nil.
func (h *ShortTermHistory) GetLastAction() event.Action {
	events := h.GetEvents(true)
	for _, e := range events {
		if e.Action != nil {
			return e.Action
		}
	}
	return nil
}

// GetLastObservation returns the most recent observation in the window, or nil.
func (h *ShortTermHistory) GetLastObservation() event.Observation {
	events := h.GetEvents(true)
	for _, e := range events {
		if e.Observation != nil {
			return e.Observation
		}
	}
	return nil
}

// GetLastUserMessage returns the content of the most recent user message, or "".
func (h *ShortTermHistory) GetLastUserMessage() string {
	events := h.GetEvents(true)
	for _, e := range events {
		if e.Source != event.SourceUser {
			continue
		}
		if m, ok := e.Action.(*event.MessageAction); ok {
			return m.Content
		}
	}
	return ""
}

// GetLastAgentMessage returns the content of the most recent agent message, or "".
func (h *ShortTermHistory) GetLastAgentMessage() string {
	events := h.GetEvents(true)
	for _, e := range events {
		if e.Source != event.SourceAgent {
			continue
		}
		if m, ok := e.Action.(*event.MessageAction); ok {
			return m.Content
		}
	}
	return ""
}

// CompatibilityForEvalHistoryPairs emits, for each runnable action in the
// window, a Pair with its matching observation (matched by cause) or
// event.NullObservation if none has arrived; non-runnable actions pair with
// event.NullObservation unconditionally, matching the reference agent's
// evaluation-harness history shape.
func (h *ShortTermHistory) CompatibilityForEvalHistoryPairs() []Pair {
	events := h.GetEvents(false)

	observationsByCause := make(map[int64]event.Observation)
	for _, e := range events {
		if e.Observation != nil && e.Cause != nil {
			observationsByCause[*e.Cause] = e.Observation
		}
	}

	var pairs []Pair
	for _, e := range events {
		if e.Action == nil {
			continue
		}
		if !e.Action.Runnable() {
			pairs = append(pairs, Pair{Action: e.Action, Observation: &event.NullObservation{}})
			continue
		}
		obs, ok := observationsByCause[e.ID]
		if !ok {
			obs = &event.NullObservation{}
		}
		pairs = append(pairs, Pair{Action: e.Action, Observation: obs})
	}
	return pairs
}
