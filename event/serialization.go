package event

import (
	"encoding/json"
	"fmt"
)

// actionRegistry and observationRegistry map a wire tag to a constructor for
// the zero value of its variant. Registered at package init for the builtin
// variants; RegisterAction/RegisterObservation let callers outside this
// package add their own, mirroring the teacher's name-based
// RegisterActivity/RegisterWorkflow registration pattern.
var (
	actionRegistry      = map[string]func() Action{}
	observationRegistry = map[string]func() Observation{}
)

func init() {
	RegisterAction(TagMessageAction, func() Action { return &MessageAction{} })
	RegisterAction(TagCmdRunAction, func() Action { return &CmdRunAction{} })
	RegisterAction(TagFileReadAction, func() Action { return &FileReadAction{} })
	RegisterAction(TagFileWriteAction, func() Action { return &FileWriteAction{} })
	RegisterAction(TagBrowseInteractiveAction, func() Action { return &BrowseInteractiveAction{} })
	RegisterAction(TagIPythonRunCellAction, func() Action { return &IPythonRunCellAction{} })
	RegisterAction(TagAgentDelegateAction, func() Action { return &AgentDelegateAction{} })
	RegisterAction(TagAgentFinishAction, func() Action { return &AgentFinishAction{} })
	RegisterAction(TagAgentRejectAction, func() Action { return &AgentRejectAction{} })
	RegisterAction(TagAddTaskAction, func() Action { return &AddTaskAction{} })
	RegisterAction(TagModifyTaskAction, func() Action { return &ModifyTaskAction{} })
	RegisterAction(TagChangeAgentStateAction, func() Action { return &ChangeAgentStateAction{} })
	RegisterAction(TagNullAction, func() Action { return &NullAction{} })

	RegisterObservation(TagCmdOutputObservation, func() Observation { return &CmdOutputObservation{} })
	RegisterObservation(TagFileReadObservation, func() Observation { return &FileReadObservation{} })
	RegisterObservation(TagFileWriteObservation, func() Observation { return &FileWriteObservation{} })
	RegisterObservation(TagBrowserOutputObservation, func() Observation { return &BrowserOutputObservation{} })
	RegisterObservation(TagAgentDelegateObservation, func() Observation { return &AgentDelegateObservation{} })
	RegisterObservation(TagAgentStateChangedObservation, func() Observation { return &AgentStateChangedObservation{} })
	RegisterObservation(TagErrorObservation, func() Observation { return &ErrorObservation{} })
	RegisterObservation(TagNullObservation, func() Observation { return &NullObservation{} })
}

// RegisterAction adds tag to the action variant registry. Re-registering an
// existing tag overwrites it; this lets a caller shadow a builtin variant in
// tests.
func RegisterAction(tag string, zero func() Action) {
	actionRegistry[tag] = zero
}

// RegisterObservation adds tag to the observation variant registry.
func RegisterObservation(tag string, zero func() Observation) {
	observationRegistry[tag] = zero
}

// wireEvent is the JSON-on-the-wire shape described in spec §4.2/§6:
// { id, timestamp, source, cause?, action|observation: <tag>, args: {...} }.
type wireEvent struct {
	ID          int64           `json:"id"`
	Timestamp   string          `json:"timestamp"`
	Source      Source          `json:"source"`
	Cause       *int64          `json:"cause,omitempty"`
	Action      string          `json:"action,omitempty"`
	Observation string          `json:"observation,omitempty"`
	Args        json.RawMessage `json:"args"`
}

// MarshalJSON implements the wire shape for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(timeLayout),
		Source:    e.Source,
		Cause:     e.Cause,
	}
	var args any
	switch {
	case e.Action != nil:
		w.Action = e.Action.ActionTag()
		args = e.Action
	case e.Observation != nil:
		w.Observation = e.Observation.ObservationTag()
		args = e.Observation
	default:
		return nil, fmt.Errorf("event: %w: neither action nor observation set", MalformedEventError)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	w.Args = raw
	return json.Marshal(w)
}

// UnmarshalJSON implements the wire shape for Event. Unknown tags fail with
// MalformedEventError; unrecognized fields within args are silently ignored
// by encoding/json, giving forward compatibility for free.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("event: %w: %v", MalformedEventError, err)
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return fmt.Errorf("event: %w: %v", MalformedEventError, err)
	}
	e.ID = w.ID
	e.Timestamp = ts
	e.Source = w.Source
	e.Cause = w.Cause
	e.Action = nil
	e.Observation = nil

	switch {
	case w.Action != "":
		zero, ok := actionRegistry[w.Action]
		if !ok {
			return fmt.Errorf("event: %w: unknown action tag %q", MalformedEventError, w.Action)
		}
		a := zero()
		if len(w.Args) > 0 {
			if err := json.Unmarshal(w.Args, a); err != nil {
				return fmt.Errorf("event: %w: %v", MalformedEventError, err)
			}
		}
		e.Action = a
	case w.Observation != "":
		zero, ok := observationRegistry[w.Observation]
		if !ok {
			return fmt.Errorf("event: %w: unknown observation tag %q", MalformedEventError, w.Observation)
		}
		o := zero()
		if len(w.Args) > 0 {
			if err := json.Unmarshal(w.Args, o); err != nil {
				return fmt.Errorf("event: %w: %v", MalformedEventError, err)
			}
		}
		e.Observation = o
	default:
		return fmt.Errorf("event: %w: neither action nor observation tag present", MalformedEventError)
	}
	return nil
}
