// Package state defines State, the mutable bundle owned by one controller:
// iteration counters, a history window, shared metrics, the task tree, and
// the agent/traffic-control state machine positions, together with the
// explicit, JSON-based serialize/restore semantics that survive a restart.
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/history"
	"github.com/agentcore/agentcore/metrics"
	"github.com/agentcore/agentcore/tasktree"
)

// State is a mutable object associated with one subtask.
//
// A task is an end-to-end conversation between the system and the user,
// which might involve one or more inputs from the user. It starts with an
// initial input (typically a task statement) and ends with either an
// AgentFinish action initiated by the agent, or an error.
//
// A subtask is an end-to-end conversation between an agent and the user, or
// another agent. If a task is conducted by a single agent, it is also a
// subtask itself. Otherwise a task consists of multiple subtasks, each
// executed by one agent.
//
// State is mutable and associated with a subtask. Iteration and
// LocalIteration both count the steps taken by the controller that owns
// this State: a delegate starts from a fresh State with both at 0, and its
// steps are not added to its parent's counters. For example, consider a
// task from the user:
// "tell me how many GitHub stars the agentcore repo has", with a root agent
// that delegates browsing to a sub-agent:
//
//	-- TASK STARTS (SUBTASK 0 STARTS) --
//	DELEGATE_LEVEL 0, ITERATION 0, LOCAL_ITERATION 0
//	root agent: I should request help from the browsing agent
//
//	-- DELEGATE STARTS (SUBTASK 1 STARTS) --
//	DELEGATE_LEVEL 1, ITERATION 0, LOCAL_ITERATION 0
//	browsing agent: let me find the answer
//	DELEGATE_LEVEL 1, ITERATION 1, LOCAL_ITERATION 1
//	browsing agent: found it, conveying the result and finishing
//	-- DELEGATE ENDS (SUBTASK 1 ENDS) --
//
//	DELEGATE_LEVEL 0, ITERATION 1, LOCAL_ITERATION 1
//	root agent: got the answer, conveying the result and finishing
//	-- TASK ENDS (SUBTASK 0 ENDS) --
//
// Neither counter is shared across delegates; of the cost and step
// bookkeeping, only Metrics is shared by the whole delegation tree.
type State struct {
	RootTask *tasktree.Task

	// Iteration counts the steps of this State's controller; a delegate's
	// steps are counted in the delegate's own State, not here.
	Iteration int
	// LocalIteration counts steps within this (sub)task only.
	LocalIteration int
	// MaxIterations bounds Iteration while the agent is RUNNING.
	MaxIterations int

	History *history.ShortTermHistory

	Inputs  event.JSONObject
	Outputs event.JSONObject

	LastError string

	AgentState          event.AgentState
	ResumeState         event.AgentState
	TrafficControlState event.TrafficControlState

	// Metrics is shared by reference across the whole delegation tree.
	Metrics *metrics.Accumulator
	// LocalMetrics is local to this subtask.
	LocalMetrics *metrics.Accumulator

	// DelegateLevel is 0 for the root agent; each delegate increases it by one.
	DelegateLevel int

	// StartID/EndID track the range of events History reads. EndID == -1
	// means "follow the tip".
	StartID int64
	EndID   int64

	// AlmostStuck counts near-miss repetitions a controller may use to
	// pre-empt the hard StuckDetector trip with an earlier warning; the core
	// itself does not act on it beyond carrying it through serialization.
	AlmostStuck int
}

// New constructs a fresh State with the given budgets. DelegateLevel, Metrics
// sharing, and Inputs are the caller's responsibility (set directly, or via
// the controller's delegate constructor) since they depend on whether this
// is a root task or a delegate.
func New(maxIterations int) *State {
	return &State{
		RootTask:            tasktree.Root(),
		MaxIterations:       maxIterations,
		Inputs:              event.JSONObject{},
		Outputs:             event.JSONObject{},
		AgentState:          event.AgentStateLoading,
		TrafficControlState: event.TrafficControlNormal,
		Metrics:             &metrics.Accumulator{},
		LocalMetrics:        &metrics.Accumulator{},
		StartID:             -1,
		EndID:               -1,
	}
}

// BindHistory rebinds s.History to stream over [s.StartID, s.EndID],
// resolving StartID to stream's next id if it is still -1 (unassigned).
// set_initial_state in the controller calls this once a stream is known.
func (s *State) BindHistory(stream *eventstream.EventStream) {
	if s.StartID == -1 {
		s.StartID = stream.GetLatestEventID() + 1
	}
	s.History = history.New(stream, s.StartID, s.EndID)
}

// GetCurrentUserIntent scans the history from newest to oldest and returns
// the earliest user message that follows the most recent AgentFinish action
// with a user message after it. If there is no such AgentFinish, it returns
// the first user message in the history ("" if there is none).
func (s *State) GetCurrentUserIntent() string {
	var lastUserMessage string
	var found bool
	for _, e := range s.History.GetEvents(true) {
		if e.Source == event.SourceUser {
			if m, ok := e.Action.(*event.MessageAction); ok {
				lastUserMessage = m.Content
				found = true
			}
		} else if _, ok := e.Action.(*event.AgentFinishAction); ok {
			if found {
				return lastUserMessage
			}
		}
	}
	return lastUserMessage
}

// persisted is the JSON-serializable subset of State that survives a
// restart: iteration counters, agent/traffic-control state, delegate level,
// the history window bounds, inputs/outputs, the last error, and a metrics
// snapshot. The task tree and live history object are reconstructed
// separately (the tree from its own persisted form, the history by
// rebinding to the restored stream).
type persisted struct {
	RootTask            *tasktree.Task       `json:"root_task"`
	Iteration           int                  `json:"iteration"`
	LocalIteration      int                  `json:"local_iteration"`
	MaxIterations       int                  `json:"max_iterations"`
	Inputs              event.JSONObject     `json:"inputs"`
	Outputs             event.JSONObject     `json:"outputs"`
	LastError           string               `json:"last_error,omitempty"`
	AgentState          event.AgentState     `json:"agent_state"`
	ResumeState         event.AgentState     `json:"resume_state,omitempty"`
	TrafficControlState event.TrafficControlState `json:"traffic_control_state"`
	MetricsCost         float64              `json:"metrics_cost"`
	LocalMetricsCost    float64              `json:"local_metrics_cost"`
	DelegateLevel       int                  `json:"delegate_level"`
	StartID             int64                `json:"start_id"`
	EndID               int64                `json:"end_id"`
	AlmostStuck         int                  `json:"almost_stuck"`
}

// Serialize reduces History to its StartID/EndID pair and encodes the rest
// of State as JSON. The live History object itself is never serialized.
func (s *State) Serialize() ([]byte, error) {
	p := persisted{
		RootTask:            s.RootTask,
		Iteration:           s.Iteration,
		LocalIteration:      s.LocalIteration,
		MaxIterations:       s.MaxIterations,
		Inputs:              s.Inputs,
		Outputs:             s.Outputs,
		LastError:           s.LastError,
		AgentState:          s.AgentState,
		ResumeState:         s.ResumeState,
		TrafficControlState: s.TrafficControlState,
		DelegateLevel:       s.DelegateLevel,
		AlmostStuck:         s.AlmostStuck,
	}
	if s.History != nil {
		p.StartID, p.EndID = s.History.StartID, s.History.EndID
	} else {
		p.StartID, p.EndID = s.StartID, s.EndID
	}
	if s.Metrics != nil {
		p.MetricsCost = s.Metrics.Get()
	}
	if s.LocalMetrics != nil {
		p.LocalMetricsCost = s.LocalMetrics.Get()
	}
	return json.Marshal(p)
}

// Deserialize decodes data produced by Serialize. History is not rebuilt;
// call BindHistory with the restored stream afterward. Per spec §6 restore
// rules: ResumeState becomes AgentState if AgentState was resumable, else
// empty; LastError is cleared; AgentState is forced to LOADING.
func Deserialize(data []byte) (*State, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("state: deserialize: %w", err)
	}
	s := &State{
		RootTask:            p.RootTask,
		Iteration:           p.Iteration,
		LocalIteration:      p.LocalIteration,
		MaxIterations:       p.MaxIterations,
		Inputs:              p.Inputs,
		Outputs:             p.Outputs,
		TrafficControlState: p.TrafficControlState,
		DelegateLevel:       p.DelegateLevel,
		StartID:             p.StartID,
		EndID:               p.EndID,
		AlmostStuck:         p.AlmostStuck,
		Metrics:             &metrics.Accumulator{},
		LocalMetrics:        &metrics.Accumulator{},
	}
	if s.RootTask == nil {
		s.RootTask = tasktree.Root()
	}
	if err := s.Metrics.Add(p.MetricsCost); err != nil {
		return nil, fmt.Errorf("state: deserialize: %w", err)
	}
	if err := s.LocalMetrics.Add(p.LocalMetricsCost); err != nil {
		return nil, fmt.Errorf("state: deserialize: %w", err)
	}

	if p.AgentState.Resumable() {
		s.ResumeState = p.AgentState
	}
	s.LastError = ""
	s.AgentState = event.AgentStateLoading
	return s, nil
}

// sessionStatePath is the FileStore path for a session's persisted State.
func sessionStatePath(sid string) string {
	return fmt.Sprintf("sessions/%s/agent_state.json", sid)
}

// SaveToSession serializes s and writes it to store under sid.
func (s *State) SaveToSession(ctx context.Context, sid string, store filestore.FileStore) error {
	data, err := s.Serialize()
	if err != nil {
		return err
	}
	return store.Write(ctx, sessionStatePath(sid), data)
}

// RestoreFromSession reads and deserializes the State previously saved for
// sid.
func RestoreFromSession(ctx context.Context, sid string, store filestore.FileStore) (*State, error) {
	data, err := store.Read(ctx, sessionStatePath(sid))
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}
