// Package agent defines the Agent contract the controller drives, and a
// name-keyed registry controllers use to resolve delegate agent classes —
// the Go analogue of a class-level registry agents register themselves
// into, grounded on the name-based activity/workflow registration pattern
// used elsewhere in this codebase's runtime engine.
package agent

import (
	"context"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/state"
)

// Agent is the opaque, external collaborator the core drives. step must be
// deterministic with respect to the State snapshot it receives: the
// controller does not retry it unless Step returns one of the recognized
// error classes in package corerr (ErrMalformedAction, ErrNoAction,
// ErrResponse).
type Agent interface {
	// Name identifies the agent, e.g. for logging and delegate resolution.
	Name() string
	// Step produces the next action given the current state snapshot.
	Step(ctx context.Context, s *state.State) (event.Action, error)
	// Reset clears any internal agent state; called when the controller
	// reaches a terminal AgentState.
	Reset()
	// LLM returns the metrics source for this agent's underlying LLM
	// client. The controller reads Cost() after every Step and folds the
	// incremental spend into state.Metrics.
	LLM() LLMMetrics
}

// LLMMetrics exposes the running cost an agent's LLM client has
// accumulated, mirroring the cost side of a provider's token-usage
// reporting without this package needing to know which provider.
type LLMMetrics interface {
	// Cost returns the client's cumulative spend to date.
	Cost() float64
}

// NoopLLM is an LLMMetrics that never reports spend, for agents with no
// real LLM behind them (demo agents, test doubles).
type NoopLLM struct{}

// Cost always returns 0.
func (NoopLLM) Cost() float64 { return 0 }

// Constructor builds a fresh Agent instance for a delegate invocation.
type Constructor func() Agent

// Registry resolves agent names to constructors, the delegate-agent
// counterpart to the Go standard library's sql.Register pattern.
type Registry struct {
	constructors map[string]Constructor
	schemas      map[string]Schemas
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register associates name with a Constructor. Re-registering an existing
// name overwrites it.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Lookup returns the Constructor registered under name, or false if none.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	ctor, ok := r.constructors[name]
	return ctor, ok
}
