// Package controller implements AgentController, the step-loop owner: it
// subscribes to an EventStream, mutates a State, invokes an Agent's Step,
// applies iteration/cost budgets with traffic-control pause-resume
// semantics, and manages a chain of delegate controllers.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/agentcore/agent"
	"github.com/agentcore/agentcore/config"
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/state"
	"github.com/agentcore/agentcore/tasktree"
	"github.com/agentcore/agentcore/telemetry"
)

// subscriberName is the fixed name every controller registers under. A
// delegate registers with append=true, reusing its parent's name, since the
// spec's shared-stream design means the same logical "agent controller"
// role is served at every delegate level.
const subscriberName = "agent_controller"

// trafficControlReminder is appended to budget-exceeded error messages, as
// a hint that the caller (a human or its UI) can explicitly resume.
const trafficControlReminder = "resume the task to continue, or start a new one"

// AgentController owns one State, one Agent, and a handle to one
// EventStream.
type AgentController struct {
	sid      string
	agent    agent.Agent
	stream   *eventstream.EventStream
	registry *agent.Registry

	maxBudgetPerTask *float64
	isDelegate       bool

	log     telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu                sync.Mutex
	state             *state.State
	pendingAction     event.Action
	pendingActionID   int64
	parent            *AgentController
	delegate          *AgentController
	lastLLMCost       float64
	delegateClassName string

	stopOnce sync.Once
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Option configures an AgentController at construction time.
type Option func(*AgentController)

// WithRegistry supplies the delegate agent-class registry start_delegate
// resolves against. Required if any agent in this controller's tree may
// emit an AgentDelegateAction.
func WithRegistry(r *agent.Registry) Option {
	return func(c *AgentController) { c.registry = r }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *AgentController) { c.log = l }
}

// WithMetrics overrides the default no-op OTEL metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *AgentController) { c.metrics = m }
}

// WithTracer overrides the default no-op tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *AgentController) { c.tracer = t }
}

// withParent marks c as a delegate of parent; used only by startDelegate.
func withParent(parent *AgentController) Option {
	return func(c *AgentController) { c.parent = parent }
}

// withDelegateClassName records the registry key a delegate was
// constructed under, so its parent can later validate its outputs
// against the same name's registered output schema.
func withDelegateClassName(name string) Option {
	return func(c *AgentController) { c.delegateClassName = name }
}

// New constructs an AgentController bound to stream, subscribing it as the
// demultiplexer for every event the stream carries. If initialState is nil,
// a fresh State is created from cfg.MaxIterations; otherwise initialState is
// adopted (e.g. restored from a prior session, or constructed by
// startDelegate for a child). isDelegate controls whether New spawns its own
// step loop (false) or expects its parent to drive _step directly (true).
func New(ctx context.Context, a agent.Agent, stream *eventstream.EventStream, cfg config.CoreConfig, initialState *state.State, isDelegate bool, opts ...Option) (*AgentController, error) {
	c := &AgentController{
		sid:              cfg.SID,
		agent:            a,
		stream:           stream,
		maxBudgetPerTask: cfg.MaxBudgetPerTask,
		isDelegate:       isDelegate,
		log:              telemetry.NoopLogger{},
		metrics:          telemetry.NoopMetrics{},
		tracer:           telemetry.NoopTracer{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := stream.Subscribe(subscriberName, subscriberFunc(c.onEvent), isDelegate); err != nil {
		return nil, fmt.Errorf("controller: subscribe: %w", err)
	}

	c.setInitialState(initialState, cfg.MaxIterations)

	if !isDelegate {
		loopCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.loopDone = make(chan struct{})
		tick := cfg.TickInterval
		if tick <= 0 {
			tick = 100 * time.Millisecond
		}
		go c.startStepLoop(loopCtx, tick)
	}

	return c, nil
}

type subscriberFunc func(ctx context.Context, evt event.Event) error

func (f subscriberFunc) HandleEvent(ctx context.Context, evt event.Event) error { return f(ctx, evt) }

// State returns the controller's owned State.
func (c *AgentController) State() *state.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AgentState returns the controller's current AgentState.
func (c *AgentController) AgentState() event.AgentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AgentState
}

// Close cancels the step loop, transitions to STOPPED, and unsubscribes
// from the stream. Close is idempotent. A delegate shares its parent's
// subscriberName registration (append-subscribed), so a delegate's own
// Close must not unsubscribe: doing so would remove every registration
// under that name, including the parent's (spec's on_event fan-out is
// keyed purely by name, not by registration instance) — the parent's own
// Close is what eventually clears the name entirely.
func (c *AgentController) Close(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		err = c.setAgentStateTo(ctx, event.AgentStateStopped)
		if !c.isDelegate {
			c.stream.Unsubscribe(subscriberName)
		}
	})
	return err
}

func (c *AgentController) startStepLoop(ctx context.Context, tick time.Duration) {
	defer close(c.loopDone)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	c.log.Info(ctx, "step loop starting", "sid", c.sid)
	for {
		select {
		case <-ctx.Done():
			c.log.Info(ctx, "step loop cancelled", "sid", c.sid)
			return
		case <-ticker.C:
			if err := c.step(ctx); err != nil {
				c.log.Error(ctx, "unexpected error in step loop", "sid", c.sid, "err", err)
				if reportErr := c.reportError(ctx, "there was an unexpected error while running the agent", err); reportErr != nil {
					c.log.Error(ctx, "failed to report error", "sid", c.sid, "err", reportErr)
				}
				_ = c.setAgentStateTo(ctx, event.AgentStateError)
				return
			}
		}
	}
}

// reportError sets State.LastError and appends an Error observation. It is
// used for both recoverable errors (fed back to the agent next step) and
// terminal ones (followed by an ERROR transition).
func (c *AgentController) reportError(ctx context.Context, message string, cause error) error {
	c.mu.Lock()
	full := message
	if cause != nil {
		full = fmt.Sprintf("%s: %v", message, cause)
	}
	c.state.LastError = full
	c.mu.Unlock()

	_, err := c.stream.Add(ctx, &event.ErrorObservation{Message: full}, event.SourceAgent)
	return err
}

// setInitialState adopts state (or creates a fresh one), binds its history
// to c.stream, and resolves StartID as "top of stream" when unset. New
// calls it once; restoring a previous session means passing the restored
// State to a fresh New call.
func (c *AgentController) setInitialState(s *state.State, maxIterations int) {
	if s == nil {
		s = state.New(maxIterations)
	}
	s.BindHistory(c.stream)
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// onEvent is the demultiplexer every appended event passes through (spec
// §4.9). A delegate reuses its parent's stream under the parent's own
// subscriber name (append-subscribed), so every event on the stream reaches
// both controllers' onEvent. While a delegate is active, the parent's own
// action handling is suppressed: the parent's _step is already driving the
// delegate via stepDelegate and reacts to the delegate's outcome there
// (spec §4.9 point 2) — without this gate, the delegate's own
// AgentFinishAction would also finish the parent, instead of letting
// "parent _step resumes" (spec §8 scenario 4).
func (c *AgentController) onEvent(ctx context.Context, evt event.Event) error {
	c.mu.Lock()
	hasDelegate := c.delegate != nil
	closedDelegate := c.isDelegate && c.state.AgentState == event.AgentStateStopped
	c.mu.Unlock()

	// A delegate closed by its parent keeps its shared registration (see
	// Close), so it ignores every event it still receives.
	if closedDelegate {
		return nil
	}

	if !hasDelegate {
		switch a := evt.Action.(type) {
		case *event.ChangeAgentStateAction:
			return c.setAgentStateTo(ctx, a.NewState)
		case *event.MessageAction:
			return c.onMessageAction(ctx, evt, a)
		case *event.AgentDelegateAction:
			return c.startDelegate(ctx, a)
		case *event.AddTaskAction:
			return c.onAddTask(a)
		case *event.ModifyTaskAction:
			return c.onModifyTask(a)
		case *event.AgentFinishAction:
			return c.onTerminalAction(ctx, a.Outputs, event.AgentStateFinished)
		case *event.AgentRejectAction:
			return c.onTerminalAction(ctx, a.Outputs, event.AgentStateRejected)
		}
	}

	if evt.Observation != nil {
		return c.onObservation(evt)
	}
	return nil
}

func (c *AgentController) onMessageAction(ctx context.Context, evt event.Event, a *event.MessageAction) error {
	switch evt.Source {
	case event.SourceUser:
		if c.AgentState() != event.AgentStateRunning {
			return c.setAgentStateTo(ctx, event.AgentStateRunning)
		}
	case event.SourceAgent:
		if a.WaitForResponse {
			return c.setAgentStateTo(ctx, event.AgentStateAwaitingUserInput)
		}
	}
	return nil
}

func (c *AgentController) onAddTask(a *event.AddTaskAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	seeds := make([]tasktree.Seed, 0, len(a.Subtasks))
	for _, s := range a.Subtasks {
		seeds = append(seeds, toTasktreeSeed(s))
	}
	return tasktree.AddSubtask(c.state.RootTask, a.ParentID, a.Goal, seeds)
}

func toTasktreeSeed(s event.TaskSeed) tasktree.Seed {
	out := tasktree.Seed{Goal: s.Goal}
	for _, child := range s.Subtasks {
		out.Subtasks = append(out.Subtasks, toTasktreeSeed(child))
	}
	return out
}

func (c *AgentController) onModifyTask(a *event.ModifyTaskAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tasktree.SetSubtaskState(c.state.RootTask, a.ID, a.State)
}

func (c *AgentController) onTerminalAction(ctx context.Context, outputs event.JSONObject, newState event.AgentState) error {
	c.mu.Lock()
	c.state.Outputs = outputs
	c.mu.Unlock()
	return c.setAgentStateTo(ctx, newState)
}

// onObservation implements the pending-action pairing and "no pending
// cause" fall-through described in spec §4.9's on_event table.
func (c *AgentController) onObservation(evt event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingAction != nil && evt.Cause != nil {
		// The pending action's id is implicitly the event id it was
		// appended under; callers compare by cause against that id via
		// pendingActionID, tracked alongside pendingAction.
		if *evt.Cause == c.pendingActionID {
			c.pendingAction = nil
			c.pendingActionID = 0
			return nil
		}
	}
	// Unsolicited observations (no matching pending cause) are not paired
	// with any action here, Null or otherwise; they are not dropped either:
	// they remain in the EventStream and are visible to ShortTermHistory.
	return nil
}
