package controller

import (
	"context"
	"fmt"

	"github.com/agentcore/agentcore/config"
	"github.com/agentcore/agentcore/corerr"
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/state"
	"github.com/agentcore/agentcore/stuck"
)

// step executes once per tick while RUNNING (spec §4.9 _step).
func (c *AgentController) step(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "controller.step")
	defer span.End()

	if c.AgentState() != event.AgentStateRunning {
		return nil
	}

	c.mu.Lock()
	hasPending := c.pendingAction != nil
	del := c.delegate
	c.mu.Unlock()
	if hasPending {
		return nil
	}

	if del != nil {
		return c.stepDelegate(ctx, del)
	}

	paused, err := c.checkBudgets(ctx)
	if err != nil {
		return err
	}
	if paused {
		return nil
	}

	c.mu.Lock()
	c.state.Iteration++
	c.state.LocalIteration++
	c.mu.Unlock()
	c.metrics.IncCounter("controller.step.iteration", 1, "sid", c.sid)

	action, err := c.agent.Step(ctx, c.State())
	if err != nil {
		if corerr.Recoverable(err) {
			return c.reportError(ctx, err.Error(), nil)
		}
		return fmt.Errorf("%w: %v", corerr.ErrInternal, err)
	}
	if action == nil {
		return c.reportError(ctx, corerr.ErrNoAction.Error(), nil)
	}

	id, err := c.stream.Add(ctx, action, event.SourceAgent)
	if err != nil {
		return fmt.Errorf("%w: %v", corerr.ErrPersist, err)
	}

	if action.Runnable() {
		c.mu.Lock()
		c.pendingAction = action
		c.pendingActionID = id
		c.mu.Unlock()
	}

	c.updateMetricsFromLLM(ctx)

	if stuck.IsStuck(c.State().History, c.delegateStuckChecker()) {
		if err := c.reportError(ctx, "agent got stuck in a loop", nil); err != nil {
			return err
		}
		return c.setAgentStateTo(ctx, event.AgentStateError)
	}
	return nil
}

// updateMetricsFromLLM implements spec §4.9 _step step 7: fold the
// incremental cost the agent's LLM client has accumulated since the last
// tick into state.Metrics. The client reports a running total, so only the
// delta since lastLLMCost is added.
func (c *AgentController) updateMetricsFromLLM(ctx context.Context) {
	llm := c.agent.LLM()
	if llm == nil {
		return
	}
	total := llm.Cost()

	c.mu.Lock()
	delta := total - c.lastLLMCost
	c.lastLLMCost = total
	acc := c.state.Metrics
	c.mu.Unlock()

	if delta <= 0 {
		return
	}
	if err := acc.Add(delta); err != nil {
		c.log.Warn(ctx, "failed to record LLM cost", "sid", c.sid, "err", err)
		return
	}
	c.metrics.RecordGauge("controller.accumulated_cost", acc.Get(), "sid", c.sid)
}

// delegateStuckChecker adapts the controller's current delegate, if any, to
// stuck.Delegate, honoring the nil case explicitly (IsStuck(h, nil) is
// the happy path with no delegate).
func (c *AgentController) delegateStuckChecker() stuck.Delegate {
	c.mu.Lock()
	d := c.delegate
	c.mu.Unlock()
	if d == nil {
		return nil
	}
	return d
}

// IsStuck reports whether this controller (recursively through any
// delegate) is in a stuck loop, satisfying stuck.Delegate for a parent's
// own IsStuck check.
func (c *AgentController) IsStuck() bool {
	return stuck.IsStuck(c.State().History, c.delegateStuckChecker())
}

// stepDelegate recurses into del._step, then handles the delegate's
// terminal states per spec §4.9 point 2.
func (c *AgentController) stepDelegate(ctx context.Context, del *AgentController) error {
	if err := del.step(ctx); err != nil {
		return err
	}
	switch del.AgentState() {
	case event.AgentStateError:
		_ = del.Close(ctx)
		c.mu.Lock()
		c.delegate = nil
		c.mu.Unlock()
		return c.reportError(ctx, "delegator agent encountered an error", nil)
	case event.AgentStateFinished, event.AgentStateRejected:
		outputs := del.State().Outputs
		startID, endID := del.State().StartID, del.State().History.EndID
		if endID < 0 {
			endID = del.stream.GetLatestEventID()
		}
		if c.registry != nil {
			if err := c.registry.ValidateOutputs(del.delegateClassName, outputs); err != nil {
				_ = del.Close(ctx)
				c.mu.Lock()
				c.delegate = nil
				c.mu.Unlock()
				return c.reportError(ctx, fmt.Sprintf("delegate %q outputs failed schema validation", del.delegateClassName), err)
			}
		}
		_ = del.Close(ctx)
		c.mu.Lock()
		c.delegate = nil
		c.mu.Unlock()
		_, err := c.stream.Add(ctx, &event.AgentDelegateObservation{
			Outputs:         outputs,
			EventRangeStart: startID,
			EventRangeEnd:   endID,
		}, event.SourceAgent)
		return err
	}
	return nil
}

// checkBudgets applies the iteration and cost gates in order, per spec
// §4.9 point 3. It returns paused=true when the step must do nothing else
// this tick because a budget gate just transitioned the controller to
// PAUSED.
func (c *AgentController) checkBudgets(ctx context.Context) (paused bool, err error) {
	c.mu.Lock()
	iteration, max := c.state.Iteration, c.state.MaxIterations
	traffic := c.state.TrafficControlState
	c.mu.Unlock()

	if iteration >= max {
		return c.gateBudget(ctx, traffic,
			fmt.Sprintf("agent reached maximum number of iterations, task paused. %s", trafficControlReminder))
	}

	if c.maxBudgetPerTask != nil {
		cost := c.State().Metrics.Get()
		if cost > *c.maxBudgetPerTask {
			return c.gateBudget(ctx, traffic,
				fmt.Sprintf("task budget exceeded. current cost: %.2f, max budget: %.2f, task paused. %s",
					cost, *c.maxBudgetPerTask, trafficControlReminder))
		}
	}
	return false, nil
}

func (c *AgentController) gateBudget(ctx context.Context, traffic event.TrafficControlState, message string) (bool, error) {
	if traffic == event.TrafficControlPaused {
		c.mu.Lock()
		c.state.TrafficControlState = event.TrafficControlNormal
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Lock()
	c.state.TrafficControlState = event.TrafficControlThrottling
	c.mu.Unlock()
	if err := c.reportError(ctx, message, nil); err != nil {
		return true, err
	}
	return true, c.setAgentStateTo(ctx, event.AgentStatePaused)
}

// setAgentStateTo implements spec §4.9 set_agent_state_to.
func (c *AgentController) setAgentStateTo(ctx context.Context, newState event.AgentState) error {
	c.mu.Lock()
	current := c.state.AgentState
	if newState == current {
		c.mu.Unlock()
		return nil
	}
	if current == event.AgentStatePaused && newState == event.AgentStateRunning &&
		c.state.TrafficControlState == event.TrafficControlThrottling {
		c.state.TrafficControlState = event.TrafficControlPaused
	}
	c.state.AgentState = newState
	terminal := newState == event.AgentStateStopped || newState == event.AgentStateError
	resumeState := c.state.ResumeState
	c.mu.Unlock()

	c.log.Debug(ctx, "agent state transition", "sid", c.sid, "from", current, "to", newState)

	if terminal {
		c.agent.Reset()
	}

	if _, err := c.stream.Add(ctx, &event.AgentStateChangedObservation{AgentState: newState}, event.SourceAgent); err != nil {
		return err
	}

	if newState == event.AgentStateInit && resumeState != "" {
		c.mu.Lock()
		c.state.ResumeState = ""
		c.mu.Unlock()
		return c.setAgentStateTo(ctx, resumeState)
	}
	return nil
}

// startDelegate implements spec §4.9 start_delegate.
func (c *AgentController) startDelegate(ctx context.Context, a *event.AgentDelegateAction) error {
	if c.registry == nil {
		return fmt.Errorf("controller: %w: no delegate registry configured", corerr.ErrInternal)
	}
	ctor, ok := c.registry.Lookup(a.Agent)
	if !ok {
		return fmt.Errorf("controller: %w: unknown delegate agent %q", corerr.ErrMalformedAction, a.Agent)
	}
	if err := c.registry.ValidateInputs(a.Agent, a.Inputs); err != nil {
		return fmt.Errorf("controller: %w: delegate inputs: %v", corerr.ErrMalformedAction, err)
	}

	parentState := c.State()
	childState := state.New(parentState.MaxIterations)
	childState.Inputs = a.Inputs
	childState.DelegateLevel = parentState.DelegateLevel + 1
	childState.Metrics = parentState.Metrics // shared by reference across the delegation tree

	childCfg := config.CoreConfig{
		SID:              c.sid + "-delegate",
		MaxIterations:    parentState.MaxIterations,
		MaxBudgetPerTask: c.maxBudgetPerTask,
	}

	child, err := New(ctx, ctor(), c.stream, childCfg, childState, true,
		WithRegistry(c.registry), WithLogger(c.log), WithMetrics(c.metrics), WithTracer(c.tracer),
		withParent(c), withDelegateClassName(a.Agent))
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.delegate = child
	c.mu.Unlock()

	return child.setAgentStateTo(ctx, event.AgentStateRunning)
}
