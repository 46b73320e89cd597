package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/agentcore/agent"
	"github.com/agentcore/agentcore/config"
	"github.com/agentcore/agentcore/controller"
	"github.com/agentcore/agentcore/corerr"
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/state"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAgent returns a fixed sequence of actions, one per Step call, and
// corerr.ErrNoAction once exhausted.
type scriptedAgent struct {
	name string

	mu      sync.Mutex
	actions []event.Action
	idx     int
	resets  int
}

func (a *scriptedAgent) Name() string { return a.name }

func (a *scriptedAgent) Step(context.Context, *state.State) (event.Action, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.idx >= len(a.actions) {
		return nil, corerr.ErrNoAction
	}
	act := a.actions[a.idx]
	a.idx++
	return act, nil
}

func (a *scriptedAgent) Reset() {
	a.mu.Lock()
	a.resets++
	a.mu.Unlock()
}

func (a *scriptedAgent) LLM() agent.LLMMetrics { return agent.NoopLLM{} }

const fastTick = 5 * time.Millisecond

func newTestStream(t *testing.T, sid string) *eventstream.EventStream {
	t.Helper()
	s, err := eventstream.Open(context.Background(), sid, filestore.NewMemory(), telemetry.NoopLogger{})
	require.NoError(t, err)
	return s
}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	stream := newTestStream(t, "happy")
	a := &scriptedAgent{
		name: "root",
		actions: []event.Action{
			&event.MessageAction{Content: "hi", WaitForResponse: false},
			&event.AgentFinishAction{Outputs: event.JSONObject{"ok": true}},
		},
	}
	cfg := config.CoreConfig{SID: "happy", MaxIterations: 5, TickInterval: fastTick}
	c, err := controller.New(ctx, a, stream, cfg, nil, false)
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = stream.Add(ctx, &event.MessageAction{Content: "say hi"}, event.SourceUser)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.AgentState() == event.AgentStateFinished
	}, time.Second, fastTick)

	assert.Equal(t, event.JSONObject{"ok": true}, c.State().Outputs)

	tags := []string{}
	for _, e := range stream.GetEvents(0, -1, nil, false) {
		tags = append(tags, e.Tag())
	}
	assert.Contains(t, tags, event.TagMessageAction)
	assert.Contains(t, tags, event.TagAgentFinishAction)
	assert.Contains(t, tags, event.TagAgentStateChangedObservation)
}

func TestPendingActionPairing(t *testing.T) {
	ctx := context.Background()
	stream := newTestStream(t, "pending")
	a := &scriptedAgent{
		name: "root",
		actions: []event.Action{
			&event.CmdRunAction{Command: "ls"},
			&event.AgentFinishAction{Outputs: event.JSONObject{}},
		},
	}
	cfg := config.CoreConfig{SID: "pending", MaxIterations: 5, TickInterval: fastTick}
	c, err := controller.New(ctx, a, stream, cfg, nil, false)
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = stream.Add(ctx, &event.MessageAction{Content: "go"}, event.SourceUser)
	require.NoError(t, err)

	// Wait for the CmdRunAction to be appended.
	var cmdID int64 = -1
	require.Eventually(t, func() bool {
		for _, e := range stream.GetEvents(0, -1, nil, false) {
			if e.Tag() == event.TagCmdRunAction {
				cmdID = e.ID
				return true
			}
		}
		return false
	}, time.Second, fastTick)

	// The controller must not progress past the pending action: no
	// AgentFinish should appear yet.
	time.Sleep(20 * time.Millisecond)
	for _, e := range stream.GetEvents(0, -1, nil, false) {
		assert.NotEqual(t, event.TagAgentFinishAction, e.Tag(), "must not act while an action is pending")
	}

	_, err = stream.AddObservation(ctx, &event.CmdOutputObservation{Content: "foo\n"}, event.SourceEnvironment, cmdID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.AgentState() == event.AgentStateFinished
	}, time.Second, fastTick)
}

func TestIterationBudgetPausesWithThrottling(t *testing.T) {
	ctx := context.Background()
	stream := newTestStream(t, "budget")
	// Always returns a runnable CmdRun; a background subscriber always answers.
	a := &scriptedAgent{name: "root"}
	for i := 0; i < 10; i++ {
		a.actions = append(a.actions, &event.CmdRunAction{Command: "echo"})
	}
	require.NoError(t, stream.Subscribe("sandbox", eventstream.SubscriberFunc(func(c context.Context, e event.Event) error {
		if e.Action != nil && e.Action.Runnable() {
			// Respond off the append's own call stack: a real sandbox
			// answers asynchronously, well after the controller has
			// recorded the action as pending.
			go func(cause int64) {
				time.Sleep(fastTick)
				_, _ = stream.AddObservation(context.Background(), &event.CmdOutputObservation{Content: "ok"}, event.SourceEnvironment, cause)
			}(e.ID)
		}
		return nil
	}), false))

	cfg := config.CoreConfig{SID: "budget", MaxIterations: 2, TickInterval: fastTick}
	c, err := controller.New(ctx, a, stream, cfg, nil, false)
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = stream.Add(ctx, &event.MessageAction{Content: "go"}, event.SourceUser)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.AgentState() == event.AgentStatePaused
	}, time.Second, fastTick)
	assert.Equal(t, event.TrafficControlThrottling, c.State().TrafficControlState)
	assert.Contains(t, c.State().LastError, "maximum number of iterations")
}

func TestStuckLoopTransitionsToError(t *testing.T) {
	ctx := context.Background()
	stream := newTestStream(t, "stuck")
	a := &scriptedAgent{name: "root"}
	for i := 0; i < 10; i++ {
		a.actions = append(a.actions, &event.CmdRunAction{Command: "echo"})
	}
	require.NoError(t, stream.Subscribe("sandbox", eventstream.SubscriberFunc(func(c context.Context, e event.Event) error {
		if e.Action != nil && e.Action.Runnable() {
			go func(cause int64) {
				time.Sleep(fastTick)
				_, _ = stream.AddObservation(context.Background(), &event.CmdOutputObservation{Content: "same output"}, event.SourceEnvironment, cause)
			}(e.ID)
		}
		return nil
	}), false))

	cfg := config.CoreConfig{SID: "stuck", MaxIterations: 100, TickInterval: fastTick}
	c, err := controller.New(ctx, a, stream, cfg, nil, false)
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = stream.Add(ctx, &event.MessageAction{Content: "go"}, event.SourceUser)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.AgentState() == event.AgentStateError
	}, time.Second, fastTick)
	assert.Contains(t, c.State().LastError, "stuck")
}

func TestDelegation(t *testing.T) {
	ctx := context.Background()
	stream := newTestStream(t, "delegate")

	parent := &scriptedAgent{
		name: "root",
		actions: []event.Action{
			&event.AgentDelegateAction{Agent: "sub", Inputs: event.JSONObject{"q": "x"}},
		},
	}
	registry := agent.NewRegistry()
	registry.Register("sub", func() agent.Agent {
		return &scriptedAgent{
			name: "sub",
			actions: []event.Action{
				&event.AgentFinishAction{Outputs: event.JSONObject{"a": "y"}},
			},
		}
	})

	cfg := config.CoreConfig{SID: "delegate", MaxIterations: 5, TickInterval: fastTick}
	c, err := controller.New(ctx, parent, stream, cfg, nil, false, controller.WithRegistry(registry))
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = stream.Add(ctx, &event.MessageAction{Content: "delegate please"}, event.SourceUser)
	require.NoError(t, err)

	var delegateObsFound bool
	require.Eventually(t, func() bool {
		for _, e := range stream.GetEvents(0, -1, nil, false) {
			if obs, ok := e.Observation.(*event.AgentDelegateObservation); ok {
				delegateObsFound = true
				assert.Equal(t, "y", obs.Outputs["a"])
				return true
			}
		}
		return false
	}, time.Second, fastTick)
	assert.True(t, delegateObsFound)

	// The parent's own script is exhausted after its single
	// AgentDelegateAction, so once the delegate completes and the parent
	// resumes, its next tick reports-and-continues past corerr.ErrNoAction
	// rather than finishing — it must land on RUNNING, not FINISHED.
	require.Eventually(t, func() bool {
		return c.AgentState() == event.AgentStateRunning
	}, time.Second, fastTick, "parent must resume (not finish) after delegate completes")
}

func TestRestoreFromSession(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemory()
	stream1 := newTestStream(t, "restore")
	a := &scriptedAgent{
		name: "root",
		actions: []event.Action{
			&event.MessageAction{Content: "hi", WaitForResponse: false},
		},
	}
	cfg := config.CoreConfig{SID: "restore", MaxIterations: 5, TickInterval: fastTick}
	c1, err := controller.New(ctx, a, stream1, cfg, nil, false)
	require.NoError(t, err)

	_, err = stream1.Add(ctx, &event.MessageAction{Content: "go"}, event.SourceUser)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c1.State().Iteration >= 1
	}, time.Second, fastTick)

	require.NoError(t, c1.State().SaveToSession(ctx, "restore", store))
	require.NoError(t, c1.Close(ctx))

	restored, err := state.RestoreFromSession(ctx, "restore", store)
	require.NoError(t, err)
	assert.Equal(t, event.AgentStateLoading, restored.AgentState)
	assert.Equal(t, event.AgentStateRunning, restored.ResumeState)

	stream2, err := eventstream.Open(ctx, "restore", store, telemetry.NoopLogger{})
	require.NoError(t, err)
	c2, err := controller.New(ctx, &scriptedAgent{name: "root"}, stream2, cfg, restored, false)
	require.NoError(t, err)
	defer c2.Close(ctx)

	assert.Equal(t, restored.StartID, c2.State().History.StartID)
}
