package main

import (
	"context"

	"github.com/agentcore/agentcore/agent"
	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/state"
)

// echoAgent is a minimal stand-in for a real reasoning agent: on its first
// step it replies with a message, and on the next it finishes the task.
// Real agent implementations plug into the same agent.Agent interface from
// outside this module.
type echoAgent struct {
	stepped bool
}

func (a *echoAgent) Name() string { return "echo" }

func (a *echoAgent) Step(_ context.Context, s *state.State) (event.Action, error) {
	if !a.stepped {
		a.stepped = true
		return &event.MessageAction{Content: "working on it: " + s.GetCurrentUserIntent()}, nil
	}
	return &event.AgentFinishAction{Outputs: event.JSONObject{"summary": "done"}}, nil
}

func (a *echoAgent) Reset() { a.stepped = false }

// LLM reports no cost: echoAgent has no real LLM client behind it.
func (a *echoAgent) LLM() agent.LLMMetrics { return agent.NoopLLM{} }
