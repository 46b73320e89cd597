package event

// AgentState is the controller's state machine position. It is part of the
// data model (not merely controller-internal) because it is carried as the
// payload of the ChangeAgentState action and the AgentStateChanged
// observation.
type AgentState string

const (
	AgentStateLoading            AgentState = "loading"
	AgentStateInit               AgentState = "init"
	AgentStateRunning            AgentState = "running"
	AgentStatePaused             AgentState = "paused"
	AgentStateAwaitingUserInput  AgentState = "awaiting_user_input"
	AgentStateFinished           AgentState = "finished"
	AgentStateRejected           AgentState = "rejected"
	AgentStateError              AgentState = "error"
	AgentStateStopped            AgentState = "stopped"
)

// TrafficControlState gates budget-triggered pause/resume.
type TrafficControlState string

const (
	TrafficControlNormal     TrafficControlState = "normal"
	TrafficControlThrottling TrafficControlState = "throttling"
	TrafficControlPaused     TrafficControlState = "paused"
)

// Resumable reports whether s is one of the states a restored session may
// resume into (spec §6: RUNNING, PAUSED, AWAITING_USER_INPUT, FINISHED).
func (s AgentState) Resumable() bool {
	switch s {
	case AgentStateRunning, AgentStatePaused, AgentStateAwaitingUserInput, AgentStateFinished:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is an end state of a task: FINISHED, REJECTED,
// ERROR or STOPPED. The step loop takes no steps in these states, but they
// are not final: a user message moves a controller that is not RUNNING
// back to RUNNING.
func (s AgentState) Terminal() bool {
	switch s {
	case AgentStateFinished, AgentStateRejected, AgentStateError, AgentStateStopped:
		return true
	default:
		return false
	}
}
