package event

// Observation tags, the stable discriminators used on the wire and in the
// variant registry.
const (
	TagCmdOutputObservation          = "run"
	TagFileReadObservation           = "read"
	TagFileWriteObservation          = "write"
	TagBrowserOutputObservation      = "browse"
	TagAgentDelegateObservation      = "delegate"
	TagAgentStateChangedObservation  = "agent_state_changed"
	TagErrorObservation              = "error"
	TagNullObservation               = "null"
)

type (
	// CmdOutputObservation is the result of a CmdRunAction.
	CmdOutputObservation struct {
		Command  string `json:"command"`
		Content  string `json:"content"`
		ExitCode int    `json:"exit_code"`
	}

	// FileReadObservation is the result of a FileReadAction.
	FileReadObservation struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}

	// FileWriteObservation is the result of a FileWriteAction.
	FileWriteObservation struct {
		Path string `json:"path"`
	}

	// BrowserOutputObservation is the result of a BrowseInteractiveAction.
	BrowserOutputObservation struct {
		URL     string `json:"url"`
		Content string `json:"content"`
	}

	// AgentDelegateObservation reports a completed delegate's outputs to the
	// parent controller.
	AgentDelegateObservation struct {
		Outputs JSONObject `json:"outputs"`
		// EventRange names the child's [start_id, end_id] span in the shared
		// stream, so external tooling can reconstruct the delegate's full
		// history without a separate stream per controller.
		EventRangeStart int64 `json:"event_range_start"`
		EventRangeEnd   int64 `json:"event_range_end"`
	}

	// AgentStateChangedObservation reports a controller state transition.
	AgentStateChangedObservation struct {
		AgentState AgentState `json:"agent_state"`
	}

	// ErrorObservation reports a recoverable or terminal error. Message is
	// the single line surfaced to the agent on its next step; it mirrors
	// State.LastError at the time it was appended.
	ErrorObservation struct {
		Message string `json:"message"`
	}

	// NullObservation pairs with non-runnable actions and with unsolicited
	// observations lacking a pending cause.
	NullObservation struct{}
)

func (o *CmdOutputObservation) ObservationTag() string         { return TagCmdOutputObservation }
func (o *FileReadObservation) ObservationTag() string           { return TagFileReadObservation }
func (o *FileWriteObservation) ObservationTag() string          { return TagFileWriteObservation }
func (o *BrowserOutputObservation) ObservationTag() string      { return TagBrowserOutputObservation }
func (o *AgentDelegateObservation) ObservationTag() string      { return TagAgentDelegateObservation }
func (o *AgentStateChangedObservation) ObservationTag() string  { return TagAgentStateChangedObservation }
func (o *ErrorObservation) ObservationTag() string              { return TagErrorObservation }
func (o *NullObservation) ObservationTag() string                { return TagNullObservation }
