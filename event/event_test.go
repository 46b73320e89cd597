package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/agentcore/agentcore/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	cause := int64(7)
	original := event.Event{
		ID:        8,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:    event.SourceEnvironment,
		Cause:     &cause,
		Observation: &event.CmdOutputObservation{
			Command:  "ls",
			Content:  "foo\n",
			ExitCode: 0,
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded event.Event
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, original.Source, decoded.Source)
	require.NotNil(t, decoded.Cause)
	assert.Equal(t, *original.Cause, *decoded.Cause)
	assert.Equal(t, original.Observation, decoded.Observation)

	raw2, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(raw2))
}

func TestEventUnmarshalUnknownTagIsMalformed(t *testing.T) {
	raw := []byte(`{"id":0,"timestamp":"2026-01-02T03:04:05Z","source":"agent","action":"teleport","args":{}}`)

	var decoded event.Event
	err := decoded.UnmarshalJSON(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, event.MalformedEventError)
}

func TestEventUnmarshalIgnoresUnknownArgsFields(t *testing.T) {
	raw := []byte(`{"id":0,"timestamp":"2026-01-02T03:04:05Z","source":"user","action":"message","args":{"content":"hi","wait_for_response":false,"future_field":"ignored"}}`)

	var decoded event.Event
	require.NoError(t, decoded.UnmarshalJSON(raw))

	msg, ok := decoded.Action.(*event.MessageAction)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.WaitForResponse)
}

func TestNullActionSerializesWithEmptyArgs(t *testing.T) {
	raw, err := json.Marshal(event.Event{
		ID:     0,
		Source: event.SourceAgent,
		Action: &event.NullAction{},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":0,"timestamp":"0001-01-01T00:00:00Z","source":"agent","action":"null","args":{}}`, string(raw))
}

func TestIsActionIsObservation(t *testing.T) {
	e := event.Event{Action: &event.MessageAction{Content: "hi"}}
	assert.True(t, e.IsAction())
	assert.False(t, e.IsObservation())
	assert.Equal(t, event.TagMessageAction, e.Tag())
}

func TestIsNull(t *testing.T) {
	assert.True(t, event.Event{Action: &event.NullAction{}}.IsNull())
	assert.True(t, event.Event{Observation: &event.NullObservation{}}.IsNull())
	assert.False(t, event.Event{Action: &event.MessageAction{}}.IsNull())
}
