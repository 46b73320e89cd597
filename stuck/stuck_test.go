package stuck_test

import (
	"context"
	"testing"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/eventstream"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/history"
	"github.com/agentcore/agentcore/stuck"
	"github.com/agentcore/agentcore/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(t *testing.T) (*eventstream.EventStream, *history.ShortTermHistory) {
	t.Helper()
	s, err := eventstream.Open(context.Background(), "sess-stuck", filestore.NewMemory(), telemetry.NoopLogger{})
	require.NoError(t, err)
	return s, history.New(s, 0, -1)
}

func TestNotStuckOnFreshHistory(t *testing.T) {
	_, h := newHistory(t)
	assert.False(t, stuck.IsStuck(h, nil))
}

func TestRepeatingActionObservationIsStuck(t *testing.T) {
	ctx := context.Background()
	s, h := newHistory(t)
	for i := 0; i < 4; i++ {
		id, err := s.Add(ctx, &event.CmdRunAction{Command: "echo hi"}, event.SourceAgent)
		require.NoError(t, err)
		_, err = s.AddObservation(ctx, &event.CmdOutputObservation{Content: "hi\n"}, event.SourceEnvironment, id)
		require.NoError(t, err)
	}
	assert.True(t, stuck.IsStuck(h, nil))
}

func TestActionErrorMonotoneIsStuck(t *testing.T) {
	ctx := context.Background()
	s, h := newHistory(t)
	for i := 0; i < 4; i++ {
		id, err := s.Add(ctx, &event.CmdRunAction{Command: "bad-cmd"}, event.SourceAgent)
		require.NoError(t, err)
		_, err = s.AddObservation(ctx, &event.ErrorObservation{Message: "distinct message"}, event.SourceEnvironment, id)
		require.NoError(t, err)
	}
	assert.True(t, stuck.IsStuck(h, nil))
}

func TestDistinctActionsNotStuck(t *testing.T) {
	ctx := context.Background()
	s, h := newHistory(t)
	cmds := []string{"ls", "pwd", "whoami", "date"}
	for _, c := range cmds {
		id, err := s.Add(ctx, &event.CmdRunAction{Command: c}, event.SourceAgent)
		require.NoError(t, err)
		_, err = s.AddObservation(ctx, &event.CmdOutputObservation{Content: c}, event.SourceEnvironment, id)
		require.NoError(t, err)
	}
	assert.False(t, stuck.IsStuck(h, nil))
}

func TestTwoStepPatternRepeatsIsStuck(t *testing.T) {
	ctx := context.Background()
	s, h := newHistory(t)
	for i := 0; i < 3; i++ {
		id, err := s.Add(ctx, &event.CmdRunAction{Command: "ls"}, event.SourceAgent)
		require.NoError(t, err)
		_, err = s.AddObservation(ctx, &event.CmdOutputObservation{Content: "file.txt\n"}, event.SourceEnvironment, id)
		require.NoError(t, err)

		id, err = s.Add(ctx, &event.CmdRunAction{Command: "cat file.txt"}, event.SourceAgent)
		require.NoError(t, err)
		_, err = s.AddObservation(ctx, &event.CmdOutputObservation{Content: "contents\n"}, event.SourceEnvironment, id)
		require.NoError(t, err)
	}
	assert.True(t, stuck.IsStuck(h, nil))
}

type stubDelegate struct{ stuck bool }

func (d stubDelegate) IsStuck() bool { return d.stuck }

func TestDelegateStuckIsRecursive(t *testing.T) {
	_, h := newHistory(t)
	assert.True(t, stuck.IsStuck(h, stubDelegate{stuck: true}))
	assert.False(t, stuck.IsStuck(h, stubDelegate{stuck: false}))
}
