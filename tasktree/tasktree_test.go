package tasktree_test

import (
	"testing"

	"github.com/agentcore/agentcore/corerr"
	"github.com/agentcore/agentcore/tasktree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *tasktree.Task {
	t.Helper()
	root := tasktree.Root()
	require.NoError(t, tasktree.AddSubtask(root, "", "fix the bug", nil))
	require.NoError(t, tasktree.AddSubtask(root, "0", "reproduce", nil))
	require.NoError(t, tasktree.AddSubtask(root, "0", "patch", nil))
	return root
}

func TestDottedPathIDs(t *testing.T) {
	root := buildSample(t)
	task0, err := tasktree.GetTaskByID(root, "0")
	require.NoError(t, err)
	assert.Equal(t, "0", task0.ID)
	assert.Equal(t, "fix the bug", task0.Goal)

	task00, err := tasktree.GetTaskByID(root, "0.0")
	require.NoError(t, err)
	assert.Equal(t, "reproduce", task00.Goal)

	task01, err := tasktree.GetTaskByID(root, "0.1")
	require.NoError(t, err)
	assert.Equal(t, "patch", task01.Goal)
}

func TestGetTaskByIDMalformed(t *testing.T) {
	root := buildSample(t)
	_, err := tasktree.GetTaskByID(root, "7")
	assert.ErrorIs(t, err, corerr.ErrMalformedTaskID)

	_, err = tasktree.GetTaskByID(root, "not-a-number")
	assert.ErrorIs(t, err, corerr.ErrMalformedTaskID)
}

func TestSetSubtaskStateInvalid(t *testing.T) {
	root := buildSample(t)
	err := tasktree.SetSubtaskState(root, "0", "flying")
	assert.ErrorIs(t, err, corerr.ErrInvalidTaskState)
}

func TestCompletedCascadesToNonAbandonedDescendants(t *testing.T) {
	root := buildSample(t)
	require.NoError(t, tasktree.SetSubtaskState(root, "0.1", tasktree.StateAbandoned.String()))
	require.NoError(t, tasktree.SetSubtaskState(root, "0", tasktree.StateCompleted.String()))

	task0, _ := tasktree.GetTaskByID(root, "0")
	task00, _ := tasktree.GetTaskByID(root, "0.0")
	task01, _ := tasktree.GetTaskByID(root, "0.1")

	assert.Equal(t, tasktree.StateCompleted, task0.State)
	assert.Equal(t, tasktree.StateCompleted, task00.State, "non-abandoned descendant must cascade")
	assert.Equal(t, tasktree.StateAbandoned, task01.State, "abandoned descendant must not be overwritten")
}

func TestInProgressBubblesUp(t *testing.T) {
	root := buildSample(t)
	require.NoError(t, tasktree.SetSubtaskState(root, "0.0", tasktree.StateInProgress.String()))

	task0, _ := tasktree.GetTaskByID(root, "0")
	assert.Equal(t, tasktree.StateInProgress, task0.State)
	assert.Equal(t, tasktree.StateInProgress, root.State)
}

func TestGetCurrentTaskFindsDeepestInProgress(t *testing.T) {
	root := buildSample(t)
	require.NoError(t, tasktree.SetSubtaskState(root, "0.0", tasktree.StateInProgress.String()))

	current := tasktree.GetCurrentTask(root)
	require.NotNil(t, current)
	assert.Equal(t, "0.0", current.ID)
}

func TestGetCurrentTaskNilWhenNoneInProgress(t *testing.T) {
	root := buildSample(t)
	assert.Nil(t, tasktree.GetCurrentTask(root))
}

func TestNestedSeedSubtasks(t *testing.T) {
	root := tasktree.Root()
	require.NoError(t, tasktree.AddSubtask(root, "", "parent goal", []tasktree.Seed{
		{Goal: "child a"},
		{Goal: "child b", Subtasks: []tasktree.Seed{{Goal: "grandchild"}}},
	}))

	gc, err := tasktree.GetTaskByID(root, "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "grandchild", gc.Goal)
}
