// Package tasktree implements the dotted-path addressable goal tree: a root
// task with no goal of its own, whose descendants are reached by ids like
// "0", "0.1", "0.1.2". State changes propagate to descendants (on
// completion) or ancestors (on resumption) per the rules in set_subtask_state.
package tasktree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentcore/agentcore/corerr"
)

// State is a Task's lifecycle position.
type State string

const (
	StateOpen       State = "open"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateAbandoned  State = "abandoned"
	StateVerified   State = "verified"
)

// String implements fmt.Stringer.
func (s State) String() string { return string(s) }

// validStates is consulted by parseState; order is insignificant.
var validStates = map[State]bool{
	StateOpen:       true,
	StateInProgress: true,
	StateCompleted:  true,
	StateAbandoned:  true,
	StateVerified:   true,
}

func parseState(s string) (State, error) {
	st := State(s)
	if !validStates[st] {
		return "", fmt.Errorf("%w: %q", corerr.ErrInvalidTaskState, s)
	}
	return st, nil
}

// Task is one node of the tree. The root task has empty ID and Goal and
// holds only Subtasks.
type Task struct {
	ID       string
	Goal     string
	State    State
	Parent   *Task
	Subtasks []*Task
}

// Glyph renders a one-character status marker for CLI/debug display,
// matching the original implementation's convention: open, verified,
// completed, abandoned, in_progress.
func (t *Task) Glyph() string {
	switch t.State {
	case StateOpen:
		return "🔵"
	case StateVerified:
		return "✅"
	case StateCompleted:
		return "🟢"
	case StateAbandoned:
		return "❌"
	case StateInProgress:
		return "💪"
	default:
		return "?"
	}
}

// Root constructs an empty root task in the open state.
func Root() *Task {
	return &Task{State: StateOpen}
}

// childID computes the id a new child of parent would receive.
func childID(parent *Task) string {
	idx := len(parent.Subtasks)
	if parent.ID == "" {
		return strconv.Itoa(idx)
	}
	return parent.ID + "." + strconv.Itoa(idx)
}

// GetTaskByID searches the tree rooted at root for id, failing with
// ErrMalformedTaskID if id is malformed or absent.
func GetTaskByID(root *Task, id string) (*Task, error) {
	if id == "" {
		return root, nil
	}
	parts := strings.Split(id, ".")
	cur := root
	for _, p := range parts {
		idx, err := strconv.Atoi(p)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q", corerr.ErrMalformedTaskID, id)
		}
		if idx >= len(cur.Subtasks) {
			return nil, fmt.Errorf("%w: %q", corerr.ErrMalformedTaskID, id)
		}
		cur = cur.Subtasks[idx]
	}
	return cur, nil
}

// Seed describes a subtask to create alongside its parent, recursively; it
// mirrors event.TaskSeed without introducing a dependency from tasktree on
// the event package.
type Seed struct {
	Goal     string
	Subtasks []Seed
}

// AddSubtask appends a new child with the given goal (and, recursively, its
// own seed subtasks) under the task named parentID.
func AddSubtask(root *Task, parentID, goal string, subtasks []Seed) error {
	parent, err := GetTaskByID(root, parentID)
	if err != nil {
		return err
	}
	child := buildSubtree(parent, goal, subtasks)
	parent.Subtasks = append(parent.Subtasks, child)
	return nil
}

func buildSubtree(parent *Task, goal string, seeds []Seed) *Task {
	t := &Task{
		ID:     childID(parent),
		Goal:   goal,
		State:  StateOpen,
		Parent: parent,
	}
	for _, s := range seeds {
		t.Subtasks = append(t.Subtasks, buildSubtree(t, s.Goal, s.Subtasks))
	}
	return t
}

// SetSubtaskState transitions the task named id to newState, propagating to
// descendants or ancestors per the rules below:
//
//   - completed | abandoned | verified: every descendant whose state is not
//     abandoned is recursively set to the same state;
//   - in_progress: the parent chain is also set to in_progress (bubble up);
//   - an unrecognized state string fails with ErrInvalidTaskState;
//   - a malformed or unknown id fails with ErrMalformedTaskID.
func SetSubtaskState(root *Task, id string, newState string) error {
	task, err := GetTaskByID(root, id)
	if err != nil {
		return err
	}
	st, err := parseState(newState)
	if err != nil {
		return err
	}
	task.State = st

	switch st {
	case StateCompleted, StateAbandoned, StateVerified:
		propagateDown(task, st)
	case StateInProgress:
		propagateUp(task)
	}
	return nil
}

func propagateDown(t *Task, st State) {
	for _, child := range t.Subtasks {
		if child.State == StateAbandoned {
			continue
		}
		child.State = st
		propagateDown(child, st)
	}
}

func propagateUp(t *Task) {
	for p := t.Parent; p != nil && p.ID != ""; p = p.Parent {
		p.State = StateInProgress
	}
	// the root itself also reflects an in-progress descendant, mirroring
	// the original's bubble-up through the sentinel root node.
	if t.Parent != nil {
		var root *Task = t.Parent
		for root.Parent != nil {
			root = root.Parent
		}
		root.State = StateInProgress
	}
}

// GetCurrentTask performs a depth-first search for the deepest in_progress
// node, returning nil if none is in progress.
func GetCurrentTask(root *Task) *Task {
	var deepest *Task
	bestDepth := -1
	var walk func(t *Task, depth int)
	walk = func(t *Task, depth int) {
		if t.State == StateInProgress && depth > bestDepth {
			deepest, bestDepth = t, depth
		}
		for _, c := range t.Subtasks {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return deepest
}
