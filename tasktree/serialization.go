package tasktree

import "encoding/json"

// wireTask omits Parent: the parent/child relationship is a back-pointer
// the wire form reconstructs on decode rather than serializes, matching the
// arena-style (index-based, no cyclic back-pointers) tree guidance of the
// design notes applied to a JSON encoding.
type wireTask struct {
	ID       string      `json:"id"`
	Goal     string      `json:"goal"`
	State    State       `json:"state"`
	Subtasks []*wireTask `json:"subtasks,omitempty"`
}

// MarshalJSON encodes t and its descendants, omitting Parent back-pointers.
func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(t))
}

func toWire(t *Task) *wireTask {
	w := &wireTask{ID: t.ID, Goal: t.Goal, State: t.State}
	for _, c := range t.Subtasks {
		w.Subtasks = append(w.Subtasks, toWire(c))
	}
	return w
}

// UnmarshalJSON decodes t and its descendants, relinking Parent pointers.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fromWire(&w, nil, t)
	return nil
}

func fromWire(w *wireTask, parent *Task, out *Task) {
	out.ID = w.ID
	out.Goal = w.Goal
	out.State = w.State
	out.Parent = parent
	for _, cw := range w.Subtasks {
		child := &Task{}
		fromWire(cw, out, child)
		out.Subtasks = append(out.Subtasks, child)
	}
}
