package syncer

import (
	"learning-companion/internal/model"
	"learning-companion/internal/realtime"
)

// Reduce folds one change event into the task list, keyed by identifier.
// Insert prepends (or replaces, when the record already arrived through an
// optimistic apply), update replaces in place, delete removes. Unknown kinds
// leave the list untouched.
func Reduce(tasks []model.Task, ev realtime.Event) []model.Task {
	switch ev.Kind {
	case model.OpInsert:
		for i, t := range tasks {
			if t.ID == ev.TaskID {
				out := make([]model.Task, len(tasks))
				copy(out, tasks)
				out[i] = ev.Task
				return out
			}
		}
		return append([]model.Task{ev.Task}, tasks...)
	case model.OpUpdate:
		out := make([]model.Task, len(tasks))
		copy(out, tasks)
		for i, t := range out {
			if t.ID == ev.TaskID {
				out[i] = ev.Task
			}
		}
		return out
	case model.OpDelete:
		out := make([]model.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.ID != ev.TaskID {
				out = append(out, t)
			}
		}
		return out
	default:
		return tasks
	}
}
