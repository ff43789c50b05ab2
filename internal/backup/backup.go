// Package backup encodes the task list to the portable backup format: a
// UTF-8 JSON array of task records that round-trips losslessly through
// export and import.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"

	"learning-companion/internal/model"
)

// ErrFormat marks a backup payload that is not an ordered sequence of
// task-shaped records. A single bad record rejects the whole payload.
var ErrFormat = errors.New("invalid backup format")

// Encode serializes the task list for download.
func Encode(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// Decode parses raw backup text. Nothing is applied on failure; the caller's
// state stays untouched.
func Decode(raw []byte) ([]model.Task, error) {
	var tasks []model.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("%w: not an array of tasks: %v", ErrFormat, err)
	}
	for i, t := range tasks {
		if err := checkShape(t); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrFormat, i, err)
		}
	}
	return tasks, nil
}

func checkShape(t model.Task) error {
	switch {
	case t.ID == "":
		return errors.New("missing id")
	case t.Title == "":
		return errors.New("missing title")
	case !t.Category.Valid():
		return fmt.Errorf("unknown category %q", t.Category)
	case !t.Invariant():
		return errors.New("completion flag and timestamp disagree")
	}
	return nil
}
