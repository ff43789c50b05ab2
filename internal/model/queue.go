package model

// Op is the kind of a pending remote operation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// QueueEntry is one remote mutation waiting for replay. Entries are created
// when a remote call fails, persisted alongside the local snapshot, and
// consumed strictly in FIFO order once connectivity returns.
type QueueEntry struct {
	Op     Op     `json:"op"`
	TaskID string `json:"taskId"`
	Task   Task   `json:"task"`
}
