// Package syncer keeps an in-memory view of one owner's tasks consistent
// with the remote collection. Mutations apply locally first and are assumed
// to succeed; remote failures park the operation on a FIFO retry queue
// instead of rolling anything back.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"learning-companion/internal/backup"
	"learning-companion/internal/localcache"
	"learning-companion/internal/model"
	"learning-companion/internal/realtime"
)

// ErrValidation rejects user input before any mutation is attempted.
var ErrValidation = errors.New("invalid input")

// Remote is the durable task collection. *repository.TaskRepository
// satisfies it.
type Remote interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
	Insert(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, ownerID, taskID string) error
	Upsert(ctx context.Context, task *model.Task) error
}

// Syncer coordinates local state, the remote collection, the local cache and
// the live change channel for a single owner. The mutex is held across the
// remote round trip of each operation so the retry queue keeps the exact
// order mutations were issued in.
type Syncer struct {
	ownerID string
	remote  Remote
	cache   *localcache.Store
	hub     *realtime.Hub

	mu    sync.Mutex
	tasks []model.Task
	queue []model.QueueEntry

	now   func() time.Time
	newID func() string
}

func New(ownerID string, remote Remote, cache *localcache.Store, hub *realtime.Hub) *Syncer {
	s := &Syncer{
		ownerID: ownerID,
		remote:  remote,
		cache:   cache,
		hub:     hub,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if queue, err := cache.LoadQueue(ownerID); err == nil {
		s.queue = queue
	}
	return s
}

// Load fetches the owner's tasks from the remote collection, newest first.
// When the remote is unreachable it falls back to the last cached snapshot,
// or an empty list when no cache exists.
func (s *Syncer) Load(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.remote.ListByOwner(ctx, s.ownerID)
	if err != nil {
		cached, cacheErr := s.cache.LoadSnapshot(s.ownerID)
		if cacheErr != nil {
			cached = nil
		}
		s.mu.Lock()
		s.tasks = cached
		out := s.snapshotLocked()
		s.mu.Unlock()
		return out, nil
	}

	s.mu.Lock()
	s.tasks = tasks
	s.persistLocked()
	out := s.snapshotLocked()
	s.mu.Unlock()
	return out, nil
}

// Tasks returns a copy of the current in-memory list.
func (s *Syncer) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// QueueLen reports how many operations await replay.
func (s *Syncer) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Subscribe attaches onChange to the owner's live channel. Every incoming
// change event is folded into the local list through the reducer and the new
// list is handed to onChange. The returned function unsubscribes and is the
// only way to stop delivery.
func (s *Syncer) Subscribe(onChange func([]model.Task)) func() {
	return s.hub.Subscribe(s.ownerID, func(ev realtime.Event) {
		s.mu.Lock()
		s.tasks = Reduce(s.tasks, ev)
		s.persistLocked()
		out := s.snapshotLocked()
		s.mu.Unlock()
		onChange(out)
	})
}

// Add creates a task from user input. The task is visible locally before the
// remote insert is attempted; an insert failure enqueues a retry and keeps
// the optimistic state.
func (s *Syncer) Add(ctx context.Context, title, category string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	cat, ok := model.ParseCategory(category)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	task := model.Task{
		ID:        s.newID(),
		OwnerID:   s.ownerID,
		Title:     title,
		Category:  cat,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append([]model.Task{task}, s.tasks...)
	s.persistLocked()

	remoteCopy := task
	if err := s.remote.Insert(ctx, &remoteCopy); err != nil {
		s.enqueueLocked(model.QueueEntry{Op: model.OpInsert, TaskID: task.ID, Task: task})
		return task, nil
	}
	s.hub.Publish(s.ownerID, realtime.Event{Kind: model.OpInsert, Task: task, TaskID: task.ID})
	return task, nil
}

// Toggle flips the completion state of the task with the given id. Unknown
// ids are a silent no-op.
func (s *Syncer) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	task := s.tasks[idx]
	task.Completed = !task.Completed
	if task.Completed {
		completedAt := s.now()
		task.CompletedAt = &completedAt
	} else {
		task.CompletedAt = nil
	}
	s.tasks[idx] = task
	s.persistLocked()

	remoteCopy := task
	if err := s.remote.Update(ctx, &remoteCopy); err != nil {
		s.enqueueLocked(model.QueueEntry{Op: model.OpUpdate, TaskID: id, Task: task})
		return nil
	}
	s.hub.Publish(s.ownerID, realtime.Event{Kind: model.OpUpdate, Task: task, TaskID: id})
	return nil
}

// Remove deletes the task locally and attempts the remote delete.
func (s *Syncer) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.persistLocked()

	if err := s.remote.Delete(ctx, s.ownerID, id); err != nil {
		s.enqueueLocked(model.QueueEntry{Op: model.OpDelete, TaskID: id})
		return nil
	}
	s.hub.Publish(s.ownerID, realtime.Event{Kind: model.OpDelete, TaskID: id})
	return nil
}

// DrainQueue replays pending operations strictly in enqueue order. Replay
// stops at the first failure and the remainder of the queue is preserved
// untouched; on full success the queue is cleared. Queued inserts replay as
// upserts so a retry after a partially applied batch stays idempotent.
func (s *Syncer) DrainQueue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.queue {
		var err error
		switch entry.Op {
		case model.OpInsert:
			task := entry.Task
			err = s.remote.Upsert(ctx, &task)
		case model.OpUpdate:
			task := entry.Task
			err = s.remote.Update(ctx, &task)
		case model.OpDelete:
			err = s.remote.Delete(ctx, s.ownerID, entry.TaskID)
		default:
			err = fmt.Errorf("unknown queued op %q", entry.Op)
		}
		if err != nil {
			s.queue = s.queue[i:]
			s.persistQueueLocked()
			return fmt.Errorf("replay %s %s: %w", entry.Op, entry.TaskID, err)
		}
		s.hub.Publish(s.ownerID, realtime.Event{Kind: entry.Op, Task: entry.Task, TaskID: entry.TaskID})
	}

	s.queue = nil
	s.persistQueueLocked()
	return nil
}

// ExportSnapshot serializes the current task list in the backup format.
func (s *Syncer) ExportSnapshot() ([]byte, error) {
	s.mu.Lock()
	tasks := s.snapshotLocked()
	s.mu.Unlock()
	return backup.Encode(tasks)
}

// ImportSnapshot replaces local state with the decoded backup and upserts
// every record to the remote collection. A malformed payload rejects the
// whole import with backup.ErrFormat and leaves state unchanged.
func (s *Syncer) ImportSnapshot(ctx context.Context, raw []byte) ([]model.Task, error) {
	tasks, err := backup.Decode(raw)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].OwnerID = s.ownerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = tasks
	s.persistLocked()

	for _, t := range tasks {
		remoteCopy := t
		if err := s.remote.Upsert(ctx, &remoteCopy); err != nil {
			s.enqueueLocked(model.QueueEntry{Op: model.OpInsert, TaskID: t.ID, Task: t})
			continue
		}
		s.hub.Publish(s.ownerID, realtime.Event{Kind: model.OpInsert, Task: t, TaskID: t.ID})
	}
	return s.snapshotLocked(), nil
}

func (s *Syncer) snapshotLocked() []model.Task {
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Syncer) enqueueLocked(entry model.QueueEntry) {
	s.queue = append(s.queue, entry)
	s.persistQueueLocked()
}

// persistLocked writes the snapshot; cache writes are best effort, the
// remote collection stays the source of truth.
func (s *Syncer) persistLocked() {
	_ = s.cache.SaveSnapshot(s.ownerID, s.tasks)
}

func (s *Syncer) persistQueueLocked() {
	_ = s.cache.SaveQueue(s.ownerID, s.queue)
}
