// Package localcache persists per-owner snapshots of the task list and the
// pending retry queue as flat JSON files, so a session that went offline can
// pick up where it stopped.
package localcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"learning-companion/internal/model"
)

// Store reads and writes one snapshot file and one queue file per owner.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) snapshotPath(ownerID string) string {
	return filepath.Join(s.dir, ownerID+".tasks.json")
}

func (s *Store) queuePath(ownerID string) string {
	return filepath.Join(s.dir, ownerID+".queue.json")
}

// LoadSnapshot returns the cached task list for the owner. A missing file
// yields an empty list; a corrupt file is an error so the caller can treat it
// as having no cache.
func (s *Store) LoadSnapshot(ownerID string) ([]model.Task, error) {
	data, err := os.ReadFile(s.snapshotPath(ownerID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return tasks, nil
}

func (s *Store) SaveSnapshot(ownerID string, tasks []model.Task) error {
	return s.writeFile(s.snapshotPath(ownerID), tasks)
}

// LoadQueue returns the persisted retry queue. A queue file that fails to
// parse is discarded permanently rather than blocking future syncs.
func (s *Store) LoadQueue(ownerID string) ([]model.QueueEntry, error) {
	data, err := os.ReadFile(s.queuePath(ownerID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	var queue []model.QueueEntry
	if err := json.Unmarshal(data, &queue); err != nil {
		_ = os.Remove(s.queuePath(ownerID))
		return nil, nil
	}
	return queue, nil
}

func (s *Store) SaveQueue(ownerID string, queue []model.QueueEntry) error {
	if len(queue) == 0 {
		err := os.Remove(s.queuePath(ownerID))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove queue: %w", err)
		}
		return nil
	}
	return s.writeFile(s.queuePath(ownerID), queue)
}

func (s *Store) writeFile(path string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %q: %w", s.dir, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}
