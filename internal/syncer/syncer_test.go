package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"learning-companion/internal/backup"
	"learning-companion/internal/localcache"
	"learning-companion/internal/model"
	"learning-companion/internal/realtime"
)

// fakeRemote is an in-memory task collection with switchable connectivity.
type fakeRemote struct {
	mu      sync.Mutex
	tasks   map[string]model.Task
	offline bool
	ops     []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{tasks: make(map[string]model.Task)}
}

func (f *fakeRemote) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeRemote) record(op, id string) error {
	if f.offline {
		return errors.New("connection refused")
	}
	f.ops = append(f.ops, op+":"+id)
	return nil
}

func (f *fakeRemote) ListByOwner(_ context.Context, ownerID string) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errors.New("connection refused")
	}
	var out []model.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRemote) Insert(_ context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("insert", task.ID); err != nil {
		return err
	}
	if _, exists := f.tasks[task.ID]; exists {
		return fmt.Errorf("duplicate id %s", task.ID)
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeRemote) Update(_ context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update", task.ID); err != nil {
		return err
	}
	if _, exists := f.tasks[task.ID]; !exists {
		return fmt.Errorf("no such id %s", task.ID)
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, _, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete", taskID); err != nil {
		return err
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeRemote) Upsert(_ context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("upsert", task.ID); err != nil {
		return err
	}
	f.tasks[task.ID] = *task
	return nil
}

func newTestSyncer(t *testing.T, remote Remote) *Syncer {
	t.Helper()
	cache := localcache.NewStore(t.TempDir())
	s := New("owner-1", remote, cache, realtime.NewHub())
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("task-%d", seq)
	}
	return s
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty title", func(t *testing.T) {
		s := newTestSyncer(t, newFakeRemote())
		if _, err := s.Add(ctx, "   ", "daily"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if len(s.Tasks()) != 0 {
			t.Errorf("no task should have been applied")
		}
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		s := newTestSyncer(t, newFakeRemote())
		if _, err := s.Add(ctx, "Read 10 pages", "monthly"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("applies locally and remotely", func(t *testing.T) {
		remote := newFakeRemote()
		s := newTestSyncer(t, remote)
		task, err := s.Add(ctx, "Read 10 pages", "daily")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Completed || task.CompletedAt != nil {
			t.Errorf("new task must start incomplete")
		}
		if got := s.Tasks(); len(got) != 1 || got[0].ID != task.ID {
			t.Errorf("task not visible locally: %+v", got)
		}
		if _, ok := remote.tasks[task.ID]; !ok {
			t.Errorf("task not inserted remotely")
		}
		if s.QueueLen() != 0 {
			t.Errorf("nothing should be queued, got %d", s.QueueLen())
		}
	})

	t.Run("newest first", func(t *testing.T) {
		s := newTestSyncer(t, newFakeRemote())
		first, _ := s.Add(ctx, "first", "daily")
		second, _ := s.Add(ctx, "second", "weekly")
		got := s.Tasks()
		if got[0].ID != second.ID || got[1].ID != first.ID {
			t.Errorf("expected newest first, got %v then %v", got[0].ID, got[1].ID)
		}
	})

	t.Run("offline keeps optimistic state and queues insert", func(t *testing.T) {
		remote := newFakeRemote()
		remote.setOffline(true)
		s := newTestSyncer(t, remote)
		task, err := s.Add(ctx, "Read 10 pages", "daily")
		if err != nil {
			t.Fatalf("offline add must still succeed: %v", err)
		}
		if got := s.Tasks(); len(got) != 1 || got[0].ID != task.ID {
			t.Errorf("optimistic state missing: %+v", got)
		}
		if s.QueueLen() != 1 {
			t.Fatalf("expected 1 queued op, got %d", s.QueueLen())
		}
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id is a silent no-op", func(t *testing.T) {
		s := newTestSyncer(t, newFakeRemote())
		if err := s.Toggle(ctx, "missing"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("flip on sets timestamp, flip off clears it", func(t *testing.T) {
		remote := newFakeRemote()
		s := newTestSyncer(t, remote)
		task, _ := s.Add(ctx, "Read 10 pages", "daily")

		if err := s.Toggle(ctx, task.ID); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		got := s.Tasks()[0]
		if !got.Completed || got.CompletedAt == nil {
			t.Fatalf("expected completed with timestamp, got %+v", got)
		}
		if !got.Invariant() {
			t.Errorf("invariant broken after toggle on")
		}

		if err := s.Toggle(ctx, task.ID); err != nil {
			t.Fatalf("toggle back: %v", err)
		}
		got = s.Tasks()[0]
		if got.Completed || got.CompletedAt != nil {
			t.Fatalf("expected incomplete without timestamp, got %+v", got)
		}
		if !got.Invariant() {
			t.Errorf("invariant broken after toggle off")
		}
	})

	t.Run("offline queues update", func(t *testing.T) {
		remote := newFakeRemote()
		s := newTestSyncer(t, remote)
		task, _ := s.Add(ctx, "Read 10 pages", "daily")

		remote.setOffline(true)
		if err := s.Toggle(ctx, task.ID); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if !s.Tasks()[0].Completed {
			t.Errorf("optimistic toggle not applied")
		}
		if s.QueueLen() != 1 {
			t.Errorf("expected 1 queued op, got %d", s.QueueLen())
		}
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := newTestSyncer(t, remote)
	task, _ := s.Add(ctx, "Read 10 pages", "daily")

	if err := s.Remove(ctx, task.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(s.Tasks()) != 0 {
		t.Errorf("task still present locally")
	}
	if _, ok := remote.tasks[task.ID]; ok {
		t.Errorf("task still present remotely")
	}
}

func TestDrainQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("insert update delete replay leaves no trace", func(t *testing.T) {
		remote := newFakeRemote()
		remote.setOffline(true)
		s := newTestSyncer(t, remote)

		task, _ := s.Add(ctx, "Read 10 pages", "daily")
		_ = s.Toggle(ctx, task.ID)
		_ = s.Remove(ctx, task.ID)
		if s.QueueLen() != 3 {
			t.Fatalf("expected 3 queued ops, got %d", s.QueueLen())
		}

		remote.setOffline(false)
		if err := s.DrainQueue(ctx); err != nil {
			t.Fatalf("drain: %v", err)
		}
		if s.QueueLen() != 0 {
			t.Errorf("queue not cleared, %d left", s.QueueLen())
		}
		if _, ok := remote.tasks[task.ID]; ok {
			t.Errorf("replay left a trace of %s in the remote collection", task.ID)
		}
		want := []string{"upsert:" + task.ID, "update:" + task.ID, "delete:" + task.ID}
		if len(remote.ops) != len(want) {
			t.Fatalf("expected ops %v, got %v", want, remote.ops)
		}
		for i := range want {
			if remote.ops[i] != want[i] {
				t.Errorf("op %d: expected %s, got %s", i, want[i], remote.ops[i])
			}
		}
	})

	t.Run("halts at first failure and preserves the tail", func(t *testing.T) {
		remote := newFakeRemote()
		remote.setOffline(true)
		s := newTestSyncer(t, remote)

		a, _ := s.Add(ctx, "a", "daily")
		b, _ := s.Add(ctx, "b", "daily")
		if s.QueueLen() != 2 {
			t.Fatalf("expected 2 queued ops, got %d", s.QueueLen())
		}

		if err := s.DrainQueue(ctx); err == nil {
			t.Fatalf("expected drain to fail while offline")
		}
		if s.QueueLen() != 2 {
			t.Errorf("queue must be preserved untouched, got %d", s.QueueLen())
		}

		remote.setOffline(false)
		if err := s.DrainQueue(ctx); err != nil {
			t.Fatalf("drain after reconnect: %v", err)
		}
		if _, ok := remote.tasks[a.ID]; !ok {
			t.Errorf("task %s missing after replay", a.ID)
		}
		if _, ok := remote.tasks[b.ID]; !ok {
			t.Errorf("task %s missing after replay", b.ID)
		}
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to cached snapshot when remote is down", func(t *testing.T) {
		remote := newFakeRemote()
		cache := localcache.NewStore(t.TempDir())
		hub := realtime.NewHub()
		s := New("owner-1", remote, cache, hub)

		if _, err := s.Add(ctx, "Read 10 pages", "daily"); err != nil {
			t.Fatalf("add: %v", err)
		}

		remote.setOffline(true)
		fresh := New("owner-1", remote, cache, hub)
		tasks, err := fresh.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(tasks) != 1 || tasks[0].Title != "Read 10 pages" {
			t.Errorf("expected cached task, got %+v", tasks)
		}
	})

	t.Run("empty list when remote is down and no cache exists", func(t *testing.T) {
		remote := newFakeRemote()
		remote.setOffline(true)
		s := newTestSyncer(t, remote)
		tasks, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(tasks) != 0 {
			t.Errorf("expected empty list, got %+v", tasks)
		}
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	cache := localcache.NewStore(t.TempDir())
	hub := realtime.NewHub()

	s := New("owner-1", remote, cache, hub)
	changes := make(chan []model.Task, 8)
	unsubscribe := s.Subscribe(func(tasks []model.Task) {
		changes <- tasks
	})
	defer unsubscribe()

	// A second client of the same owner makes an edit.
	other := New("owner-1", remote, cache, hub)
	task, err := other.Add(ctx, "From another device", "weekly")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	select {
	case tasks := <-changes:
		if len(tasks) != 1 || tasks[0].ID != task.ID {
			t.Errorf("expected the inserted task, got %+v", tasks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification arrived")
	}

	if err := other.Remove(ctx, task.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	select {
	case tasks := <-changes:
		if len(tasks) != 0 {
			t.Errorf("expected empty list after delete event, got %+v", tasks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delete notification arrived")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := newTestSyncer(t, remote)

	a, _ := s.Add(ctx, "Read 10 pages", "daily")
	_, _ = s.Add(ctx, "Review flashcards", "weekly")
	_ = s.Toggle(ctx, a.ID)

	raw, err := s.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	fresh := newTestSyncer(t, remote)
	imported, err := fresh.ImportSnapshot(ctx, raw)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	original := s.Tasks()
	if len(imported) != len(original) {
		t.Fatalf("expected %d tasks, got %d", len(original), len(imported))
	}
	for i := range original {
		if imported[i].ID != original[i].ID ||
			imported[i].Title != original[i].Title ||
			imported[i].Category != original[i].Category ||
			imported[i].Completed != original[i].Completed {
			t.Errorf("task %d differs: %+v vs %+v", i, imported[i], original[i])
		}
		if !imported[i].Invariant() {
			t.Errorf("task %d breaks the completion invariant", i)
		}
	}
}

func TestImportSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects malformed payload and keeps state", func(t *testing.T) {
		s := newTestSyncer(t, newFakeRemote())
		task, _ := s.Add(ctx, "keep me", "daily")

		if _, err := s.ImportSnapshot(ctx, []byte(`{"not":"an array"}`)); !errors.Is(err, backup.ErrFormat) {
			t.Fatalf("expected ErrFormat, got %v", err)
		}
		if got := s.Tasks(); len(got) != 1 || got[0].ID != task.ID {
			t.Errorf("state must be unchanged after failed import, got %+v", got)
		}
	})

	t.Run("upserts overwrite existing identifiers", func(t *testing.T) {
		remote := newFakeRemote()
		s := newTestSyncer(t, remote)
		task, _ := s.Add(ctx, "old title", "daily")

		raw := []byte(fmt.Sprintf(
			`[{"id":%q,"ownerId":"owner-1","title":"new title","category":"daily","completed":false}]`,
			task.ID))
		tasks, err := s.ImportSnapshot(ctx, raw)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(tasks) != 1 || tasks[0].Title != "new title" {
			t.Errorf("expected overwritten task, got %+v", tasks)
		}
		if remote.tasks[task.ID].Title != "new title" {
			t.Errorf("remote record not overwritten: %+v", remote.tasks[task.ID])
		}
	})
}
