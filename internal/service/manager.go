package service

import (
	"context"
	"log"
	"sync"

	"learning-companion/internal/localcache"
	"learning-companion/internal/model"
	"learning-companion/internal/realtime"
	"learning-companion/internal/syncer"
)

// Manager hands out one syncer per owner, creating and loading it on first
// touch.
type Manager struct {
	remote syncer.Remote
	cache  *localcache.Store
	hub    *realtime.Hub

	mu      sync.Mutex
	syncers map[string]*syncer.Syncer
}

func NewManager(remote syncer.Remote, cache *localcache.Store, hub *realtime.Hub) *Manager {
	return &Manager{
		remote:  remote,
		cache:   cache,
		hub:     hub,
		syncers: make(map[string]*syncer.Syncer),
	}
}

// ForOwner returns the owner's syncer, performing the initial load when the
// owner is seen for the first time.
func (m *Manager) ForOwner(ctx context.Context, ownerID string) (*syncer.Syncer, error) {
	m.mu.Lock()
	s, ok := m.syncers[ownerID]
	if !ok {
		s = syncer.New(ownerID, m.remote, m.cache, m.hub)
		m.syncers[ownerID] = s
	}
	m.mu.Unlock()

	if !ok {
		if _, err := s.Load(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DrainAll replays every owner's retry queue. A failing owner keeps the rest
// of its queue for the next round and does not block other owners.
func (m *Manager) DrainAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*syncer.Syncer, 0, len(m.syncers))
	owners := make([]string, 0, len(m.syncers))
	for owner, s := range m.syncers {
		all = append(all, s)
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	for i, s := range all {
		if s.QueueLen() == 0 {
			continue
		}
		if err := s.DrainQueue(ctx); err != nil {
			log.Printf("drain queue for %s: %v", owners[i], err)
		}
	}
}

// QueueDepth sums the pending operations across all live syncers.
func (m *Manager) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, s := range m.syncers {
		total += s.QueueLen()
	}
	return total
}

// TasksFor returns the current list for an owner without forcing a load,
// used by read-only surfaces that already hit the repository.
func (m *Manager) TasksFor(ownerID string) ([]model.Task, bool) {
	m.mu.Lock()
	s, ok := m.syncers[ownerID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.Tasks(), true
}
