// Package realtime fans row-level change events out to per-owner
// subscribers, standing in for a hosted pub/sub channel.
package realtime

import (
	"sync"

	"learning-companion/internal/model"
)

// Event describes one change to an owner's task collection. Task carries the
// affected record for insert/update; TaskID is always set.
type Event struct {
	Kind   model.Op   `json:"kind"`
	Task   model.Task `json:"task"`
	TaskID string     `json:"taskId"`
}

type subscriber struct {
	events chan Event
	done   chan struct{}
}

// Hub routes events to the subscribers of a single owner's channel. Delivery
// is asynchronous and order-preserving per subscriber.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]*subscriber
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]*subscriber)}
}

// Subscribe registers fn for every event published to ownerID and returns an
// unsubscribe function. Events arrive on a dedicated goroutine until the
// returned function is called; unsubscribing is the only cancellation.
func (h *Hub) Subscribe(ownerID string, fn func(Event)) func() {
	sub := &subscriber{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[int]*subscriber)
	}
	id := h.next
	h.next++
	h.subs[ownerID][id] = sub
	h.mu.Unlock()

	go func() {
		for {
			select {
			case ev := <-sub.events:
				fn(ev)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			h.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish delivers ev to every current subscriber of ownerID. Slow
// subscribers that fill their buffer lose the event; the remote collection
// stays the source of truth and the next load resynchronizes them.
func (h *Hub) Publish(ownerID string, ev Event) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[ownerID]))
	for _, sub := range h.subs[ownerID] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		default:
		}
	}
}
