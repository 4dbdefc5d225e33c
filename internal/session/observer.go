package session

import (
	"sync"

	"github.com/google/uuid"
)

// Observer receives the full snapshot after every state mutation, batched
// per logical operation. Callbacks run on the manager's goroutines and must
// not block.
type Observer func(Snapshot)

// registry holds the observer set. It never owns an observer's lifetime:
// consumers register when they start observing and unregister when they
// stop.
type registry struct {
	mu        sync.Mutex
	observers map[uuid.UUID]Observer
}

func newRegistry() *registry {
	return &registry{observers: make(map[uuid.UUID]Observer)}
}

func (r *registry) register(fn Observer) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.observers[id] = fn
	r.mu.Unlock()
	return id
}

func (r *registry) unregister(id uuid.UUID) {
	r.mu.Lock()
	delete(r.observers, id)
	r.mu.Unlock()
}

// broadcast invokes every registered observer with the snapshot. It
// iterates over a copy so observers may register or unregister (including
// themselves) while a broadcast is in flight.
func (r *registry) broadcast(snap Snapshot) {
	r.mu.Lock()
	callbacks := make([]Observer, 0, len(r.observers))
	for _, fn := range r.observers {
		callbacks = append(callbacks, fn)
	}
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}
