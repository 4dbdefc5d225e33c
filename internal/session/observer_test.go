package session

import (
	"sync"
	"testing"
	"time"
)

func TestObserverFanOut(t *testing.T) {
	m, err := New(newMockTransport(nil), testAddress)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var mu sync.Mutex
	calls := make(map[int]int)
	seen := make(map[int]float64)

	record := func(idx int) Observer {
		return func(snap Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			calls[idx]++
			if snap.Temperature != nil {
				seen[idx] = *snap.Temperature
			}
		}
	}

	m.Register(record(1))
	id2 := m.Register(record(2))
	m.Register(record(3))

	m.update(func(s *Snapshot) { s.Temperature = ptr(95.0) })

	mu.Lock()
	for idx := 1; idx <= 3; idx++ {
		if calls[idx] != 1 {
			t.Errorf("observer %d calls = %d, want 1", idx, calls[idx])
		}
		if seen[idx] != 95.0 {
			t.Errorf("observer %d saw %.1f, want 95.0", idx, seen[idx])
		}
	}
	mu.Unlock()

	m.Unregister(id2)
	m.update(func(s *Snapshot) { s.Temperature = ptr(96.0) })

	mu.Lock()
	defer mu.Unlock()
	if calls[1] != 2 || calls[3] != 2 {
		t.Errorf("remaining observers calls = (%d, %d), want (2, 2)", calls[1], calls[3])
	}
	if calls[2] != 1 {
		t.Errorf("unregistered observer calls = %d, want 1", calls[2])
	}
}

func TestObserverMayUnregisterDuringBroadcast(t *testing.T) {
	r := newRegistry()

	other := r.register(func(Snapshot) {})

	var fired int
	r.register(func(Snapshot) {
		fired++
		// Unregistering mid-broadcast must not deadlock.
		r.unregister(other)
	})

	r.broadcast(Snapshot{})
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if r.count() != 1 {
		t.Errorf("registry count = %d, want 1", r.count())
	}
}

func TestObserverSeesStatusTransitions(t *testing.T) {
	transport := newMockTransport(nil)
	m, err := New(transport, testAddress,
		WithPollInterval(5*time.Millisecond),
		WithConnectTimeout(50*time.Millisecond),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Stop)

	var mu sync.Mutex
	var statuses []Status
	m.Register(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if len(statuses) == 0 || statuses[len(statuses)-1] != snap.Status {
			statuses = append(statuses, snap.Status)
		}
	})

	m.Start()
	waitFor(t, "connected transition", func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range statuses {
			if s == StatusConnected {
				return true
			}
		}
		return false
	})

	mu.Lock()
	defer mu.Unlock()
	if statuses[0] != StatusConnecting {
		t.Errorf("first observed status = %s, want CONNECTING", statuses[0])
	}
}
