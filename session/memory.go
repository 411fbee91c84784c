package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMemoryUnavailable is returned by Memory.Ping while the fake is offline.
var ErrMemoryUnavailable = errors.New("session: memory store offline")

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process store with the same degraded-mode contract as
// Store. It is meant for tests and single-process tools; SetAvailable(false)
// simulates an outage.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	offline bool
	values  map[string]memoryEntry
	sets    map[string]map[string]struct{}
}

// NewMemory returns an empty, available Memory store.
func NewMemory() *Memory {
	return &Memory{
		now:    time.Now,
		values: make(map[string]memoryEntry),
		sets:   make(map[string]map[string]struct{}),
	}
}

// SetAvailable toggles the simulated outage.
func (m *Memory) SetAvailable(ok bool) {
	m.mu.Lock()
	m.offline = !ok
	m.mu.Unlock()
}

// Advance moves the fake clock forward, expiring keys whose TTL elapsed.
func (m *Memory) Advance(d time.Duration) {
	m.mu.Lock()
	base := m.now
	m.now = func() time.Time { return base().Add(d) }
	m.mu.Unlock()
}

func (m *Memory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return StateUnavailable
	}
	return StateConnected
}

func (m *Memory) Ping(context.Context) error {
	if m.State() == StateUnavailable {
		return ErrMemoryUnavailable
	}
	return nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = e
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return e.value, ok
}

func (m *Memory) Exists(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

func (m *Memory) Del(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return
	}
	delete(m.values, key)
	delete(m.sets, key)
}

func (m *Memory) DelMany(ctx context.Context, keys ...string) {
	for _, k := range keys {
		m.Del(ctx, k)
	}
}

func (m *Memory) Consume(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); !ok {
		return false
	}
	delete(m.values, key)
	return true
}

func (m *Memory) AddToSet(_ context.Context, setKey, member string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return
	}
	set, ok := m.sets[setKey]
	if !ok {
		set = make(map[string]struct{})
		m.sets[setKey] = set
	}
	set[member] = struct{}{}
}

func (m *Memory) RemoveFromSet(_ context.Context, setKey, member string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return
	}
	if set, ok := m.sets[setKey]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(m.sets, setKey)
		}
	}
}

func (m *Memory) MembersOf(_ context.Context, setKey string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil
	}
	set := m.sets[setKey]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out
}

// live must be called with mu held.
func (m *Memory) live(key string) (memoryEntry, bool) {
	if m.offline {
		return memoryEntry{}, false
	}
	e, ok := m.values[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.values, key)
		return memoryEntry{}, false
	}
	return e, true
}
