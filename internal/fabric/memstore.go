package fabric

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-process Store used by the scheduler, which is
// authoritative over all state (spec.md §5, §9: "no process-wide mutable
// state" outside the single Simulation record that owns this store).
type MemStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]float64
	strings map[string]string
	lists   map[string][]string
	expiry  map[string]time.Time
}

// NewMemStore constructs an empty in-memory fabric.
func NewMemStore() *MemStore {
	return &MemStore{
		hashes:  make(map[string]map[string]float64),
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		expiry:  make(map[string]time.Time),
	}
}

func (m *MemStore) expired(key string) bool {
	exp, ok := m.expiry[key]
	return ok && time.Now().After(exp)
}

func (m *MemStore) HashSet(_ context.Context, key string, fields map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]float64, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.hashes[key] = cp
	return nil
}

func (m *MemStore) HashGet(_ context.Context, key string) (map[string]float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.hashes, key)
		return nil, false, nil
	}
	h, ok := m.hashes[key]
	if !ok {
		return nil, false, nil
	}
	cp := make(map[string]float64, len(h))
	for k, v := range h {
		cp[k] = v
	}
	return cp, true, nil
}

func (m *MemStore) StringSet(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

func (m *MemStore) StringGet(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
		return "", false, nil
	}
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *MemStore) ListAppend(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *MemStore) ListRange(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.lists, key)
		return nil, nil
	}
	out := make([]string, len(m.lists[key]))
	copy(out, m.lists[key])
	return out, nil
}

func (m *MemStore) ListDrain(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.lists[key]
	delete(m.lists, key)
	return out, nil
}

// IncrFloat is the atomic sale-volume accumulator (spec.md I6): the mutex
// above already serializes every caller, so concurrent sellers within a
// tick observe strictly monotonic totals regardless of goroutine
// interleaving.
func (m *MemStore) IncrFloat(_ context.Context, key string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
	}
	v, _ := parseFloat(m.strings[key])
	v += delta
	m.strings[key] = formatFloat(v)
	return v, nil
}

func (m *MemStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.expiry, key)
		return nil
	}
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *MemStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes = make(map[string]map[string]float64)
	m.strings = make(map[string]string)
	m.lists = make(map[string][]string)
	m.expiry = make(map[string]time.Time)
	return nil
}
