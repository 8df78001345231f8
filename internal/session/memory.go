package session

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It publishes on every write.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	subsMu sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewMemoryStore creates an empty store, optionally seeded.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	m := &MemoryStore{
		data: make(map[string]string, len(seed)),
		subs: make(map[int]chan struct{}),
	}
	for k, v := range seed {
		m.data[k] = v
	}
	return m
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	m.publish()
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	m.publish()
	return nil
}

func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Dump returns a copy of the contents.
func (m *MemoryStore) Dump() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Subscribe implements Notifier. Signals are coalesced: a slow reader sees
// at most one pending signal.
func (m *MemoryStore) Subscribe() (<-chan struct{}, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan struct{}, 1)
	m.subs[id] = ch
	return ch, func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *MemoryStore) publish() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
