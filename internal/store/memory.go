package store

import (
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory KV used by tests. It supports write-failure
// injection so callers can verify that an append which cannot be
// persisted is reported to the user instead of silently dropped.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record

	// FailWrites, when set, makes every mutating call return the given
	// error.
	failErr error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]map[string]Record),
	}
}

// FailWrites injects a write failure; pass nil to heal.
func (m *MemStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Get returns the value for key, or ErrNotFound.
func (m *MemStore) Get(ns, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[ns][key]
	if !ok {
		return nil, ErrNotFound
	}
	value := make([]byte, len(r.Value))
	copy(value, r.Value)
	return value, nil
}

// Set stores value under key.
func (m *MemStore) Set(ns, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}

	if m.records[ns] == nil {
		m.records[ns] = make(map[string]Record)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.records[ns][key] = Record{
		Key:       key,
		Value:     stored,
		SizeBytes: int64(len(stored)),
		UpdatedAt: time.Now().Unix(),
	}
	return nil
}

// Delete removes key from the namespace.
func (m *MemStore) Delete(ns, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	delete(m.records[ns], key)
	return nil
}

// Keys returns all keys in the namespace, sorted ascending.
func (m *MemStore) Keys(ns string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records[ns]))
	for key := range m.records[ns] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// List returns all records in the namespace in key order.
func (m *MemStore) List(ns string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]Record, 0, len(m.records[ns]))
	for _, r := range m.records[ns] {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// ClearNamespace removes every record in the namespace.
func (m *MemStore) ClearNamespace(ns string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return 0, m.failErr
	}

	var freed int64
	for _, r := range m.records[ns] {
		freed += r.SizeBytes
	}
	delete(m.records, ns)
	return freed, nil
}

// SizeOf returns the total stored bytes in the namespace.
func (m *MemStore) SizeOf(ns string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var size int64
	for _, r := range m.records[ns] {
		size += r.SizeBytes
	}
	return size, nil
}

// LastUpdated returns the most recent write timestamp in the namespace.
func (m *MemStore) LastUpdated(ns string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var updated int64
	for _, r := range m.records[ns] {
		if r.UpdatedAt > updated {
			updated = r.UpdatedAt
		}
	}
	return updated, nil
}

// Close is a no-op for MemStore.
func (m *MemStore) Close() error {
	return nil
}
