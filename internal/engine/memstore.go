package engine

import (
	"sort"
	"sync"

	"github.com/propertydex/propertydex-store/pkg/kv"
)

// Ensure MemStore satisfies the kv.Storage interface at compile time.
var _ kv.Storage = (*MemStore)(nil)

// MemStore is the thread-safe embedded storage engine.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string]string
	seq       uint64
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes a store.
// It accepts existing data (from Persistence.Load) and an optional persister.
func NewMemStore(initialData map[string]string, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]string)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// --- Interface Implementation ---

func (m *MemStore) GetItem(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return "", kv.ErrKeyNotFound
	}
	return val, nil
}

func (m *MemStore) SetItem(key, value string) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	m.mu.Lock()
	m.data[key] = value
	m.persistLocked()
	m.mu.Unlock()
	return nil
}

func (m *MemStore) RemoveItem(key string) error {
	m.mu.Lock()
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.persistLocked()
	}
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for k := range m.data {
		list = append(list, k)
	}
	sort.Strings(list)
	return list, nil
}

// persistLocked hands a copy of the current state to the persister in the background.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked() {
	if m.persister == nil {
		return
	}
	m.seq++
	seq := m.seq
	snapshot := make(map[string]string, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persister.Save(seq, snapshot)
	}()
}
