package store

import (
	"path/filepath"
	"sync"

	"meshtalk/internal/domain"
)

const kvFilename = "kv.json"

// KVFileStore is a string key/value store kept in a single JSON file.
type KVFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewKVFileStore returns a KVFileStore rooted at dir.
func NewKVFileStore(dir string) *KVFileStore {
	return &KVFileStore{dir: dir}
}

// GetString returns the value stored under key and whether it was present.
func (s *KVFileStore) GetString(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{}
	if err := readJSON(filepath.Join(s.dir, kvFilename), &values); err != nil {
		return "", false, domain.Wrap(domain.ErrStorage, err)
	}
	v, ok := values[key]
	return v, ok, nil
}

// SetString stores value under key, replacing any previous value.
func (s *KVFileStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, kvFilename)
	values := map[string]string{}
	if err := readJSON(path, &values); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	values[key] = value
	if err := writeJSON(path, values, 0o600); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	return nil
}

// MemoryKV is an in-process KeyValueStore.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) GetString(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

var (
	_ domain.KeyValueStore = (*KVFileStore)(nil)
	_ domain.KeyValueStore = (*MemoryKV)(nil)
)
