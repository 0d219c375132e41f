package store

import (
	"path/filepath"
	"sort"
	"sync"

	"meshtalk/internal/domain"
)

const peerKeysFilename = "peer_keys.json"

// PeerKeyFileStore caches peers' public keys on disk.
type PeerKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPeerKeyFileStore returns a PeerKeyFileStore rooted at dir.
func NewPeerKeyFileStore(dir string) *PeerKeyFileStore {
	return &PeerKeyFileStore{dir: dir}
}

// SavePeerKey writes or replaces the cached key for key.NodeID.
func (s *PeerKeyFileStore) SavePeerKey(key domain.PeerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, peerKeysFilename)
	keys := map[domain.NodeID]domain.PeerKey{}
	if err := readJSON(path, &keys); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	keys[key.NodeID] = key
	if err := writeJSON(path, keys, 0o600); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	return nil
}

// LoadPeerKey returns the cached key and whether it was present.
func (s *PeerKeyFileStore) LoadPeerKey(node domain.NodeID) (domain.PeerKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[domain.NodeID]domain.PeerKey{}
	if err := readJSON(filepath.Join(s.dir, peerKeysFilename), &keys); err != nil {
		return domain.PeerKey{}, false, domain.Wrap(domain.ErrStorage, err)
	}
	k, ok := keys[node]
	return k, ok, nil
}

// ListPeerKeys returns every cached key ordered by node id.
func (s *PeerKeyFileStore) ListPeerKeys() ([]domain.PeerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := map[domain.NodeID]domain.PeerKey{}
	if err := readJSON(filepath.Join(s.dir, peerKeysFilename), &keys); err != nil {
		return nil, domain.Wrap(domain.ErrStorage, err)
	}
	out := make([]domain.PeerKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// Compile-time assertion that PeerKeyFileStore implements domain.PeerKeyStore.
var _ domain.PeerKeyStore = (*PeerKeyFileStore)(nil)
