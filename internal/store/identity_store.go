package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"meshtalk/internal/domain"
)

const identityKey = "identity"

// IdentityKVStore persists the identity as one value in a KeyValueStore. With
// a passphrase the value is the base64 of a sealed blob; without one it is
// plain JSON.
type IdentityKVStore struct {
	kv         domain.KeyValueStore
	passphrase string
}

// NewIdentityKVStore returns an IdentityKVStore over kv.
func NewIdentityKVStore(kv domain.KeyValueStore, passphrase string) *IdentityKVStore {
	return &IdentityKVStore{kv: kv, passphrase: passphrase}
}

// SaveIdentity writes id, overwriting any stored identity.
func (s *IdentityKVStore) SaveIdentity(id domain.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	value := string(raw)
	if s.passphrase != "" {
		N, r, p := scryptParamsDefault()
		sealed, err := encrypt(s.passphrase, raw, N, r, p)
		if err != nil {
			return domain.Wrap(domain.ErrStorage, err)
		}
		value = base64.StdEncoding.EncodeToString(sealed)
	}
	return s.kv.SetString(identityKey, value)
}

// LoadIdentity reads the identity. A missing identity is reported with
// ok == false and no error.
func (s *IdentityKVStore) LoadIdentity() (domain.Identity, bool, error) {
	value, ok, err := s.kv.GetString(identityKey)
	if err != nil || !ok {
		return domain.Identity{}, false, err
	}
	raw := []byte(value)
	if s.passphrase != "" {
		sealed, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return domain.Identity{}, false, domain.Wrap(domain.ErrStorage, err)
		}
		if raw, err = decrypt(s.passphrase, sealed); err != nil {
			return domain.Identity{}, false, domain.Wrap(domain.ErrStorage, err)
		}
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, false, domain.Wrap(domain.ErrStorage, fmt.Errorf("decode identity: %w", err))
	}
	return id, true, nil
}

// Compile-time assertion that IdentityKVStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityKVStore)(nil)
