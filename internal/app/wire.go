package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/services/identity"
	"meshtalk/internal/store"
)

// Wire bundles the stores and the identity service. It is enough for
// commands that do not talk to the network.
type Wire struct {
	Config   Config
	Log      zerolog.Logger
	KV       domain.KeyValueStore
	Identity *identity.Service
	PeerKeys domain.PeerKeyStore
	History  domain.CallHistoryStore
}

// NewWire builds the stores under cfg.Home, creating the directory.
func NewWire(cfg Config, log zerolog.Logger) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, domain.Wrap(domain.ErrStorage, err)
	}
	kem, err := crypto.LookupKEM(cfg.KEM)
	if err != nil {
		return nil, err
	}

	kv := store.NewKVFileStore(cfg.Home)
	ids := identity.New(store.NewIdentityKVStore(kv, cfg.Passphrase), kem, log.With().Str("component", "identity").Logger())

	return &Wire{
		Config:   cfg,
		Log:      log,
		KV:       kv,
		Identity: ids,
		PeerKeys: store.NewPeerKeyFileStore(cfg.Home),
		History:  store.NewCallHistoryFileStore(cfg.Home),
	}, nil
}

// LoadIdentity returns the stored identity, or ErrNotInitialized when the
// node has none yet.
func (w *Wire) LoadIdentity() (domain.Identity, error) {
	id, ok, err := w.Identity.Load()
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: no identity in %s; run init", domain.ErrNotInitialized, w.Config.Home)
	}
	return id, nil
}

// Init loads the identity, generating one on first run.
func (w *Wire) Init(ctx context.Context) (domain.Identity, error) {
	return w.Identity.LoadOrCreate(ctx)
}
