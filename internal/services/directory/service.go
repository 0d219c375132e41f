package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
)

var (
	// ErrKeyMismatch is returned when a public key does not hash to the node
	// id it is published under.
	ErrKeyMismatch = errors.New("public key does not match node id")

	errNoRelay = errors.New("no directory relay configured")
)

// Service resolves peer public keys through a local cache backed by a relay
// directory, and publishes our own key there.
type Service struct {
	keys   domain.KeyStore
	cache  domain.PeerKeyStore
	client domain.DirectoryClient
	kem    string
	log    zerolog.Logger
	now    func() time.Time
}

// New returns a directory. client may be nil, in which case only cached and
// pinned keys resolve.
func New(
	keys domain.KeyStore,
	cache domain.PeerKeyStore,
	client domain.DirectoryClient,
	kem string,
	log zerolog.Logger,
) *Service {
	return &Service{keys: keys, cache: cache, client: client, kem: kem, log: log, now: time.Now}
}

// Publish uploads our public key to the relay directory.
func (s *Service) Publish(ctx context.Context) error {
	if s.client == nil {
		return domain.Wrap(domain.ErrTransport, errNoRelay)
	}
	pub, err := s.keys.PublicKey()
	if err != nil {
		return err
	}
	node, err := s.keys.NodeID()
	if err != nil {
		return err
	}
	if err := s.client.PublishKey(ctx, domain.PeerKey{NodeID: node, KEM: s.kem, PublicKey: pub}); err != nil {
		return err
	}
	s.log.Info().Str("node", node.String()).Msg("public key published")
	return nil
}

// Resolve returns the public key of node, consulting the cache first.
// Unknown nodes yield domain.ErrPeerKeyNotFound.
func (s *Service) Resolve(ctx context.Context, node domain.NodeID) (domain.PeerKey, error) {
	k, ok, err := s.cache.LoadPeerKey(node)
	if err != nil {
		return domain.PeerKey{}, err
	}
	if ok {
		return k, nil
	}
	if s.client == nil {
		return domain.PeerKey{}, fmt.Errorf("%w: %s", domain.ErrPeerKeyNotFound, node)
	}

	k, err = s.client.FetchKey(ctx, node)
	if err != nil {
		return domain.PeerKey{}, err
	}
	if err := s.check(node, k); err != nil {
		return domain.PeerKey{}, err
	}
	k.NodeID = node
	k.FetchedAt = s.now().UTC()
	if err := s.cache.SavePeerKey(k); err != nil {
		s.log.Warn().Err(err).Str("peer", node.String()).Msg("cache peer key")
	}
	return k, nil
}

// Pin stores a key obtained out of band. An empty NodeID is derived from the
// key.
func (s *Service) Pin(key domain.PeerKey) error {
	if len(key.PublicKey) == 0 {
		return fmt.Errorf("pin: empty public key")
	}
	if key.NodeID == "" {
		key.NodeID = crypto.NodeIDFor(key.PublicKey)
	}
	if err := s.check(key.NodeID, key); err != nil {
		return err
	}
	if key.KEM == "" {
		key.KEM = s.kem
	}
	if key.FetchedAt.IsZero() {
		key.FetchedAt = s.now().UTC()
	}
	return s.cache.SavePeerKey(key)
}

// check binds a fetched key to the node id it was requested for, so a relay
// cannot substitute its own key.
func (s *Service) check(node domain.NodeID, k domain.PeerKey) error {
	if got := crypto.NodeIDFor(k.PublicKey); got != node {
		return fmt.Errorf("%w: %s hashes to %s", ErrKeyMismatch, node, got)
	}
	if k.KEM != "" && s.kem != "" && k.KEM != s.kem {
		return fmt.Errorf("%w: peer %s uses %q", domain.ErrUnknownKEM, node, k.KEM)
	}
	return nil
}

var _ domain.Directory = (*Service)(nil)
