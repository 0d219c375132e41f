package identity

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service owns the node's asymmetric identity.
//
// The identity is generated once with the configured KEM, persisted through
// the IdentityStore and cached in memory for the life of the process.
type Service struct {
	store domain.IdentityStore
	kem   crypto.KEM
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.RWMutex
	current domain.Identity
}

// New returns an identity service backed by the given store. Identities are
// generated with kem.
func New(s domain.IdentityStore, kem crypto.KEM, log zerolog.Logger) *Service {
	return &Service{store: s, kem: kem, log: log, now: time.Now}
}

// GenerateIdentity creates a new key pair, saves it and makes it current.
// Key generation runs on its own goroutine so that ctx can abandon it.
func (s *Service) GenerateIdentity(ctx context.Context) (domain.Identity, error) {
	type result struct {
		pub, priv []byte
		err       error
	}
	done := make(chan result, 1)
	go func() {
		pub, priv, err := s.kem.GenerateKeyPair()
		done <- result{pub, priv, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return domain.Identity{}, domain.Wrap(domain.ErrKeyGeneration, ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return domain.Identity{}, domain.Wrap(domain.ErrKeyGeneration, r.err)
	}

	id := domain.Identity{
		NodeID:     crypto.NodeIDFor(r.pub),
		KEM:        s.kem.Name(),
		PublicKey:  r.pub,
		PrivateKey: r.priv,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.Save(id); err != nil {
		return domain.Identity{}, err
	}
	s.log.Info().Str("node", id.NodeID.String()).Str("kem", id.KEM).Msg("identity generated")
	return id, nil
}

// Load reads the persisted identity and caches it. A missing identity is
// reported with ok == false and no error.
func (s *Service) Load() (domain.Identity, bool, error) {
	id, ok, err := s.store.LoadIdentity()
	if err != nil {
		return domain.Identity{}, false, domain.Wrap(domain.ErrStorage, err)
	}
	if !ok {
		return domain.Identity{}, false, nil
	}
	if id.NodeID == "" {
		id.NodeID = crypto.NodeIDFor(id.PublicKey)
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return id, true, nil
}

// Save persists id, overwriting any previous identity, and makes it current.
func (s *Service) Save(id domain.Identity) error {
	if err := s.store.SaveIdentity(id); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

// LoadOrCreate returns the persisted identity, generating one on first run.
func (s *Service) LoadOrCreate(ctx context.Context) (domain.Identity, error) {
	id, ok, err := s.Load()
	if err != nil {
		return domain.Identity{}, err
	}
	if ok {
		if id.KEM != "" && id.KEM != s.kem.Name() {
			s.log.Warn().Str("stored", id.KEM).Str("configured", s.kem.Name()).
				Msg("stored identity uses a different kem; keeping stored identity")
		}
		return id, nil
	}
	return s.GenerateIdentity(ctx)
}

// Identity returns the current identity.
func (s *Service) Identity() (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.IsZero() {
		return domain.Identity{}, domain.ErrNotInitialized
	}
	return s.current, nil
}

// PublicKey returns the current public key.
func (s *Service) PublicKey() ([]byte, error) {
	id, err := s.Identity()
	if err != nil {
		return nil, err
	}
	return id.PublicKey, nil
}

// PrivateKey returns the current private key.
func (s *Service) PrivateKey() ([]byte, error) {
	id, err := s.Identity()
	if err != nil {
		return nil, err
	}
	return id.PrivateKey, nil
}

// NodeID returns the node id derived from the current public key.
func (s *Service) NodeID() (domain.NodeID, error) {
	id, err := s.Identity()
	if err != nil {
		return "", err
	}
	return id.NodeID, nil
}

// Fingerprint returns a short fingerprint of the current public key.
func (s *Service) Fingerprint() (domain.Fingerprint, error) {
	pub, err := s.PublicKey()
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(pub)), nil
}

// ValidatePassphrase enforces a basic strength policy on a new passphrase.
func ValidatePassphrase(passphrase string) error {
	if !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertions.
var (
	_ domain.KeyStore  = (*Service)(nil)
	_ crypto.KeySource = (*Service)(nil)
)
