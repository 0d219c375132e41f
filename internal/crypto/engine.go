package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"meshtalk/internal/domain"
)

var (
	// ErrPayloadTooLarge is returned by Encrypt for payloads over MaxPlaintext.
	ErrPayloadTooLarge = fmt.Errorf("payload exceeds %d-byte single-envelope ceiling", MaxPlaintext)

	errTagMismatch  = errors.New("authentication tag mismatch")
	errWrongPath    = errors.New("envelope mode does not match decryption path")
	errBadKeyLength = errors.New("unwrapped key has wrong length")
)

// KeySource supplies the local identity to Engine.Open.
type KeySource interface {
	PrivateKey() ([]byte, error)
	NodeID() (domain.NodeID, error)
}

// Engine performs envelope encryption. It holds no per-message state; the
// only configuration is the KEM and, for Open, the local key source.
type Engine struct {
	kem  KEM
	keys KeySource
	rand io.Reader
}

// NewEngine returns an engine wrapping keys with kem. keys may be nil when the
// engine is only used to encrypt.
func NewEngine(kem KEM, keys KeySource) *Engine {
	return &Engine{kem: kem, keys: keys, rand: rand.Reader}
}

// KEM returns the engine's key encapsulation mechanism.
func (e *Engine) KEM() KEM { return e.kem }

// Encrypt seals plaintext for the holder of recipientPub. A fresh key and nonce
// are drawn for every call.
func (e *Engine) Encrypt(plaintext, recipientPub []byte) (domain.Envelope, error) {
	if len(plaintext) > MaxPlaintext {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, ErrPayloadTooLarge)
	}
	key := make([]byte, KeySize)
	defer Wipe(key)
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(e.rand, key); err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, err)
	}
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, err)
	}

	wrapped, err := e.kem.Wrap(recipientPub, key)
	if err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, err)
	}
	env, err := seal(key, nonce, plaintext)
	if err != nil {
		return domain.Envelope{}, err
	}
	env.EncryptedKey = wrapped
	env.Mode = domain.ModePrimary
	return env, nil
}

// Decrypt opens a primary-mode envelope with the local private key.
func (e *Engine) Decrypt(env domain.Envelope, priv []byte) ([]byte, error) {
	if err := validate(env); err != nil {
		return nil, err
	}
	if env.Degraded() || len(env.EncryptedKey) == 0 {
		return nil, domain.Wrap(domain.ErrMalformedEnvelope, errWrongPath)
	}
	key, err := e.kem.Unwrap(priv, env.EncryptedKey)
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnknownRecipient, err)
	}
	defer Wipe(key)
	if len(key) != KeySize {
		return nil, domain.Wrap(domain.ErrUnknownRecipient, errBadKeyLength)
	}
	return open(key, env)
}

// Open decrypts env with the identity held by the engine's key source,
// choosing the path by the envelope's mode.
func (e *Engine) Open(env domain.Envelope) ([]byte, error) {
	if e.keys == nil {
		return nil, domain.ErrInitialization
	}
	if env.Degraded() {
		self, err := e.keys.NodeID()
		if err != nil {
			return nil, domain.Wrap(domain.ErrInitialization, err)
		}
		return e.DecryptDegraded(env, self)
	}
	priv, err := e.keys.PrivateKey()
	if err != nil {
		return nil, domain.Wrap(domain.ErrInitialization, err)
	}
	return e.Decrypt(env, priv)
}

// seal encrypts plaintext and computes the tag. The returned envelope has no
// wrapped key or mode set.
func seal(key, nonce, plaintext []byte) (domain.Envelope, error) {
	ct, err := xorKeystream(key, nonce, plaintext)
	if err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, err)
	}
	return domain.Envelope{
		Nonce:      nonce,
		Ciphertext: ct,
		Tag:        envelopeTag(key, nonce, ct),
	}, nil
}

// open checks the tag before touching the ciphertext.
func open(key []byte, env domain.Envelope) ([]byte, error) {
	want := envelopeTag(key, env.Nonce, env.Ciphertext)
	if !hmac.Equal(want, env.Tag) {
		return nil, domain.Wrap(domain.ErrMalformedEnvelope, errTagMismatch)
	}
	pt, err := xorKeystream(key, env.Nonce, env.Ciphertext)
	if err != nil {
		return nil, domain.Wrap(domain.ErrMalformedEnvelope, err)
	}
	return pt, nil
}

func validate(env domain.Envelope) error {
	switch {
	case len(env.Nonce) != NonceSize:
		return fmt.Errorf("%w: nonce is %d bytes", domain.ErrMalformedEnvelope, len(env.Nonce))
	case len(env.Tag) != TagSize:
		return fmt.Errorf("%w: tag is %d bytes", domain.ErrMalformedEnvelope, len(env.Tag))
	case len(env.Ciphertext) > MaxPlaintext:
		return fmt.Errorf("%w: ciphertext exceeds %d bytes", domain.ErrMalformedEnvelope, MaxPlaintext)
	}
	return nil
}
