package crypto

import (
	"crypto/sha256"
	"errors"
	"io"

	"meshtalk/internal/domain"
)

var degradedLabel = []byte("meshtalk/degraded/v1")

var errNoRecipient = errors.New("degraded mode needs a recipient id")

// EncryptDegraded seals plaintext under a key derived only from the recipient
// id. Anyone who knows the id can decrypt; there is no forward secrecy. The
// envelope is labelled ModeDegraded and callers must surface that label.
func (e *Engine) EncryptDegraded(plaintext []byte, recipient domain.NodeID) (domain.Envelope, error) {
	if recipient == "" {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, errNoRecipient)
	}
	if len(plaintext) > MaxPlaintext {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, ErrPayloadTooLarge)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrEncryption, err)
	}
	key := degradedKey(recipient)
	defer Wipe(key)

	env, err := seal(key, nonce, plaintext)
	if err != nil {
		return domain.Envelope{}, err
	}
	env.Mode = domain.ModeDegraded
	return env, nil
}

// DecryptDegraded opens a degraded envelope addressed to self.
func (e *Engine) DecryptDegraded(env domain.Envelope, self domain.NodeID) ([]byte, error) {
	if err := validate(env); err != nil {
		return nil, err
	}
	if !env.Degraded() {
		return nil, domain.Wrap(domain.ErrMalformedEnvelope, errWrongPath)
	}
	key := degradedKey(self)
	defer Wipe(key)
	return open(key, env)
}

func degradedKey(id domain.NodeID) []byte {
	h := sha256.New()
	h.Write(degradedLabel)
	h.Write([]byte(id))
	return h.Sum(nil)
}
