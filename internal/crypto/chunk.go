package crypto

import "meshtalk/internal/domain"

// EncryptChunks splits plaintext into MaxPlaintext-sized pieces and encrypts
// each with its own key and nonce. An empty plaintext yields one envelope.
func (e *Engine) EncryptChunks(plaintext, recipientPub []byte) ([]domain.Envelope, error) {
	return chunked(plaintext, func(p []byte) (domain.Envelope, error) {
		return e.Encrypt(p, recipientPub)
	})
}

// EncryptDegradedChunks is EncryptChunks for the degraded path.
func (e *Engine) EncryptDegradedChunks(plaintext []byte, recipient domain.NodeID) ([]domain.Envelope, error) {
	return chunked(plaintext, func(p []byte) (domain.Envelope, error) {
		return e.EncryptDegraded(p, recipient)
	})
}

// DecryptChunks reverses EncryptChunks. Envelopes must be in send order.
func (e *Engine) DecryptChunks(envs []domain.Envelope, priv []byte) ([]byte, error) {
	return joined(envs, func(env domain.Envelope) ([]byte, error) {
		return e.Decrypt(env, priv)
	})
}

// OpenChunks reverses EncryptChunks or EncryptDegradedChunks using the local
// identity. Mixed-mode sequences are rejected.
func (e *Engine) OpenChunks(envs []domain.Envelope) ([]byte, error) {
	return joined(envs, e.Open)
}

func chunked(plaintext []byte, enc func([]byte) (domain.Envelope, error)) ([]domain.Envelope, error) {
	n := (len(plaintext) + MaxPlaintext - 1) / MaxPlaintext
	if n == 0 {
		n = 1
	}
	out := make([]domain.Envelope, 0, n)
	for off := 0; off < len(plaintext) || len(out) == 0; off += MaxPlaintext {
		end := min(off+MaxPlaintext, len(plaintext))
		env, err := enc(plaintext[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

func joined(envs []domain.Envelope, dec func(domain.Envelope) ([]byte, error)) ([]byte, error) {
	if len(envs) == 0 {
		return nil, domain.ErrMalformedEnvelope
	}
	var out []byte
	for i, env := range envs {
		if env.Mode != envs[0].Mode {
			return nil, domain.Wrap(domain.ErrMalformedEnvelope, errWrongPath)
		}
		if i < len(envs)-1 && len(env.Ciphertext) != MaxPlaintext {
			return nil, domain.ErrMalformedEnvelope
		}
		pt, err := dec(env)
		if err != nil {
			return nil, err
		}
		out = append(out, pt...)
	}
	return out, nil
}
