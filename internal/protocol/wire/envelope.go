package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
)

type envelopeJSON struct {
	EncryptedKey  []byte `json:"encrypted_key"`
	EncryptedData []byte `json:"encrypted_data"`
	Mode          string `json:"mode,omitempty"`
}

// EncodeEnvelope renders env in the wire format.
func EncodeEnvelope(env domain.Envelope) ([]byte, error) {
	return json.Marshal(toJSON(env))
}

// DecodeEnvelope parses one wire envelope. Structural problems are reported
// as domain.ErrMalformedEnvelope.
func DecodeEnvelope(b []byte) (domain.Envelope, error) {
	var ej envelopeJSON
	if err := json.Unmarshal(b, &ej); err != nil {
		return domain.Envelope{}, domain.Wrap(domain.ErrMalformedEnvelope, err)
	}
	return fromJSON(ej)
}

// EncodeEnvelopes renders a single envelope as an object and several as an
// array.
func EncodeEnvelopes(envs []domain.Envelope) ([]byte, error) {
	switch len(envs) {
	case 0:
		return nil, fmt.Errorf("%w: no envelopes", domain.ErrEncryption)
	case 1:
		return EncodeEnvelope(envs[0])
	}
	out := make([]envelopeJSON, len(envs))
	for i, env := range envs {
		out[i] = toJSON(env)
	}
	return json.Marshal(out)
}

// DecodeEnvelopes parses either form written by EncodeEnvelopes.
func DecodeEnvelopes(b []byte) ([]domain.Envelope, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		env, err := DecodeEnvelope(b)
		if err != nil {
			return nil, err
		}
		return []domain.Envelope{env}, nil
	}
	var list []envelopeJSON
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, domain.Wrap(domain.ErrMalformedEnvelope, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty envelope list", domain.ErrMalformedEnvelope)
	}
	out := make([]domain.Envelope, len(list))
	for i, ej := range list {
		env, err := fromJSON(ej)
		if err != nil {
			return nil, fmt.Errorf("envelope %d: %w", i, err)
		}
		out[i] = env
	}
	return out, nil
}

func toJSON(env domain.Envelope) envelopeJSON {
	data := make([]byte, 0, len(env.Nonce)+len(env.Ciphertext)+len(env.Tag))
	data = append(data, env.Nonce...)
	data = append(data, env.Ciphertext...)
	data = append(data, env.Tag...)

	ej := envelopeJSON{EncryptedKey: env.EncryptedKey, EncryptedData: data}
	if env.Degraded() {
		ej.Mode = string(domain.ModeDegraded)
		ej.EncryptedKey = []byte{}
	}
	if ej.EncryptedKey == nil {
		ej.EncryptedKey = []byte{}
	}
	return ej
}

func fromJSON(ej envelopeJSON) (domain.Envelope, error) {
	var mode domain.EnvelopeMode
	switch ej.Mode {
	case "", string(domain.ModePrimary):
		mode = domain.ModePrimary
		if len(ej.EncryptedKey) == 0 {
			return domain.Envelope{}, fmt.Errorf("%w: missing encrypted_key", domain.ErrMalformedEnvelope)
		}
	case string(domain.ModeDegraded):
		mode = domain.ModeDegraded
	default:
		return domain.Envelope{}, fmt.Errorf("%w: unknown mode %q", domain.ErrMalformedEnvelope, ej.Mode)
	}

	d := ej.EncryptedData
	if len(d) < crypto.NonceSize+crypto.TagSize {
		return domain.Envelope{}, fmt.Errorf("%w: encrypted_data is %d bytes", domain.ErrMalformedEnvelope, len(d))
	}
	return domain.Envelope{
		EncryptedKey: ej.EncryptedKey,
		Nonce:        d[:crypto.NonceSize],
		Ciphertext:   d[crypto.NonceSize : len(d)-crypto.TagSize],
		Tag:          d[len(d)-crypto.TagSize:],
		Mode:         mode,
	}, nil
}
