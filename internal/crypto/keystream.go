package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

const (
	// KeySize is the length of the per-message symmetric key.
	KeySize = 32
	// NonceSize is the length of the per-message nonce.
	NonceSize = 16
	// BlockSize is the length of one keystream block (one HMAC-SHA256 output).
	BlockSize = sha256.Size
	// TagSize is the length of the authentication tag.
	TagSize = sha256.Size
	// MaxBlocks is bounded by the single-byte block counter.
	MaxBlocks = 255
	// MaxPlaintext is the largest payload a single envelope can carry.
	// Larger payloads are split with EncryptChunks.
	MaxPlaintext = MaxBlocks * BlockSize
)

// ErrKeystreamTooLong is returned when more than MaxPlaintext bytes of
// keystream are requested.
var ErrKeystreamTooLong = errors.New("crypto: keystream request exceeds 255 blocks")

// Keystream expands key and nonce into n pseudorandom bytes:
//
//	block0 = HMAC(key, nonce || 0x00)
//	blocki = HMAC(key, block(i-1) || nonce || i)
func Keystream(key, nonce []byte, n int) ([]byte, error) {
	if n < 0 || n > MaxPlaintext {
		return nil, ErrKeystreamTooLong
	}
	out := make([]byte, 0, n+BlockSize)
	mac := hmac.New(sha256.New, key)

	mac.Write(nonce)
	mac.Write([]byte{0})
	block := mac.Sum(nil)
	out = append(out, block...)

	for i := 1; len(out) < n; i++ {
		mac.Reset()
		mac.Write(block)
		mac.Write(nonce)
		mac.Write([]byte{byte(i)})
		block = mac.Sum(block[:0])
		out = append(out, block...)
	}
	return out[:n], nil
}

// xorKeystream returns in XOR keystream(key, nonce).
func xorKeystream(key, nonce, in []byte) ([]byte, error) {
	ks, err := Keystream(key, nonce, len(in))
	if err != nil {
		return nil, err
	}
	defer Wipe(ks)
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ ks[i]
	}
	return out, nil
}

// envelopeTag authenticates nonce || ciphertext under key.
func envelopeTag(key, nonce, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}
