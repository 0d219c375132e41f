package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// X25519Name identifies ephemeral-static X25519 with ChaCha20-Poly1305 key
// wrapping.
const X25519Name = "x25519"

var x25519WrapInfo = []byte("meshtalk/x25519/wrap")

var errShortX25519Wrap = errors.New("crypto: x25519 wrapped key too short")

// X25519 wraps keys as ephemeral_pub || AEAD(hkdf(dh), key). Every wrap uses
// a fresh ephemeral key, so the wrapping key is never reused.
type X25519 struct{}

// NewX25519 returns the X25519 KEM.
func NewX25519() *X25519 { return &X25519{} }

func (x *X25519) Name() string { return X25519Name }

// GenerateKeyPair returns a fresh Curve25519 key pair. The private key is
// clamped per RFC 7748.
func (x *X25519) GenerateKeyPair() (pub, priv []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, err
	}
	clamp(priv)
	if pub, err = curve25519.X25519(priv, curve25519.Basepoint); err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (x *X25519) Wrap(pub, key []byte) ([]byte, error) {
	ephPub, ephPriv, err := x.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer Wipe(ephPriv)
	shared, err := curve25519.X25519(ephPriv, pub)
	if err != nil {
		return nil, err
	}
	defer Wipe(shared)

	aead, err := x25519AEAD(shared, ephPub, pub)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Seal(ephPub, nonce[:], key, ephPub), nil
}

func (x *X25519) Unwrap(priv, wrapped []byte) ([]byte, error) {
	if len(wrapped) <= curve25519.PointSize+chacha20poly1305.Overhead {
		return nil, errShortX25519Wrap
	}
	ephPub := wrapped[:curve25519.PointSize]
	shared, err := curve25519.X25519(priv, ephPub)
	if err != nil {
		return nil, err
	}
	defer Wipe(shared)
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	aead, err := x25519AEAD(shared, ephPub, pub)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Open(nil, nonce[:], wrapped[curve25519.PointSize:], ephPub)
}

// x25519AEAD binds the wrapping key to both public keys.
func x25519AEAD(shared, ephPub, pub []byte) (cipher.AEAD, error) {
	salt := make([]byte, 0, len(ephPub)+len(pub))
	salt = append(append(salt, ephPub...), pub...)
	wk := make([]byte, chacha20poly1305.KeySize)
	defer Wipe(wk)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, x25519WrapInfo), wk); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(wk)
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

var _ KEM = (*X25519)(nil)
