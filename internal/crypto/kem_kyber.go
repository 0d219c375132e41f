package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Kyber1024Name identifies Kyber-1024 encapsulation with ChaCha20-Poly1305
// key wrapping.
const Kyber1024Name = "kyber1024"

var kyberWrapInfo = []byte("meshtalk/kyber1024/wrap")

var errShortKyberWrap = errors.New("crypto: kyber wrapped key too short")

// Kyber1024 wraps keys as kem_ciphertext || AEAD(hkdf(shared), key).
type Kyber1024 struct{}

// NewKyber1024 returns the Kyber-1024 KEM.
func NewKyber1024() *Kyber1024 { return &Kyber1024{} }

func (k *Kyber1024) Name() string { return Kyber1024Name }

func (k *Kyber1024) GenerateKeyPair() (pub, priv []byte, err error) {
	scheme := kyber1024.Scheme()
	pk, sk, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	if pub, err = pk.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if priv, err = sk.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (k *Kyber1024) Wrap(pub, key []byte) ([]byte, error) {
	scheme := kyber1024.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return nil, err
	}
	ct, shared, err := scheme.Encapsulate(pk)
	if err != nil {
		return nil, err
	}
	defer Wipe(shared)

	aead, err := kyberAEAD(shared)
	if err != nil {
		return nil, err
	}
	// Zero nonce: the wrapping key is fresh per encapsulation.
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Seal(ct, nonce[:], key, ct), nil
}

func (k *Kyber1024) Unwrap(priv, wrapped []byte) ([]byte, error) {
	scheme := kyber1024.Scheme()
	n := scheme.CiphertextSize()
	if len(wrapped) <= n {
		return nil, errShortKyberWrap
	}
	sk, err := scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	ct := wrapped[:n]
	shared, err := scheme.Decapsulate(sk, ct)
	if err != nil {
		return nil, err
	}
	defer Wipe(shared)

	aead, err := kyberAEAD(shared)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Open(nil, nonce[:], wrapped[n:], ct)
}

func kyberAEAD(shared []byte) (cipher.AEAD, error) {
	wk := make([]byte, chacha20poly1305.KeySize)
	defer Wipe(wk)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, kyberWrapInfo), wk); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(wk)
}

var _ KEM = (*Kyber1024)(nil)
