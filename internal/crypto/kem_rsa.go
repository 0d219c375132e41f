package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
)

// RSAOAEPName identifies RSA-2048 with OAEP/SHA-256 key wrapping.
const RSAOAEPName = "rsa-oaep-2048"

const rsaDefaultBits = 2048

var (
	errNotRSAPublic  = errors.New("crypto: public key is not RSA")
	errNotRSAPrivate = errors.New("crypto: private key is not RSA")
)

// RSAOAEP wraps keys with RSA-OAEP. Public keys are PKIX DER, private keys
// PKCS#8 DER.
type RSAOAEP struct {
	bits int
}

// NewRSAOAEP returns an RSA KEM generating keys of the given size.
func NewRSAOAEP(bits int) *RSAOAEP { return &RSAOAEP{bits: bits} }

func (k *RSAOAEP) Name() string { return RSAOAEPName }

func (k *RSAOAEP) GenerateKeyPair() (pub, priv []byte, err error) {
	sk, err := rsa.GenerateKey(rand.Reader, k.bits)
	if err != nil {
		return nil, nil, err
	}
	pub, err = x509.MarshalPKIXPublicKey(&sk.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	priv, err = x509.MarshalPKCS8PrivateKey(sk)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (k *RSAOAEP) Wrap(pub, key []byte) ([]byte, error) {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pk, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSAPublic
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pk, key, nil)
}

func (k *RSAOAEP) Unwrap(priv, wrapped []byte) ([]byte, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	sk, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errNotRSAPrivate
	}
	return rsa.DecryptOAEP(sha256.New(), nil, sk, wrapped, nil)
}

var _ KEM = (*RSAOAEP)(nil)
