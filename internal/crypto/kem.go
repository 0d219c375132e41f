package crypto

import (
	"fmt"
	"sort"

	"meshtalk/internal/domain"
)

// KEM is the pluggable asymmetric step that protects the per-message key.
// Keys are exchanged in the KEM's own binary encoding.
type KEM interface {
	// Name is the stable identifier stored alongside keys.
	Name() string
	GenerateKeyPair() (pub, priv []byte, err error)
	// Wrap protects key for the holder of pub.
	Wrap(pub, key []byte) ([]byte, error)
	// Unwrap recovers a key wrapped for priv.
	Unwrap(priv, wrapped []byte) ([]byte, error)
}

// DefaultKEM names the KEM used when none is configured.
const DefaultKEM = RSAOAEPName

var kems = map[string]func() KEM{
	RSAOAEPName:   func() KEM { return NewRSAOAEP(rsaDefaultBits) },
	Kyber1024Name: func() KEM { return NewKyber1024() },
	X25519Name:    func() KEM { return NewX25519() },
}

// LookupKEM returns the KEM registered under name. An empty name selects
// DefaultKEM.
func LookupKEM(name string) (KEM, error) {
	if name == "" {
		name = DefaultKEM
	}
	mk, ok := kems[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKEM, name)
	}
	return mk(), nil
}

// KEMNames lists the registered KEM identifiers in sorted order.
func KEMNames() []string {
	out := make([]string, 0, len(kems))
	for n := range kems {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
