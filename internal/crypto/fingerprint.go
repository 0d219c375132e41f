package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"meshtalk/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// NodeIDFor derives the stable node id of the holder of pub.
func NodeIDFor(pub []byte) domain.NodeID {
	return domain.NodeID(Fingerprint(pub))
}
