package types

import "time"

// Identity is the node's long-term asymmetric key pair. Keys are encoded by
// the KEM named in KEM.
type Identity struct {
	NodeID     NodeID    `json:"node_id"`
	KEM        string    `json:"kem"`
	PublicKey  []byte    `json:"public_key"`
	PrivateKey []byte    `json:"private_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsZero reports whether the identity holds no key material.
func (id Identity) IsZero() bool { return len(id.PublicKey) == 0 }
