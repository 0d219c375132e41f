package types

import "time"

// PeerKey is a peer's published public key as cached by the key directory.
type PeerKey struct {
	NodeID    NodeID    `json:"node_id"`
	KEM       string    `json:"kem"`
	PublicKey []byte    `json:"public_key"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}
