package interfaces

import domaintypes "meshtalk/internal/domain/types"

// KeyValueStore is the small string store the node persists its state in.
type KeyValueStore interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
}

// IdentityStore persists the node's long-term identity.
type IdentityStore interface {
	SaveIdentity(id domaintypes.Identity) error
	LoadIdentity() (domaintypes.Identity, bool, error)
}

// PeerKeyStore caches public keys of peers we have talked to.
type PeerKeyStore interface {
	SavePeerKey(key domaintypes.PeerKey) error
	LoadPeerKey(node domaintypes.NodeID) (domaintypes.PeerKey, bool, error)
	ListPeerKeys() ([]domaintypes.PeerKey, error)
}

// CallHistoryStore keeps finished calls, newest last.
type CallHistoryStore interface {
	AppendCallRecord(rec domaintypes.CallRecord) error
	ListCallRecords(limit int) ([]domaintypes.CallRecord, error)
}
