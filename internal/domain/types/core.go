package types

// NodeID is the stable, opaque identifier of a mesh node. It is derived from
// the node's public key fingerprint.
type NodeID string

// String returns the string form of the node identifier.
func (id NodeID) String() string { return string(id) }

// Broadcast addresses every node known to a relay.
const Broadcast NodeID = "broadcast"

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// CallID identifies one call negotiation between two peers.
type CallID string

// String returns the string form of the call identifier.
func (id CallID) String() string { return string(id) }
