// Package mesh holds the relay-side routing state: a dedup window keyed by
// packet id, the registry of nodes seen by this relay and the TTL-bounded
// forwarder that passes packets to neighbour relays.
package mesh
