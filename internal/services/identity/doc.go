// Package identity owns the node's long-term key pair.
//
// It generates the pair with a pluggable KEM, persists it through a
// domain.IdentityStore and serves the public key, private key and node id to
// the crypto engine and the key directory.
package identity
