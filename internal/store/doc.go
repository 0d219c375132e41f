// Package store provides persistence for MeshTalk's local state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files live under the configured home directory.
//
// The package includes:
//   - String key/value stores (KVFileStore, MemoryKV)
//   - The identity, kept in a key/value store and optionally sealed with a
//     passphrase via scrypt + ChaCha20-Poly1305 (IdentityKVStore)
//   - Cached peer public keys (PeerKeyFileStore)
//   - Call history (CallHistoryFileStore)
package store
