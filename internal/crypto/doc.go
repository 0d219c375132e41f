// Package crypto implements MeshTalk's envelope encryption and the primitives
// around it.
//
// Contents
//
//   - Pluggable key encapsulation (KEM, LookupKEM): RSA-OAEP-2048 by default,
//     Kyber-1024 and ephemeral X25519 optionally
//   - HMAC-SHA256 keystream expansion (Keystream) and the envelope Engine
//     (Encrypt, Decrypt, Open, chunked variants)
//   - The labelled degraded path keyed by recipient id (EncryptDegraded)
//   - Hash and MAC helpers with constant-time verification (GenerateHash,
//     GenerateMAC, VerifyMAC)
//   - Short public-key fingerprints and node ids (Fingerprint, NodeIDFor)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Limits
//
// The keystream block counter is one byte, so one envelope carries at most
// MaxPlaintext (8160) bytes. Encrypt rejects larger inputs; EncryptChunks
// splits them across several envelopes.
//
// Every envelope carries HMAC-SHA256(K, nonce || ciphertext). Decryption
// verifies it before producing any plaintext.
package crypto
