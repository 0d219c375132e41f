// Package wire encodes what MeshTalk nodes exchange: envelope JSON, the
// decrypted payload wrapper, and signaling messages.
//
// Envelope
//
//	{"encrypted_key": b64, "encrypted_data": b64(nonce || ciphertext || tag)}
//
// A degraded envelope adds "mode":"degraded" and leaves encrypted_key empty.
// A payload split across several envelopes is sent as a JSON array of them.
//
// Payload
//
//	{"type": "webrtc_signal" | "text" | "voice", "data": {...}}
//
// With "encoding":"lz4", data is a base64 string of an lz4 frame holding the
// JSON object.
package wire
