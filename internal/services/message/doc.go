// Package message sends and receives encrypted payloads.
//
// Outbound payloads are wrapped, optionally lz4-compressed, encrypted into
// one envelope per 8160-byte chunk and handed to a domain.Transport. Inbound
// payloads are decoded, opened with the local identity and dispatched:
// signaling to the session machine, text and voice to subscribers. Degraded
// mode is used only when enabled and always reported in the result.
package message
