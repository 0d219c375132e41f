package types

import "context"

// EnvelopeMode labels the protection an envelope actually carries.
type EnvelopeMode string

const (
	// ModePrimary: key wrapped under the recipient's public key.
	ModePrimary EnvelopeMode = "primary"
	// ModeDegraded: key derived from the recipient id only. No forward
	// secrecy and deterministic keying; never selected implicitly.
	ModeDegraded EnvelopeMode = "degraded"
)

// Envelope carries a wrapped ephemeral key plus the keystream-encrypted payload.
type Envelope struct {
	EncryptedKey []byte
	Nonce        []byte
	Ciphertext   []byte
	Tag          []byte
	Mode         EnvelopeMode
}

// Degraded reports whether the envelope was produced by the degraded path.
func (e Envelope) Degraded() bool { return e.Mode == ModeDegraded }

// PacketKind classifies relay traffic for TTL selection.
type PacketKind string

const (
	PacketText      PacketKind = "text"
	PacketVoice     PacketKind = "voice"
	PacketSignal    PacketKind = "signal"
	PacketDiscovery PacketKind = "discovery"
)

// DefaultTTL returns the hop budget for packets of kind k.
func (k PacketKind) DefaultTTL() int {
	switch k {
	case PacketVoice, PacketDiscovery:
		return 1
	default:
		return 3
	}
}

type packetKindKey struct{}

// WithPacketKind tags ctx with the kind of packet being sent.
func WithPacketKind(ctx context.Context, k PacketKind) context.Context {
	return context.WithValue(ctx, packetKindKey{}, k)
}

// PacketKindFrom returns the kind tagged on ctx, or PacketText.
func PacketKindFrom(ctx context.Context) PacketKind {
	if k, ok := ctx.Value(packetKindKey{}).(PacketKind); ok {
		return k
	}
	return PacketText
}

// Packet is the relay's store-and-forward unit. Payload is opaque to relays.
type Packet struct {
	ID        string     `json:"id"`
	From      NodeID     `json:"from"`
	To        NodeID     `json:"to"`
	Kind      PacketKind `json:"kind,omitempty"`
	Payload   []byte     `json:"payload"`
	Timestamp int64      `json:"timestamp"`
	TTL       int        `json:"ttl"`
}

// InboundMessage is an application payload after decryption and dispatch.
type InboundMessage struct {
	ID        string       `json:"id"`
	From      NodeID       `json:"from"`
	Kind      PayloadKind  `json:"kind"`
	Body      []byte       `json:"body"`
	Codec     string       `json:"codec,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Mode      EnvelopeMode `json:"mode"`
}

// Delivery reports how an outbound payload was protected and split.
type Delivery struct {
	Mode       EnvelopeMode
	Chunks     int
	Compressed bool
}
