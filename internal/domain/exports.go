package domain

import (
	"context"

	interfaces "meshtalk/internal/domain/interfaces"
	types "meshtalk/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	NodeID         = types.NodeID
	Fingerprint    = types.Fingerprint
	CallID         = types.CallID
	Identity       = types.Identity
	PeerKey        = types.PeerKey
	Envelope       = types.Envelope
	EnvelopeMode   = types.EnvelopeMode
	Delivery       = types.Delivery
	Packet         = types.Packet
	PacketKind     = types.PacketKind
	InboundMessage = types.InboundMessage
	PayloadKind    = types.PayloadKind
	SignalKind     = types.SignalKind
	Signal         = types.Signal
	Offer          = types.Offer
	Answer         = types.Answer
	ICECandidate   = types.ICECandidate
	EndCall        = types.EndCall
	CallState      = types.CallState
	Direction      = types.Direction
	SessionRecord  = types.SessionRecord
	CallRecord     = types.CallRecord
	CallEvent      = types.CallEvent
	CallEventType  = types.CallEventType
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyValueStore    = interfaces.KeyValueStore
	IdentityStore    = interfaces.IdentityStore
	PeerKeyStore     = interfaces.PeerKeyStore
	CallHistoryStore = interfaces.CallHistoryStore
	KeyStore         = interfaces.KeyStore
	Directory        = interfaces.Directory
	DirectoryClient  = interfaces.DirectoryClient
	SignalSender     = interfaces.SignalSender
	SignalHandler    = interfaces.SignalHandler
	CallService      = interfaces.CallService
	MessageService   = interfaces.MessageService
	Transport        = interfaces.Transport
	DeliverFunc      = interfaces.DeliverFunc
	MediaEngine      = interfaces.MediaEngine
	MediaPeer        = interfaces.MediaPeer
)

// Constants re-exported from the types subpackage.
const (
	Broadcast = types.Broadcast

	ModePrimary  = types.ModePrimary
	ModeDegraded = types.ModeDegraded

	PayloadSignal = types.PayloadSignal
	PayloadText   = types.PayloadText
	PayloadVoice  = types.PayloadVoice

	StateIdle      = types.StateIdle
	StateOffering  = types.StateOffering
	StateRinging   = types.StateRinging
	StateConnected = types.StateConnected
	StateEnded     = types.StateEnded
	StateFailed    = types.StateFailed

	Outgoing = types.Outgoing
	Incoming = types.Incoming

	SignalOffer        = types.SignalOffer
	SignalAnswer       = types.SignalAnswer
	SignalICECandidate = types.SignalICECandidate
	SignalEndCall      = types.SignalEndCall

	ReasonHangup   = types.ReasonHangup
	ReasonRejected = types.ReasonRejected
	ReasonBusy     = types.ReasonBusy
	ReasonTimeout  = types.ReasonTimeout
	ReasonFailed   = types.ReasonFailed

	EventOutgoingCall = types.EventOutgoingCall
	EventIncomingCall = types.EventIncomingCall
	EventConnected    = types.EventConnected
	EventEnded        = types.EventEnded
	EventFailed       = types.EventFailed
	EventBusy         = types.EventBusy

	PacketText      = types.PacketText
	PacketVoice     = types.PacketVoice
	PacketSignal    = types.PacketSignal
	PacketDiscovery = types.PacketDiscovery
)

// WithPacketKind tags ctx with the kind of packet being sent.
func WithPacketKind(ctx context.Context, k PacketKind) context.Context {
	return types.WithPacketKind(ctx, k)
}

// PacketKindFrom returns the kind tagged on ctx, or PacketText.
func PacketKindFrom(ctx context.Context) PacketKind { return types.PacketKindFrom(ctx) }
