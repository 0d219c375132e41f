package interfaces

import (
	"context"

	domaintypes "meshtalk/internal/domain/types"
)

// KeyStore owns the node's asymmetric identity.
type KeyStore interface {
	GenerateIdentity(ctx context.Context) (domaintypes.Identity, error)
	Load() (domaintypes.Identity, bool, error)
	Save(id domaintypes.Identity) error
	PublicKey() ([]byte, error)
	PrivateKey() ([]byte, error)
	NodeID() (domaintypes.NodeID, error)
}

// Directory resolves peer public keys.
type Directory interface {
	Publish(ctx context.Context) error
	Resolve(ctx context.Context, node domaintypes.NodeID) (domaintypes.PeerKey, error)
	Pin(key domaintypes.PeerKey) error
}

// SignalSender delivers call-control messages to a peer.
type SignalSender interface {
	SendSignal(ctx context.Context, to domaintypes.NodeID, sig domaintypes.Signal) error
}

// SignalHandler consumes inbound call-control messages.
type SignalHandler interface {
	Handle(ctx context.Context, from domaintypes.NodeID, sig domaintypes.Signal) error
	// Fail terminates the live session with from after a transport or
	// decoding failure.
	Fail(from domaintypes.NodeID, cause error) error
}

// CallService drives the local side of calls.
type CallService interface {
	SignalHandler
	InitiateCall(ctx context.Context, peer domaintypes.NodeID) error
	AcceptCall(ctx context.Context) error
	RejectCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	State(peer domaintypes.NodeID) domaintypes.CallState
	Session(peer domaintypes.NodeID) (domaintypes.SessionRecord, bool)
	Active() (domaintypes.NodeID, bool)
	Subscribe(buffer int) (<-chan domaintypes.CallEvent, func())
}

// MessageService encrypts, sends, receives and dispatches payloads.
type MessageService interface {
	SignalSender
	Send(
		ctx context.Context,
		to domaintypes.NodeID,
		kind domaintypes.PayloadKind,
		body []byte,
	) (domaintypes.Delivery, error)
	Deliver(from domaintypes.NodeID, payload []byte)
	Run(ctx context.Context) error
	Subscribe(buffer int) (<-chan domaintypes.InboundMessage, func())
}
