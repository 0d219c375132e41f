package interfaces

import (
	"context"

	domaintypes "meshtalk/internal/domain/types"
)

// DeliverFunc is invoked once per arrival of an inbound payload. The same
// payload may arrive more than once.
type DeliverFunc func(from domaintypes.NodeID, payload []byte)

// Transport moves opaque payloads between nodes with no ordering guarantee.
type Transport interface {
	Send(ctx context.Context, to domaintypes.NodeID, payload []byte) error
	// Receive delivers inbound payloads until ctx is done or the transport fails.
	Receive(ctx context.Context, deliver DeliverFunc) error
}

// DirectoryClient publishes and fetches node public keys on a relay.
type DirectoryClient interface {
	PublishKey(ctx context.Context, key domaintypes.PeerKey) error
	FetchKey(ctx context.Context, node domaintypes.NodeID) (domaintypes.PeerKey, error)
}
