package interfaces

import (
	"context"

	"github.com/pion/webrtc/v4"

	domaintypes "meshtalk/internal/domain/types"
)

// MediaEngine creates the per-call media peer. Audio handling lives behind it.
type MediaEngine interface {
	// NewPeer returns a media peer for a call with peer. onCandidate receives
	// locally gathered ICE candidates and may be called from any goroutine.
	NewPeer(
		ctx context.Context,
		peer domaintypes.NodeID,
		onCandidate func(webrtc.ICECandidateInit),
	) (MediaPeer, error)
}

// MediaPeer is the description and connectivity state of one call.
type MediaPeer interface {
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	Close() error
}
