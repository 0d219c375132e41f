// Package pion implements the media collaborator with pion/webrtc. Each call
// gets one PeerConnection carrying a single send/receive audio transceiver.
package pion

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
)

// Engine creates PeerConnections with a shared configuration.
type Engine struct {
	config webrtc.Configuration
	log    zerolog.Logger
}

// New returns an engine using the given STUN/TURN urls. No servers means
// host candidates only.
func New(iceServers []string, log zerolog.Logger) *Engine {
	cfg := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	if len(iceServers) > 0 {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: iceServers})
	}
	return &Engine{config: cfg, log: log.With().Str("component", "media").Logger()}
}

// NewPeer creates the PeerConnection for a call with peer. Gathered local
// candidates are passed to onCandidate.
func (e *Engine) NewPeer(
	_ context.Context,
	peer domain.NodeID,
	onCandidate func(webrtc.ICECandidateInit),
) (domain.MediaPeer, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	log := e.log.With().Str("peer", peer.String()).Logger()
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil || onCandidate == nil {
			return
		}
		onCandidate(c.ToJSON())
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug().Str("state", s.String()).Msg("peer connection state")
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("codec", track.Codec().MimeType).Msg("remote audio track")
	})
	return &Peer{pc: pc}, nil
}

// Peer wraps one PeerConnection.
type Peer struct {
	pc *webrtc.PeerConnection
}

// CreateOffer builds and applies the local offer.
func (p *Peer) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// CreateAnswer builds and applies the local answer. The remote offer must
// already be set.
func (p *Peer) CreateAnswer(context.Context) (webrtc.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (p *Peer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *Peer) Close() error { return p.pc.Close() }

var (
	_ domain.MediaEngine = (*Engine)(nil)
	_ domain.MediaPeer   = (*Peer)(nil)
)
