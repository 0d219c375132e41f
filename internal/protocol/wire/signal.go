package wire

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"meshtalk/internal/domain"
	domaintypes "meshtalk/internal/domain/types"
)

type signalJSON struct {
	Type             domain.SignalKind `json:"type"`
	CallID           domain.CallID     `json:"call_id,omitempty"`
	SDP              string            `json:"sdp,omitempty"`
	Candidate        *string           `json:"candidate,omitempty"`
	SDPMid           *string           `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16           `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string           `json:"usernameFragment,omitempty"`
	Reason           string            `json:"reason,omitempty"`
}

func encodeSignal(sig domain.Signal) (signalJSON, error) {
	sj := signalJSON{Type: sig.Kind(), CallID: sig.Call()}
	switch s := sig.(type) {
	case domaintypes.Offer:
		sj.SDP = s.Description.SDP
	case domaintypes.Answer:
		sj.SDP = s.Description.SDP
	case domaintypes.ICECandidate:
		c := s.Candidate.Candidate
		sj.Candidate = &c
		sj.SDPMid = s.Candidate.SDPMid
		sj.SDPMLineIndex = s.Candidate.SDPMLineIndex
		sj.UsernameFragment = s.Candidate.UsernameFragment
	case domaintypes.EndCall:
		sj.Reason = s.Reason
	default:
		return signalJSON{}, fmt.Errorf("%w: unsupported signal %T", domain.ErrMalformedPayload, sig)
	}
	return sj, nil
}

func decodeSignal(raw json.RawMessage) (domain.Signal, error) {
	var sj signalJSON
	if err := json.Unmarshal(raw, &sj); err != nil {
		return nil, domain.Wrap(domain.ErrMalformedPayload, err)
	}
	switch sj.Type {
	case domaintypes.SignalOffer:
		if sj.SDP == "" {
			return nil, fmt.Errorf("%w: offer without sdp", domain.ErrMalformedPayload)
		}
		return domaintypes.Offer{
			CallID:      sj.CallID,
			Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sj.SDP},
		}, nil
	case domaintypes.SignalAnswer:
		if sj.SDP == "" {
			return nil, fmt.Errorf("%w: answer without sdp", domain.ErrMalformedPayload)
		}
		return domaintypes.Answer{
			CallID:      sj.CallID,
			Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sj.SDP},
		}, nil
	case domaintypes.SignalICECandidate:
		if sj.Candidate == nil {
			return nil, fmt.Errorf("%w: ice_candidate without candidate", domain.ErrMalformedPayload)
		}
		return domaintypes.ICECandidate{
			CallID: sj.CallID,
			Candidate: webrtc.ICECandidateInit{
				Candidate:        *sj.Candidate,
				SDPMid:           sj.SDPMid,
				SDPMLineIndex:    sj.SDPMLineIndex,
				UsernameFragment: sj.UsernameFragment,
			},
		}, nil
	case domaintypes.SignalEndCall:
		return domaintypes.EndCall{CallID: sj.CallID, Reason: sj.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: unknown signal type %q", domain.ErrMalformedPayload, sj.Type)
	}
}
