package session

import (
	"time"

	"github.com/pion/webrtc/v4"

	"meshtalk/internal/domain"
)

// record is the machine-owned state of one call. Fields are written with
// both the peer lock and Machine.mu held, and read under either.
type record struct {
	peer      domain.NodeID
	callID    domain.CallID
	direction domain.Direction
	state     domain.CallState

	local   *webrtc.SessionDescription
	remote  *webrtc.SessionDescription
	pending []webrtc.ICECandidateInit

	createdAt    time.Time
	lastActivity time.Time
	connectedAt  time.Time

	media domain.MediaPeer
	timer *time.Timer
}

func (r *record) snapshot() domain.SessionRecord {
	s := domain.SessionRecord{
		PeerID:         r.peer,
		CallID:         r.callID,
		Direction:      r.direction,
		State:          r.state,
		CreatedAt:      r.createdAt,
		LastActivityAt: r.lastActivity,
	}
	if r.local != nil {
		d := *r.local
		s.LocalDescription = &d
	}
	if r.remote != nil {
		d := *r.remote
		s.RemoteDescription = &d
	}
	if len(r.pending) > 0 {
		s.PendingCandidates = append([]webrtc.ICECandidateInit(nil), r.pending...)
	}
	return s
}

// matches reports whether an inbound call id belongs to this call. Once the
// call has an id, answer and end_call must carry it.
func (r *record) matches(id domain.CallID) bool {
	return r.callID == "" || id == r.callID
}

// accepts is matches for candidates, which may omit the call id.
func (r *record) accepts(id domain.CallID) bool {
	return id == "" || r.matches(id)
}

// earlyCandidate is a candidate that arrived before any session with its
// sender existed.
type earlyCandidate struct {
	callID    domain.CallID
	candidate webrtc.ICECandidateInit
	at        time.Time
}
