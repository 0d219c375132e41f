package types

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// CallState is a position in the call lifecycle.
type CallState int

const (
	StateIdle CallState = iota
	StateOffering
	StateRinging
	StateConnected
	StateEnded
	StateFailed
)

var callStateNames = [...]string{"idle", "offering", "ringing", "connected", "ended", "failed"}

func (s CallState) String() string {
	if s < 0 || int(s) >= len(callStateNames) {
		return "unknown"
	}
	return callStateNames[s]
}

// Terminal reports whether no further transitions leave s.
func (s CallState) Terminal() bool { return s == StateEnded || s == StateFailed }

// MarshalText encodes the state by name.
func (s CallState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name; unknown names decode to StateIdle.
func (s *CallState) UnmarshalText(b []byte) error {
	*s = StateIdle
	for i, n := range callStateNames {
		if n == string(b) {
			*s = CallState(i)
		}
	}
	return nil
}

// Direction records which side placed a call.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// SessionRecord is a read-only snapshot of a live call session.
type SessionRecord struct {
	PeerID            NodeID
	CallID            CallID
	Direction         Direction
	State             CallState
	LocalDescription  *webrtc.SessionDescription
	RemoteDescription *webrtc.SessionDescription
	PendingCandidates []webrtc.ICECandidateInit
	CreatedAt         time.Time
	LastActivityAt    time.Time
}

// CallRecord is a finished call as kept in the call history.
type CallRecord struct {
	CallID      CallID    `json:"call_id"`
	Peer        NodeID    `json:"peer"`
	Direction   Direction `json:"direction"`
	Outcome     CallState `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	EndedAt     time.Time `json:"ended_at"`
}

// CallEventType names a call lifecycle notification.
type CallEventType string

const (
	EventOutgoingCall CallEventType = "outgoing_call"
	EventIncomingCall CallEventType = "incoming_call"
	EventConnected    CallEventType = "connected"
	EventEnded        CallEventType = "ended"
	EventFailed       CallEventType = "failed"
	EventBusy         CallEventType = "busy"
)

// CallEvent is published to call subscribers after each state change.
type CallEvent struct {
	Type   CallEventType
	Peer   NodeID
	CallID CallID
	State  CallState
	Err    error
	At     time.Time
}
