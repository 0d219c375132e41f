package types

import "github.com/pion/webrtc/v4"

// PayloadKind is the outer "type" tag of a decrypted payload.
type PayloadKind string

const (
	PayloadSignal PayloadKind = "webrtc_signal"
	PayloadText   PayloadKind = "text"
	PayloadVoice  PayloadKind = "voice"
)

// SignalKind is the inner "type" tag of a signaling message.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
	SignalEndCall      SignalKind = "end_call"
)

// Signal is a call-control message. The set of implementations is closed:
// Offer, Answer, ICECandidate and EndCall.
type Signal interface {
	Kind() SignalKind
	Call() CallID
	signal()
}

// Offer proposes a call and carries the caller's session description.
type Offer struct {
	CallID      CallID
	Description webrtc.SessionDescription
}

// Answer accepts an offer and carries the callee's session description.
type Answer struct {
	CallID      CallID
	Description webrtc.SessionDescription
}

// ICECandidate carries one trickled connectivity candidate.
type ICECandidate struct {
	CallID    CallID
	Candidate webrtc.ICECandidateInit
}

// EndCall tears a call down.
type EndCall struct {
	CallID CallID
	Reason string
}

func (Offer) Kind() SignalKind        { return SignalOffer }
func (Answer) Kind() SignalKind       { return SignalAnswer }
func (ICECandidate) Kind() SignalKind { return SignalICECandidate }
func (EndCall) Kind() SignalKind      { return SignalEndCall }

func (s Offer) Call() CallID        { return s.CallID }
func (s Answer) Call() CallID       { return s.CallID }
func (s ICECandidate) Call() CallID { return s.CallID }
func (s EndCall) Call() CallID      { return s.CallID }

func (Offer) signal()        {}
func (Answer) signal()       {}
func (ICECandidate) signal() {}
func (EndCall) signal()      {}

// End-call reasons sent on the wire.
const (
	ReasonHangup   = "hangup"
	ReasonRejected = "rejected"
	ReasonBusy     = "busy"
	ReasonTimeout  = "timeout"
	ReasonFailed   = "failed"
)
