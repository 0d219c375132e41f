package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"meshtalk/internal/domain"
)

type sent struct {
	to  domain.NodeID
	sig domain.Signal
}

// fakeSender records outbound signals.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (s *fakeSender) SendSignal(_ context.Context, to domain.NodeID, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, sent{to: to, sig: sig})
	return nil
}

func (s *fakeSender) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.msgs...)
}

func (s *fakeSender) last() sent {
	all := s.all()
	if len(all) == 0 {
		return sent{}
	}
	return all[len(all)-1]
}

// fakeMedia records every operation applied to its peers in one log.
type fakeMedia struct {
	mu        sync.Mutex
	ops       []string
	peers     []*fakePeer
	newErr    error
	localCand string
}

func (m *fakeMedia) NewPeer(
	_ context.Context,
	peer domain.NodeID,
	onCandidate func(webrtc.ICECandidateInit),
) (domain.MediaPeer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.newErr != nil {
		return nil, m.newErr
	}
	p := &fakePeer{media: m, peer: peer, onCandidate: onCandidate}
	m.peers = append(m.peers, p)
	return p, nil
}

func (m *fakeMedia) record(op string) {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.mu.Unlock()
}

func (m *fakeMedia) log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

func (m *fakeMedia) peer(i int) *fakePeer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[i]
}

type fakePeer struct {
	media       *fakeMedia
	peer        domain.NodeID
	onCandidate func(webrtc.ICECandidateInit)

	mu     sync.Mutex
	closed bool
}

func (p *fakePeer) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	p.media.record("offer")
	if c := p.media.localCand; c != "" {
		p.onCandidate(webrtc.ICECandidateInit{Candidate: c})
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer(context.Context) (webrtc.SessionDescription, error) {
	p.media.record("answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	if d.SDP == "" {
		return errors.New("empty sdp")
	}
	p.media.record("remote:" + d.SDP)
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.media.record("candidate:" + c.Candidate)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.media.record(fmt.Sprintf("close:%s", p.peer))
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func offer(id domain.CallID) domain.Offer {
	return domain.Offer{CallID: id, Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote-offer"}}
}

func answer(id domain.CallID) domain.Answer {
	return domain.Answer{CallID: id, Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote-answer"}}
}

func candidate(id domain.CallID, c string) domain.ICECandidate {
	return domain.ICECandidate{CallID: id, Candidate: webrtc.ICECandidateInit{Candidate: c}}
}
