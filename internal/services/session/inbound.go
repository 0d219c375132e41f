package session

import (
	"context"
	"fmt"

	"meshtalk/internal/domain"
)

// Handle applies a signaling message received from peer. Messages that do
// not advance the call from its current state return
// domain.ErrIgnoredDuplicate and change nothing.
func (m *Machine) Handle(ctx context.Context, from domain.NodeID, sig domain.Signal) error {
	return m.withPeer(from, func(b *batch) error {
		switch s := sig.(type) {
		case domain.Offer:
			return m.onOffer(ctx, b, from, s)
		case domain.Answer:
			return m.onAnswer(b, from, s)
		case domain.ICECandidate:
			return m.onCandidate(from, s)
		case domain.EndCall:
			return m.onEnd(b, from, s)
		default:
			return fmt.Errorf("%w: unsupported signal %T", domain.ErrMalformedPayload, sig)
		}
	})
}

// Fail terminates the live call with peer after a transport or decoding
// failure.
func (m *Machine) Fail(peer domain.NodeID, cause error) error {
	return m.withPeer(peer, func(b *batch) error {
		m.mu.Lock()
		r := m.sessions[peer]
		m.mu.Unlock()
		if r == nil {
			return fmt.Errorf("%w: no call with %s", domain.ErrInvalidTransition, peer)
		}
		m.fail(b, r, cause)
		return nil
	})
}

func (m *Machine) onOffer(ctx context.Context, b *batch, from domain.NodeID, s domain.Offer) error {
	now := m.now()
	m.mu.Lock()
	if r, ok := m.sessions[from]; ok {
		state := r.state
		m.mu.Unlock()
		return fmt.Errorf("%w: offer from %s while %s", domain.ErrIgnoredDuplicate, from, state)
	}
	if m.finished.has(from, s.CallID, now) {
		m.mu.Unlock()
		return fmt.Errorf("%w: offer for finished call %s from %s", domain.ErrIgnoredDuplicate, s.CallID, from)
	}
	if m.active != "" {
		m.mu.Unlock()
		return m.refuseBusy(ctx, b, from, s.CallID)
	}

	desc := s.Description
	r := &record{
		peer:         from,
		callID:       s.CallID,
		direction:    domain.Incoming,
		state:        domain.StateRinging,
		remote:       &desc,
		createdAt:    now,
		lastActivity: now,
	}
	early := m.early[from]
	delete(m.early, from)
	for _, e := range early {
		if now.Sub(e.at) <= m.timeout && r.accepts(e.callID) {
			r.pending = append(r.pending, e.candidate)
		}
	}
	m.active = from
	m.sessions[from] = r
	m.mu.Unlock()

	m.log.Info().Str("peer", from.String()).Str("call_id", r.callID.String()).
		Int("early_candidates", len(r.pending)).Msg("incoming call")

	mp, err := m.media.NewPeer(ctx, from, m.candidateSink(r))
	if err != nil {
		return m.fail(b, r, fmt.Errorf("create media peer: %w", err))
	}
	m.mu.Lock()
	r.media = mp
	m.mu.Unlock()

	if err := mp.SetRemoteDescription(desc); err != nil {
		return m.fail(b, r, fmt.Errorf("apply offer: %w", err))
	}
	m.flush(r, mp)
	m.arm(r)
	b.emit(domain.EventIncomingCall, r, domain.StateRinging, nil)
	return nil
}

// refuseBusy turns away an offer that arrived while another call is live.
func (m *Machine) refuseBusy(ctx context.Context, b *batch, from domain.NodeID, id domain.CallID) error {
	m.log.Info().Str("peer", from.String()).Str("call_id", id.String()).Msg("refusing call: busy")
	err := m.sender.SendSignal(ctx, from, domain.EndCall{CallID: id, Reason: domain.ReasonBusy})
	if err != nil {
		m.log.Warn().Err(err).Str("peer", from.String()).Msg("send busy reply")
	}
	b.events = append(b.events, domain.CallEvent{
		Type:   domain.EventBusy,
		Peer:   from,
		CallID: id,
		State:  domain.StateIdle,
		Err:    domain.ErrBusy,
		At:     m.now(),
	})
	return fmt.Errorf("%w: refused offer from %s", domain.ErrBusy, from)
}

func (m *Machine) onAnswer(b *batch, from domain.NodeID, s domain.Answer) error {
	m.mu.Lock()
	r := m.sessions[from]
	if r == nil || r.state != domain.StateOffering || !r.matches(s.CallID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: unexpected answer from %s", domain.ErrIgnoredDuplicate, from)
	}
	mp := r.media
	m.mu.Unlock()

	if err := mp.SetRemoteDescription(s.Description); err != nil {
		return m.fail(b, r, fmt.Errorf("apply answer: %w", err))
	}

	m.mu.Lock()
	now := m.now()
	desc := s.Description
	r.remote = &desc
	r.state = domain.StateConnected
	r.connectedAt = now
	r.lastActivity = now
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	m.mu.Unlock()

	m.flush(r, mp)
	m.log.Info().Str("peer", from.String()).Str("call_id", r.callID.String()).Msg("call connected")
	b.emit(domain.EventConnected, r, domain.StateConnected, nil)
	return nil
}

func (m *Machine) onCandidate(from domain.NodeID, s domain.ICECandidate) error {
	m.mu.Lock()
	r := m.sessions[from]
	if r == nil {
		if m.finished.has(from, s.CallID, m.now()) {
			m.mu.Unlock()
			return fmt.Errorf("%w: candidate for finished call %s from %s", domain.ErrIgnoredDuplicate, s.CallID, from)
		}
		queue := m.early[from]
		if len(queue) >= m.candidateLimit {
			m.mu.Unlock()
			m.log.Warn().Str("peer", from.String()).Msg("early candidate queue full; dropping candidate")
			return nil
		}
		m.early[from] = append(queue, earlyCandidate{callID: s.CallID, candidate: s.Candidate, at: m.now()})
		m.mu.Unlock()
		return nil
	}
	if !r.accepts(s.CallID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: candidate for call %s from %s", domain.ErrIgnoredDuplicate, s.CallID, from)
	}
	if r.remote == nil {
		defer m.mu.Unlock()
		if len(r.pending) >= m.candidateLimit {
			m.log.Warn().Str("peer", from.String()).Str("call_id", r.callID.String()).
				Msg("candidate queue full; dropping candidate")
			return nil
		}
		r.pending = append(r.pending, s.Candidate)
		return nil
	}
	r.lastActivity = m.now()
	mp := r.media
	m.mu.Unlock()

	if err := mp.AddICECandidate(s.Candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (m *Machine) onEnd(b *batch, from domain.NodeID, s domain.EndCall) error {
	m.mu.Lock()
	r := m.sessions[from]
	if r == nil || !r.matches(s.CallID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: end_call from %s with no matching call", domain.ErrIgnoredDuplicate, from)
	}
	m.mu.Unlock()

	reason := s.Reason
	if reason == "" {
		reason = domain.ReasonHangup
	}
	m.finish(b, r, domain.StateEnded, reason, nil)
	return nil
}

// flush applies the queued candidates of r right after its remote
// description was set.
func (m *Machine) flush(r *record, mp domain.MediaPeer) {
	m.mu.Lock()
	queued := r.pending
	r.pending = nil
	m.mu.Unlock()
	m.applyCandidates(r, mp, queued)
}
