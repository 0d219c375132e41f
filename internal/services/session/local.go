package session

import (
	"context"
	"errors"
	"fmt"

	"meshtalk/internal/domain"
)

var errNoPeer = errors.New("empty peer id")

// InitiateCall places a call to peer: it claims the call slot, builds the
// local offer and sends it. A second call while any call is live fails with
// domain.ErrBusy and changes nothing.
func (m *Machine) InitiateCall(ctx context.Context, peer domain.NodeID) error {
	if peer == "" || peer == domain.Broadcast {
		return fmt.Errorf("%w: %w", domain.ErrInvalidTransition, errNoPeer)
	}
	return m.withPeer(peer, func(b *batch) error {
		now := m.now()
		m.mu.Lock()
		if m.active != "" {
			active := m.active
			m.mu.Unlock()
			return fmt.Errorf("%w: call with %s in progress", domain.ErrBusy, active)
		}
		r := &record{
			peer:         peer,
			callID:       m.newCallID(),
			direction:    domain.Outgoing,
			state:        domain.StateOffering,
			createdAt:    now,
			lastActivity: now,
		}
		m.active = peer
		m.sessions[peer] = r
		delete(m.early, peer)
		m.mu.Unlock()

		log := m.log.With().Str("peer", peer.String()).Str("call_id", r.callID.String()).Logger()
		log.Info().Msg("placing call")

		mp, err := m.media.NewPeer(ctx, peer, m.candidateSink(r))
		if err != nil {
			return m.fail(b, r, fmt.Errorf("create media peer: %w", err))
		}
		m.mu.Lock()
		r.media = mp
		m.mu.Unlock()

		offer, err := mp.CreateOffer(ctx)
		if err != nil {
			return m.fail(b, r, fmt.Errorf("create offer: %w", err))
		}
		m.mu.Lock()
		r.local = &offer
		m.mu.Unlock()

		if err := m.sender.SendSignal(ctx, peer, domain.Offer{CallID: r.callID, Description: offer}); err != nil {
			return m.fail(b, r, domain.Wrap(domain.ErrTransport, err))
		}
		m.arm(r)
		b.emit(domain.EventOutgoingCall, r, domain.StateOffering, nil)
		return nil
	})
}

// AcceptCall answers the ringing call.
func (m *Machine) AcceptCall(ctx context.Context) error {
	return m.withActive(domain.StateRinging, func(b *batch, r *record) error {
		m.mu.Lock()
		mp := r.media
		m.mu.Unlock()

		answer, err := mp.CreateAnswer(ctx)
		if err != nil {
			return m.fail(b, r, fmt.Errorf("create answer: %w", err))
		}
		if err := m.sender.SendSignal(ctx, r.peer, domain.Answer{CallID: r.callID, Description: answer}); err != nil {
			return m.fail(b, r, domain.Wrap(domain.ErrTransport, err))
		}

		m.mu.Lock()
		now := m.now()
		r.local = &answer
		r.state = domain.StateConnected
		r.connectedAt = now
		r.lastActivity = now
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		m.mu.Unlock()

		m.log.Info().Str("peer", r.peer.String()).Str("call_id", r.callID.String()).Msg("call accepted")
		b.emit(domain.EventConnected, r, domain.StateConnected, nil)
		return nil
	})
}

// RejectCall declines the ringing call and tells the caller.
func (m *Machine) RejectCall(ctx context.Context) error {
	return m.withActive(domain.StateRinging, func(b *batch, r *record) error {
		err := m.notifyEnd(ctx, r, domain.ReasonRejected)
		m.finish(b, r, domain.StateEnded, domain.ReasonRejected, nil)
		if err != nil {
			return domain.Wrap(domain.ErrTransport, err)
		}
		return nil
	})
}

// EndCall hangs up the live call in any non-terminal state. The session is
// released even when the peer cannot be told; that failure is returned.
func (m *Machine) EndCall(ctx context.Context) error {
	return m.withActive(-1, func(b *batch, r *record) error {
		err := m.notifyEnd(ctx, r, domain.ReasonHangup)
		m.finish(b, r, domain.StateEnded, domain.ReasonHangup, nil)
		if err != nil {
			return domain.Wrap(domain.ErrTransport, err)
		}
		return nil
	})
}

// withActive runs fn on the live call under its peer lock. want restricts
// the state the call must be in; a negative value accepts any live state.
func (m *Machine) withActive(want domain.CallState, fn func(*batch, *record) error) error {
	m.mu.Lock()
	peer := m.active
	r := m.sessions[peer]
	m.mu.Unlock()
	if r == nil {
		return fmt.Errorf("%w: no call in progress", domain.ErrInvalidTransition)
	}

	return m.withPeer(peer, func(b *batch) error {
		m.mu.Lock()
		current := m.sessions[peer]
		state := domain.StateIdle
		if current != nil {
			state = current.state
		}
		m.mu.Unlock()
		if current != r {
			return fmt.Errorf("%w: call with %s already finished", domain.ErrInvalidTransition, peer)
		}
		if want >= 0 && state != want {
			return fmt.Errorf("%w: call with %s is %s, not %s", domain.ErrInvalidTransition, peer, state, want)
		}
		return fn(b, r)
	})
}
