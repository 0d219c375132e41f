package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
	"meshtalk/internal/events"
)

const (
	// DefaultTimeout bounds how long a call may sit in Offering or Ringing.
	DefaultTimeout = 30 * time.Second
	// DefaultCandidateLimit caps the candidates queued per peer.
	DefaultCandidateLimit = 64

	// notifyTimeout bounds best-effort end_call notifications sent outside a
	// caller's context.
	notifyTimeout = 5 * time.Second
)

// Config tunes a Machine. Zero values select the defaults.
type Config struct {
	Timeout        time.Duration
	CandidateLimit int
	// FinishedWindow is how long ids of finished calls are remembered.
	FinishedWindow time.Duration
	// History, if set, receives a CallRecord for every finished call.
	History domain.CallHistoryStore
	Logger  zerolog.Logger
}

// Machine drives the signaling state of calls. At most one call is
// non-terminal at any time; handling for one peer is serialized.
type Machine struct {
	sender  domain.SignalSender
	media   domain.MediaEngine
	history domain.CallHistoryStore
	log     zerolog.Logger
	bus     *events.Bus[domain.CallEvent]

	timeout        time.Duration
	candidateLimit int
	now            func() time.Time
	newCallID      func() domain.CallID

	locks peerLocks

	mu       sync.Mutex
	active   domain.NodeID
	sessions map[domain.NodeID]*record
	early    map[domain.NodeID][]earlyCandidate
	outcomes map[domain.NodeID]domain.CallState
	finished *finishedCalls
}

// New returns a machine that sends signals through sender and builds media
// peers with media.
func New(sender domain.SignalSender, media domain.MediaEngine, cfg Config) *Machine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if cfg.FinishedWindow <= 0 {
		cfg.FinishedWindow = DefaultFinishedWindow
	}
	log := cfg.Logger.With().Str("component", "session").Logger()
	m := &Machine{
		sender:         sender,
		media:          media,
		history:        cfg.History,
		log:            log,
		timeout:        cfg.Timeout,
		candidateLimit: cfg.CandidateLimit,
		now:            time.Now,
		newCallID:      func() domain.CallID { return domain.CallID(uuid.NewString()) },
		sessions:       make(map[domain.NodeID]*record),
		early:          make(map[domain.NodeID][]earlyCandidate),
		outcomes:       make(map[domain.NodeID]domain.CallState),
		finished:       newFinishedCalls(cfg.FinishedWindow),
	}
	m.bus = events.NewBus(func(ev domain.CallEvent) {
		log.Warn().Str("event", string(ev.Type)).Str("peer", ev.Peer.String()).
			Msg("subscriber buffer full; event dropped")
	})
	return m
}

// State returns the state of the call with peer. After a call ends the last
// terminal state stays visible until a new call with peer starts.
func (m *Machine) State(peer domain.NodeID) domain.CallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.sessions[peer]; ok {
		return r.state
	}
	if s, ok := m.outcomes[peer]; ok {
		return s
	}
	return domain.StateIdle
}

// Session returns a snapshot of the live session with peer.
func (m *Machine) Session(peer domain.NodeID) (domain.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[peer]
	if !ok {
		return domain.SessionRecord{}, false
	}
	return r.snapshot(), true
}

// Active returns the peer of the non-terminal call, if any.
func (m *Machine) Active() (domain.NodeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}

// Subscribe registers a call event listener. Events are delivered in
// subscription order; a listener whose buffer is full misses the event.
func (m *Machine) Subscribe(buffer int) (<-chan domain.CallEvent, func()) {
	return m.bus.Subscribe(buffer)
}

// batch collects events raised while a peer lock is held so they can be
// published after it is released.
type batch struct {
	m      *Machine
	events []domain.CallEvent
}

func (b *batch) emit(typ domain.CallEventType, r *record, state domain.CallState, err error) {
	b.events = append(b.events, domain.CallEvent{
		Type:   typ,
		Peer:   r.peer,
		CallID: r.callID,
		State:  state,
		Err:    err,
		At:     b.m.now(),
	})
}

// withPeer runs fn holding the lock for peer and publishes the events fn
// raised once the lock is released.
func (m *Machine) withPeer(peer domain.NodeID, fn func(b *batch) error) error {
	b := &batch{m: m}
	unlock := m.locks.lock(peer)
	err := fn(b)
	unlock()
	for _, ev := range b.events {
		m.bus.Publish(ev)
	}
	return err
}

// live returns the record for peer if it is still r. Callers hold the peer
// lock; the check guards against a record finished while the lock was
// released.
func (m *Machine) live(r *record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[r.peer] == r
}

// arm starts or restarts the no-progress timer of r.
func (m *Machine) arm(r *record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(m.timeout, func() { m.expire(r) })
}

func (m *Machine) expire(r *record) {
	_ = m.withPeer(r.peer, func(b *batch) error {
		m.mu.Lock()
		stale := m.sessions[r.peer] != r ||
			(r.state != domain.StateOffering && r.state != domain.StateRinging)
		m.mu.Unlock()
		if stale {
			return nil
		}
		m.log.Info().Str("peer", r.peer.String()).Str("call_id", r.callID.String()).
			Str("state", r.state.String()).Msg("call timed out")

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		m.notifyEnd(ctx, r, domain.ReasonTimeout)
		m.finish(b, r, domain.StateFailed, domain.ReasonTimeout, domain.ErrTimeout)
		return nil
	})
}

// notifyEnd tells the peer the call is over. Failures are logged only: the
// session ends either way.
func (m *Machine) notifyEnd(ctx context.Context, r *record, reason string) error {
	err := m.sender.SendSignal(ctx, r.peer, domain.EndCall{CallID: r.callID, Reason: reason})
	if err != nil {
		m.log.Warn().Err(err).Str("peer", r.peer.String()).Str("call_id", r.callID.String()).
			Str("reason", reason).Msg("send end_call")
	}
	return err
}

// finish moves r to a terminal state and releases everything it owns. It is
// the only way out of a non-terminal state and is a no-op for a record that
// has already finished.
func (m *Machine) finish(b *batch, r *record, state domain.CallState, reason string, cause error) {
	m.mu.Lock()
	if m.sessions[r.peer] != r {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, r.peer)
	delete(m.early, r.peer)
	if m.active == r.peer {
		m.active = ""
	}
	m.outcomes[r.peer] = state
	m.finished.add(r.peer, r.callID, m.now())
	r.state = state
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
	mp := r.media
	r.media = nil
	m.mu.Unlock()

	if mp != nil {
		if err := mp.Close(); err != nil {
			m.log.Warn().Err(err).Str("peer", r.peer.String()).Msg("close media peer")
		}
	}

	ended := m.now()
	if m.history != nil {
		rec := domain.CallRecord{
			CallID:      r.callID,
			Peer:        r.peer,
			Direction:   r.direction,
			Outcome:     state,
			Reason:      reason,
			StartedAt:   r.createdAt,
			ConnectedAt: r.connectedAt,
			EndedAt:     ended,
		}
		if err := m.history.AppendCallRecord(rec); err != nil {
			m.log.Warn().Err(err).Str("peer", r.peer.String()).Msg("append call history")
		}
	}

	ev := domain.EventEnded
	switch {
	case state == domain.StateFailed:
		ev = domain.EventFailed
	case reason == domain.ReasonBusy:
		ev = domain.EventBusy
	}
	b.emit(ev, r, state, cause)

	l := m.log.Info()
	if state == domain.StateFailed {
		l = m.log.Warn().Err(cause)
	}
	l.Str("peer", r.peer.String()).Str("call_id", r.callID.String()).
		Str("state", state.String()).Str("reason", reason).Msg("call finished")
}

// fail finishes r as Failed and returns cause.
func (m *Machine) fail(b *batch, r *record, cause error) error {
	m.finish(b, r, domain.StateFailed, domain.ReasonFailed, cause)
	return cause
}

// candidateSink forwards locally gathered candidates of call id to peer.
// Candidates from a call that is no longer live are dropped.
func (m *Machine) candidateSink(r *record) func(webrtc.ICECandidateInit) {
	return func(c webrtc.ICECandidateInit) {
		if !m.live(r) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := m.sender.SendSignal(ctx, r.peer, domain.ICECandidate{CallID: r.callID, Candidate: c})
		if err != nil {
			// The media layer may call us while the peer lock is held.
			go func() {
				_ = m.withPeer(r.peer, func(b *batch) error {
					m.fail(b, r, domain.Wrap(domain.ErrTransport, err))
					return nil
				})
			}()
		}
	}
}

// applyCandidates adds candidates to the media peer in order. A candidate
// the media layer rejects is logged and skipped.
func (m *Machine) applyCandidates(r *record, mp domain.MediaPeer, cs []webrtc.ICECandidateInit) {
	for _, c := range cs {
		if err := mp.AddICECandidate(c); err != nil {
			m.log.Warn().Err(err).Str("peer", r.peer.String()).Str("call_id", r.callID.String()).
				Msg("add ice candidate")
		}
	}
}

var _ domain.CallService = (*Machine)(nil)
