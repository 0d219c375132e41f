package session

import (
	"time"

	"meshtalk/internal/domain"
)

const (
	// DefaultFinishedWindow is how long the id of a finished call is
	// remembered so redelivered signals for it are ignored.
	DefaultFinishedWindow = 5 * time.Minute

	finishedPerPeer = 32
)

type finishedCall struct {
	id domain.CallID
	at time.Time
}

// finishedCalls remembers recently finished call ids per peer. It is guarded
// by Machine.mu.
type finishedCalls struct {
	window time.Duration
	byPeer map[domain.NodeID][]finishedCall
}

func newFinishedCalls(window time.Duration) *finishedCalls {
	return &finishedCalls{window: window, byPeer: make(map[domain.NodeID][]finishedCall)}
}

// add records id as finished. Calls without an id cannot be recognised
// later and are not kept.
func (f *finishedCalls) add(peer domain.NodeID, id domain.CallID, now time.Time) {
	if id == "" {
		return
	}
	calls := append(f.prune(peer, now), finishedCall{id: id, at: now})
	if len(calls) > finishedPerPeer {
		calls = calls[len(calls)-finishedPerPeer:]
	}
	f.byPeer[peer] = calls
}

// has reports whether id belongs to a call with peer that finished within
// the window.
func (f *finishedCalls) has(peer domain.NodeID, id domain.CallID, now time.Time) bool {
	if id == "" {
		return false
	}
	for _, c := range f.prune(peer, now) {
		if c.id == id {
			return true
		}
	}
	return false
}

// prune drops the expired ids of peer and returns the rest, oldest first.
func (f *finishedCalls) prune(peer domain.NodeID, now time.Time) []finishedCall {
	calls := f.byPeer[peer]
	i := 0
	for i < len(calls) && now.Sub(calls[i].at) > f.window {
		i++
	}
	calls = calls[i:]
	if len(calls) == 0 {
		delete(f.byPeer, peer)
		return nil
	}
	f.byPeer[peer] = calls
	return calls
}
