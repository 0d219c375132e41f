package session

import (
	"sync"

	"meshtalk/internal/domain"
)

// peerLocks hands out one mutex per peer and forgets it once nobody holds or
// waits for it.
type peerLocks struct {
	mu sync.Mutex
	m  map[domain.NodeID]*peerLock
}

type peerLock struct {
	sync.Mutex
	refs int
}

func (l *peerLocks) lock(peer domain.NodeID) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[domain.NodeID]*peerLock)
	}
	pl := l.m[peer]
	if pl == nil {
		pl = &peerLock{}
		l.m[peer] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.m, peer)
		}
		l.mu.Unlock()
	}
}
