package mesh

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a packet id is remembered.
const DefaultDedupWindow = 5 * time.Minute

// Dedup remembers recently seen packet ids.
type Dedup struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewDedup returns a dedup set that forgets ids after window.
func NewDedup(window time.Duration) *Dedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Dedup{seen: make(map[string]time.Time), window: window, now: time.Now}
}

// Seen reports whether id was already recorded within the window, and
// records it if not.
func (d *Dedup) Seen(id string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.seen[id]; ok && now.Sub(at) <= d.window {
		return true
	}
	d.seen[id] = now
	return false
}

// Prune drops ids older than the window and returns how many were removed.
func (d *Dedup) Prune() int {
	cutoff := d.now().Add(-d.window)
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, id)
			n++
		}
	}
	return n
}

// Len returns the number of remembered ids.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
