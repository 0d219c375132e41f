package mesh

import (
	"sort"
	"sync"
	"time"

	"meshtalk/internal/domain"
)

const (
	// DefaultInactiveAfter marks a silent node inactive.
	DefaultInactiveAfter = 60 * time.Second
	// DefaultPruneAfter forgets a silent node.
	DefaultPruneAfter = 10 * time.Minute
)

// Node is a registry entry.
type Node struct {
	ID       domain.NodeID `json:"id"`
	Address  string        `json:"address,omitempty"`
	LastSeen time.Time     `json:"last_seen"`
	Active   bool          `json:"is_active"`
}

// Registry tracks the nodes that talked to this relay.
type Registry struct {
	mu            sync.RWMutex
	nodes         map[domain.NodeID]*Node
	inactiveAfter time.Duration
	pruneAfter    time.Duration
	now           func() time.Time
}

// NewRegistry returns an empty registry. Zero durations select the
// defaults.
func NewRegistry(inactiveAfter, pruneAfter time.Duration) *Registry {
	if inactiveAfter <= 0 {
		inactiveAfter = DefaultInactiveAfter
	}
	if pruneAfter <= 0 {
		pruneAfter = DefaultPruneAfter
	}
	return &Registry{
		nodes:         make(map[domain.NodeID]*Node),
		inactiveAfter: inactiveAfter,
		pruneAfter:    pruneAfter,
		now:           time.Now,
	}
}

// Touch records activity from id. An empty addr keeps the known address.
// It reports whether the node was new.
func (r *Registry) Touch(id domain.NodeID, addr string) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		n = &Node{ID: id}
		r.nodes[id] = n
	}
	if addr != "" {
		n.Address = addr
	}
	n.LastSeen = now
	n.Active = true
	return !ok
}

// Get returns the entry for id.
func (r *Registry) Get(id domain.NodeID) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	out := *n
	out.Active = r.active(n)
	return out, true
}

// Known reports whether id is registered and active.
func (r *Registry) Known(id domain.NodeID) bool {
	n, ok := r.Get(id)
	return ok && n.Active
}

// List returns all entries ordered by id.
func (r *Registry) List() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		c := *n
		c.Active = r.active(n)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sweep updates activity flags and forgets nodes silent for longer than
// the prune interval.
func (r *Registry) Sweep() (inactive, pruned int) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.nodes {
		idle := now.Sub(n.LastSeen)
		switch {
		case idle > r.pruneAfter:
			delete(r.nodes, id)
			pruned++
		case idle > r.inactiveAfter:
			if n.Active {
				inactive++
			}
			n.Active = false
		}
	}
	return inactive, pruned
}

func (r *Registry) active(n *Node) bool {
	return n.Active && r.now().Sub(n.LastSeen) <= r.inactiveAfter
}
