// Package memory is an in-process Transport for tests and single-binary
// demos. Every endpoint attached to a Hub can reach every other.
package memory

import (
	"context"
	"fmt"
	"sync"

	"meshtalk/internal/domain"
)

const inboxSize = 256

type delivery struct {
	from    domain.NodeID
	payload []byte
}

// Hub connects endpoints by node id.
type Hub struct {
	mu        sync.RWMutex
	inboxes   map[domain.NodeID]chan delivery
	duplicate bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{inboxes: make(map[domain.NodeID]chan delivery)}
}

// Duplicate makes the hub deliver every payload twice.
func (h *Hub) Duplicate(on bool) {
	h.mu.Lock()
	h.duplicate = on
	h.mu.Unlock()
}

// Endpoint attaches node to the hub and returns its transport.
func (h *Hub) Endpoint(node domain.NodeID) *Transport {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.inboxes[node]
	if !ok {
		ch = make(chan delivery, inboxSize)
		h.inboxes[node] = ch
	}
	return &Transport{hub: h, self: node, inbox: ch}
}

// Transport is one node's view of a Hub.
type Transport struct {
	hub   *Hub
	self  domain.NodeID
	inbox chan delivery
}

// Send queues payload for to, or for every other node when to is
// domain.Broadcast.
func (t *Transport) Send(ctx context.Context, to domain.NodeID, payload []byte) error {
	t.hub.mu.RLock()
	var targets []chan delivery
	if to == domain.Broadcast {
		for node, ch := range t.hub.inboxes {
			if node != t.self {
				targets = append(targets, ch)
			}
		}
	} else if ch, ok := t.hub.inboxes[to]; ok {
		targets = append(targets, ch)
	}
	copies := 1
	if t.hub.duplicate {
		copies = 2
	}
	t.hub.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("%w: no endpoint for %s", domain.ErrTransport, to)
	}
	for _, ch := range targets {
		for i := 0; i < copies; i++ {
			d := delivery{from: t.self, payload: append([]byte(nil), payload...)}
			select {
			case ch <- d:
			case <-ctx.Done():
				return domain.Wrap(domain.ErrTransport, ctx.Err())
			}
		}
	}
	return nil
}

// Receive hands queued payloads to deliver until ctx is done.
func (t *Transport) Receive(ctx context.Context, deliver domain.DeliverFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-t.inbox:
			deliver(d.from, d.payload)
		}
	}
}

var _ domain.Transport = (*Transport)(nil)
