package relay

import (
	"sync"

	"meshtalk/internal/domain"
)

// DefaultQueueLimit bounds each node's pending queue.
const DefaultQueueLimit = 1000

// queues holds pending packets per node. When a queue is full the oldest
// packet is dropped.
type queues struct {
	mu    sync.Mutex
	m     map[domain.NodeID][]domain.Packet
	limit int
}

func newQueues(limit int) *queues {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &queues{m: make(map[domain.NodeID][]domain.Packet), limit: limit}
}

// push appends p and reports whether an older packet was dropped for it.
func (q *queues) push(node domain.NodeID, p domain.Packet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := append(q.m[node], p)
	dropped := false
	if len(list) > q.limit {
		list = list[len(list)-q.limit:]
		dropped = true
	}
	q.m[node] = list
	return dropped
}

func (q *queues) peek(node domain.NodeID, limit int) []domain.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.m[node]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]domain.Packet, limit)
	copy(out, list[:limit])
	return out
}

// ack removes the queued packets whose ids are listed and returns how many
// were removed. Unknown ids are ignored.
func (q *queues) ack(node domain.NodeID, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.m[node]
	kept := make([]domain.Packet, 0, len(list))
	for _, p := range list {
		if _, ok := set[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	n := len(list) - len(kept)
	if len(kept) == 0 {
		delete(q.m, node)
	} else {
		q.m[node] = kept
	}
	return n
}

func (q *queues) take(node domain.NodeID) []domain.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.m[node]
	delete(q.m, node)
	return list
}

func (q *queues) len(node domain.NodeID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.m[node])
}
