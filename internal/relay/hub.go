package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"meshtalk/internal/domain"
)

const sendBuffer = 256

// socket is one node's WebSocket. A single writer goroutine owns writes.
type socket struct {
	node    domain.NodeID
	conn    *websocket.Conn
	send    chan domain.Packet
	done    chan struct{}
	closing sync.Once
}

func newSocket(node domain.NodeID, conn *websocket.Conn) *socket {
	return &socket{
		node: node,
		conn: conn,
		send: make(chan domain.Packet, sendBuffer),
		done: make(chan struct{}),
	}
}

func (s *socket) close() {
	s.closing.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// push queues p for writing. It reports false when the socket is gone or
// its buffer is full.
func (s *socket) push(p domain.Packet) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- p:
		return true
	default:
		return false
	}
}

// writeLoop writes backlog then live packets until the socket closes.
func (s *socket) writeLoop(backlog []domain.Packet) error {
	defer s.close()
	write := func(p domain.Packet) error {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteJSON(p)
	}
	for _, p := range backlog {
		if err := write(p); err != nil {
			return err
		}
	}
	for {
		select {
		case <-s.done:
			return nil
		case p := <-s.send:
			if err := write(p); err != nil {
				return err
			}
		}
	}
}

// hub maps nodes to their open socket.
type hub struct {
	mu      sync.RWMutex
	sockets map[domain.NodeID]*socket
}

func newHub() *hub { return &hub{sockets: make(map[domain.NodeID]*socket)} }

// attach installs s, closing any previous socket of the same node.
func (h *hub) attach(s *socket) {
	h.mu.Lock()
	old := h.sockets[s.node]
	h.sockets[s.node] = s
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
}

func (h *hub) detach(s *socket) {
	h.mu.Lock()
	if h.sockets[s.node] == s {
		delete(h.sockets, s.node)
	}
	h.mu.Unlock()
	s.close()
}

func (h *hub) get(node domain.NodeID) (*socket, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sockets[node]
	return s, ok
}

func (h *hub) nodes() []domain.NodeID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.NodeID, 0, len(h.sockets))
	for n := range h.sockets {
		out = append(out, n)
	}
	return out
}

func (h *hub) closeAll() {
	h.mu.Lock()
	all := h.sockets
	h.sockets = make(map[domain.NodeID]*socket)
	h.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
