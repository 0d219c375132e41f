// Package quic carries payloads directly between nodes over QUIC. Each
// payload travels on its own unidirectional-use stream of a pooled
// connection, framed with the sender's node id.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
)

const sendTimeout = 8 * time.Second

var errNotListening = errors.New("quic transport is not listening")

// Config configures a Transport.
type Config struct {
	Self   domain.NodeID
	Listen string
	// Peers maps node ids to host:port addresses.
	Peers  map[domain.NodeID]string
	Logger zerolog.Logger
}

// Transport is a domain.Transport over QUIC.
type Transport struct {
	self   domain.NodeID
	listen string
	log    zerolog.Logger
	tls    *tls.Config
	conf   *q.Config
	pool   *connPool

	mu    sync.RWMutex
	peers map[domain.NodeID]string
	ln    *q.Listener
}

// New returns a transport. It does not listen until Listen or Receive is
// called.
func New(cfg Config) (*Transport, error) {
	tlsConf, err := newSelfSignedTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}
	peers := make(map[domain.NodeID]string, len(cfg.Peers))
	for id, addr := range cfg.Peers {
		peers[id] = addr
	}
	return &Transport{
		self:   cfg.Self,
		listen: cfg.Listen,
		log:    cfg.Logger.With().Str("component", "quic").Logger(),
		tls:    tlsConf,
		conf:   &q.Config{MaxIdleTimeout: connIdle, KeepAlivePeriod: 10 * time.Second},
		pool:   newConnPool(connIdle),
		peers:  peers,
	}, nil
}

// AddPeer records or replaces the address of node.
func (t *Transport) AddPeer(node domain.NodeID, addr string) {
	t.mu.Lock()
	t.peers[node] = addr
	t.mu.Unlock()
}

// Listen binds the configured address. It is a no-op when already bound.
func (t *Transport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln != nil {
		return nil
	}
	ln, err := q.ListenAddr(t.listen, t.tls, t.conf)
	if err != nil {
		return domain.Wrap(domain.ErrTransport, err)
	}
	t.ln = ln
	t.log.Info().Str("addr", ln.Addr().String()).Msg("quic listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *Transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Send opens a stream to the node's address and writes one frame. A dead
// pooled connection is redialled once.
func (t *Transport) Send(ctx context.Context, to domain.NodeID, payload []byte) error {
	t.mu.RLock()
	addr, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no address for %s", domain.ErrTransport, to)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sendTimeout)
		defer cancel()
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = t.sendOnce(ctx, addr, payload); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		t.log.Debug().Err(err).Str("peer", to.String()).Str("addr", addr).Msg("quic send retry")
	}
	return domain.Wrap(domain.ErrTransport, err)
}

func (t *Transport) sendOnce(ctx context.Context, addr string, payload []byte) error {
	conn, err := t.pool.get(ctx, addr, t.tls, t.conf)
	if err != nil {
		return err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.pool.drop(addr, conn, "open stream")
		return err
	}
	if err := writeFrame(stream, t.self, payload); err != nil {
		stream.CancelWrite(0)
		t.pool.drop(addr, conn, "write")
		return err
	}
	return stream.Close()
}

// Receive accepts connections and delivers every inbound frame until ctx is
// done.
func (t *Transport) Receive(ctx context.Context, deliver domain.DeliverFunc) error {
	if err := t.Listen(); err != nil {
		return err
	}
	t.mu.RLock()
	ln := t.ln
	t.mu.RUnlock()
	if ln == nil {
		return domain.Wrap(domain.ErrTransport, errNotListening)
	}

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return domain.Wrap(domain.ErrTransport, err)
		}
		go t.serveConn(ctx, conn, deliver)
	}
}

func (t *Transport) serveConn(ctx context.Context, conn *q.Conn, deliver domain.DeliverFunc) {
	log := t.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("connection closed")
			return
		}
		go func(s *q.Stream) {
			defer s.Close()
			from, payload, err := readFrame(s)
			if err != nil {
				log.Warn().Err(err).Msg("drop frame")
				s.CancelRead(0)
				return
			}
			deliver(from, payload)
		}(stream)
	}
}

// Close stops listening and closes pooled connections.
func (t *Transport) Close() error {
	t.pool.closeAll()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	err := t.ln.Close()
	t.ln = nil
	return err
}

var _ domain.Transport = (*Transport)(nil)
