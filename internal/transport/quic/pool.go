package quic

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"
)

const connIdle = 30 * time.Second

type pooledConn struct {
	conn     *q.Conn
	lastUsed time.Time
}

// connPool reuses one outbound connection per address until it goes idle or
// dies.
type connPool struct {
	mu        sync.Mutex
	conns     map[string]*pooledConn
	idleAfter time.Duration
}

func newConnPool(idleAfter time.Duration) *connPool {
	if idleAfter <= 0 {
		idleAfter = connIdle
	}
	return &connPool{conns: make(map[string]*pooledConn), idleAfter: idleAfter}
}

func (p *connPool) get(ctx context.Context, addr string, tlsConf *tls.Config, conf *q.Config) (*q.Conn, error) {
	now := time.Now()
	p.mu.Lock()
	if ent, ok := p.conns[addr]; ok {
		if ent.conn.Context().Err() == nil && now.Sub(ent.lastUsed) <= p.idleAfter {
			ent.lastUsed = now
			conn := ent.conn
			p.mu.Unlock()
			return conn, nil
		}
		delete(p.conns, addr)
		conn := ent.conn
		p.mu.Unlock()
		_ = conn.CloseWithError(0, "stale")
	} else {
		p.mu.Unlock()
	}

	conn, err := q.DialAddr(ctx, addr, tlsConf, conf)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.conns[addr] = &pooledConn{conn: conn, lastUsed: now}
	p.mu.Unlock()
	return conn, nil
}

func (p *connPool) drop(addr string, conn *q.Conn, reason string) {
	p.mu.Lock()
	if ent, ok := p.conns[addr]; ok && ent.conn == conn {
		delete(p.conns, addr)
	}
	p.mu.Unlock()
	_ = conn.CloseWithError(0, reason)
}

func (p *connPool) closeAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*pooledConn)
	p.mu.Unlock()
	for _, ent := range conns {
		_ = ent.conn.CloseWithError(0, "shutdown")
	}
}
