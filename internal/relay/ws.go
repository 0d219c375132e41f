package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
)

const (
	writeWait       = 10 * time.Second
	maxRedialWait   = 30 * time.Second
	firstRedialWait = 500 * time.Millisecond
)

// WSTransport keeps one WebSocket to the relay. Packets are pushed to us as
// soon as the relay receives them, and sends travel on the same socket.
type WSTransport struct {
	url  string
	self domain.NodeID
	log  zerolog.Logger

	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWSTransport returns a transport for the relay at base (http or ws
// scheme) acting as self.
func NewWSTransport(base string, self domain.NodeID, log zerolog.Logger) (*WSTransport, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/" + url.PathEscape(self.String())
	return &WSTransport{
		url:    u.String(),
		self:   self,
		log:    log.With().Str("component", "relay-ws").Logger(),
		dialer: websocket.DefaultDialer,
	}, nil
}

func (t *WSTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, domain.Wrap(domain.ErrTransport, err)
	}
	t.conn = conn
	t.log.Debug().Str("url", t.url).Msg("relay socket open")
	return conn, nil
}

func (t *WSTransport) drop(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.Close()
}

// Send writes one packet for to on the socket, dialing if needed.
func (t *WSTransport) Send(ctx context.Context, to domain.NodeID, payload []byte) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	pkt := NewPacket(t.self, to, domain.PacketKindFrom(ctx), payload)

	t.wmu.Lock()
	defer t.wmu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(pkt); err != nil {
		t.drop(conn)
		return domain.Wrap(domain.ErrTransport, err)
	}
	return nil
}

// Receive reads pushed packets until ctx is done, redialing with backoff
// when the socket breaks.
func (t *WSTransport) Receive(ctx context.Context, deliver domain.DeliverFunc) error {
	wait := firstRedialWait
	for {
		conn, err := t.connect(ctx)
		if err == nil {
			wait = firstRedialWait
			err = t.read(ctx, conn, deliver)
		}
		if ctx.Err() != nil {
			return nil
		}
		t.log.Warn().Err(err).Dur("retry", wait).Msg("relay socket")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		wait = min(wait*2, maxRedialWait)
	}
}

func (t *WSTransport) read(ctx context.Context, conn *websocket.Conn, deliver domain.DeliverFunc) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		var pkt domain.Packet
		if err := conn.ReadJSON(&pkt); err != nil {
			t.drop(conn)
			return domain.Wrap(domain.ErrTransport, err)
		}
		deliver(pkt.From, pkt.Payload)
	}
}

// Close shuts the socket.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	t.wmu.Unlock()
	return conn.Close()
}

var _ domain.Transport = (*WSTransport)(nil)
