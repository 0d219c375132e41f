package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/media/pion"
	"meshtalk/internal/relay"
	"meshtalk/internal/services/directory"
	"meshtalk/internal/services/message"
	"meshtalk/internal/services/session"
	"meshtalk/internal/transport/quic"
)

// HeartbeatInterval is how often a running node re-registers with its relay.
const HeartbeatInterval = 30 * time.Second

// App is a node with its identity loaded and every service wired.
type App struct {
	*Wire
	Self      domain.Identity
	Engine    *crypto.Engine
	Relay     *relay.Client // nil without a relay url
	Directory *directory.Service
	Transport domain.Transport
	Messages  *message.Service
	Calls     *session.Machine

	media domain.MediaEngine
}

// Option adjusts how Open wires the app.
type Option func(*App)

// WithTransport replaces the configured transport.
func WithTransport(t domain.Transport) Option { return func(a *App) { a.Transport = t } }

// WithMedia replaces the pion media engine.
func WithMedia(m domain.MediaEngine) Option { return func(a *App) { a.media = m } }

// Open loads the identity and builds the services around it. The engine
// uses the KEM the identity was created with.
func (w *Wire) Open(opts ...Option) (*App, error) {
	id, err := w.LoadIdentity()
	if err != nil {
		return nil, err
	}
	kem, err := crypto.LookupKEM(id.KEM)
	if err != nil {
		return nil, err
	}
	cfg := w.Config

	a := &App{Wire: w, Self: id, Engine: crypto.NewEngine(kem, w.Identity)}
	for _, o := range opts {
		o(a)
	}

	var dc domain.DirectoryClient
	if cfg.RelayURL != "" {
		a.Relay = relay.NewClient(cfg.RelayURL, id.NodeID, w.Log)
		dc = a.Relay
	}
	a.Directory = directory.New(w.Identity, w.PeerKeys, dc, kem.Name(),
		w.Log.With().Str("component", "directory").Logger())

	if a.Transport == nil {
		if a.Transport, err = a.newTransport(); err != nil {
			return nil, err
		}
	}
	if a.media == nil {
		a.media = pion.New(cfg.ICEServers, w.Log)
	}

	a.Messages = message.New(a.Directory, a.Engine, a.Transport, message.Config{
		AllowDegraded: cfg.AllowDegraded,
		Logger:        w.Log,
	})
	a.Calls = session.New(a.Messages, a.media, session.Config{
		Timeout: cfg.CallTimeout,
		History: w.History,
		Logger:  w.Log,
	})
	a.Messages.HandleSignals(a.Calls)
	return a, nil
}

func (a *App) newTransport() (domain.Transport, error) {
	cfg := a.Config
	switch cfg.Transport {
	case TransportRelay:
		if a.Relay == nil {
			return nil, errors.New("relay transport needs a relay url")
		}
		return a.Relay, nil
	case TransportWS:
		if cfg.RelayURL == "" {
			return nil, errors.New("ws transport needs a relay url")
		}
		return relay.NewWSTransport(cfg.RelayURL, a.Self.NodeID, a.Log)
	case TransportQUIC:
		peers := make(map[domain.NodeID]string, len(cfg.QUICPeers))
		for id, addr := range cfg.QUICPeers {
			peers[domain.NodeID(id)] = addr
		}
		return quic.New(quic.Config{
			Self:   a.Self.NodeID,
			Listen: cfg.QUICListen,
			Peers:  peers,
			Logger: a.Log,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Run receives traffic until ctx is done. With a relay it also keeps the
// node registered.
func (a *App) Run(ctx context.Context) error {
	if a.Relay != nil {
		go a.heartbeat(ctx)
	}
	return a.Messages.Run(ctx)
}

func (a *App) heartbeat(ctx context.Context) {
	t := time.NewTicker(HeartbeatInterval)
	defer t.Stop()
	for {
		if err := a.Relay.Heartbeat(ctx, ""); err != nil && ctx.Err() == nil {
			a.Log.Warn().Err(err).Msg("relay heartbeat")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close ends any live call and releases the transport.
func (a *App) Close() error {
	if _, ok := a.Calls.Active(); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Calls.EndCall(ctx)
		cancel()
	}
	if c, ok := a.Transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
