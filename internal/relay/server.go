package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
	"meshtalk/internal/mesh"
)

const (
	// DefaultSweepInterval is how often dedup and registry state is pruned.
	DefaultSweepInterval = 30 * time.Second

	maxBody      = 4 << 20
	shutdownWait = 5 * time.Second
)

// ServerConfig configures a relay Server.
type ServerConfig struct {
	// Advertise is the base URL neighbours use to reach this relay.
	Advertise string
	Neighbors []string
	// Keys backs the key directory.
	Keys          domain.PeerKeyStore
	QueueLimit    int
	SweepInterval time.Duration
	HTTPClient    *http.Client
	Logger        zerolog.Logger
}

// Server is a store-and-forward relay. It queues or pushes packets for the
// nodes it serves, keeps their public keys and forwards traffic through the
// mesh of neighbour relays.
type Server struct {
	cfg      ServerConfig
	log      zerolog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	started  time.Time

	queues   *queues
	hub      *hub
	dedup    *mesh.Dedup
	registry *mesh.Registry
	fwd      *mesh.Forwarder
}

// NewServer builds a relay and its routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	log := cfg.Logger.With().Str("component", "relay").Logger()
	s := &Server{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started:  time.Now(),
		queues:   newQueues(cfg.QueueLimit),
		hub:      newHub(),
		dedup:    mesh.NewDedup(mesh.DefaultDedupWindow),
		registry: mesh.NewRegistry(mesh.DefaultInactiveAfter, mesh.DefaultPruneAfter),
		fwd:      mesh.NewForwarder(cfg.Advertise, cfg.HTTPClient, log),
	}
	for _, n := range cfg.Neighbors {
		s.fwd.AddNeighbor(n)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/msg/{node}", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/msg/{node}", s.handleGetMessages).Methods(http.MethodGet)
	r.HandleFunc("/msg/{node}/ack", s.handleAck).Methods(http.MethodPost)
	r.HandleFunc("/ws/{node}", s.handleSocket).Methods(http.MethodGet)
	r.HandleFunc("/keys", s.handlePostKey).Methods(http.MethodPost)
	r.HandleFunc("/keys/{node}", s.handleGetKey).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/node", s.handleHeartbeat).Methods(http.MethodPost)
	api.HandleFunc("/node", s.handleNodeInfo).Methods(http.MethodGet)
	api.HandleFunc("/network", s.handleNetwork).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleMeshIngress).Methods(http.MethodPost)

	s.router = r
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Forwarder exposes the neighbour set, which discovery feeds.
func (s *Server) Forwarder() *mesh.Forwarder { return s.fwd }

// Registry exposes the node registry.
func (s *Server) Registry() *mesh.Registry { return s.registry }

// Run prunes dedup and registry state until ctx is done, then closes all
// sockets.
func (s *Server) Run(ctx context.Context) error {
	t := time.NewTicker(s.cfg.SweepInterval)
	defer t.Stop()
	defer s.hub.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	ids := s.dedup.Prune()
	inactive, pruned := s.registry.Sweep()
	if ids+inactive+pruned > 0 {
		s.log.Debug().Int("ids", ids).Int("inactive", inactive).Int("pruned", pruned).Msg("sweep")
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() { _ = s.Run(ctx) }()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Str("advertise", s.cfg.Advertise).Msg("relay listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type routeResult struct {
	Duplicate bool
	Local     int
	Forwarded int
}

// route delivers p to local nodes and forwards it through the mesh.
// Packets arriving from a neighbour are only kept for nodes this relay
// serves.
func (s *Server) route(ctx context.Context, p domain.Packet, fromMesh bool, via string) routeResult {
	var res routeResult
	if s.dedup.Seen(p.ID) {
		res.Duplicate = true
		return res
	}

	if p.To == domain.Broadcast {
		for _, node := range s.localNodes() {
			if node == p.From {
				continue
			}
			s.deliver(node, p)
			res.Local++
		}
		res.Forwarded = s.fwd.Forward(ctx, p, via)
		return res
	}

	local := s.serves(p.To)
	if local || !fromMesh {
		s.deliver(p.To, p)
		res.Local = 1
	}
	if !local {
		res.Forwarded = s.fwd.Forward(ctx, p, via)
	}
	return res
}

func (s *Server) deliver(node domain.NodeID, p domain.Packet) {
	if sock, ok := s.hub.get(node); ok && sock.push(p) {
		return
	}
	if s.queues.push(node, p) {
		s.log.Warn().Str("peer", node.String()).Msg("queue full; oldest packet dropped")
	}
}

func (s *Server) serves(node domain.NodeID) bool {
	if _, ok := s.hub.get(node); ok {
		return true
	}
	return s.registry.Known(node)
}

func (s *Server) localNodes() []domain.NodeID {
	seen := make(map[domain.NodeID]struct{})
	var out []domain.NodeID
	add := func(n domain.NodeID) {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for _, n := range s.registry.List() {
		if n.Active {
			add(n.ID)
		}
	}
	for _, n := range s.hub.nodes() {
		add(n)
	}
	return out
}
