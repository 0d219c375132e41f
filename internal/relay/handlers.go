package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/mesh"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func nodeVar(r *http.Request) domain.NodeID {
	return domain.NodeID(mux.Vars(r)["node"])
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// stamp fills the fields a sender may leave empty.
func stamp(p *domain.Packet) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixMilli()
	}
	if p.TTL <= 0 {
		p.TTL = p.Kind.DefaultTTL()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nodes":  len(s.localNodes()),
		"uptime": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	node := nodeVar(r)
	var p domain.Packet
	if !decode(w, r, &p) {
		return
	}
	if p.To == "" {
		p.To = node
	}
	if p.To != node {
		writeError(w, http.StatusBadRequest, "packet recipient does not match path")
		return
	}
	stamp(&p)
	if p.From != "" {
		s.registry.Touch(p.From, remoteHost(r))
	}

	res := s.route(context.WithoutCancel(r.Context()), p, false, "")
	status := "queued"
	if res.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":        p.ID,
		"status":    status,
		"forwarded": res.Forwarded,
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	node := nodeVar(r)
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.registry.Touch(node, remoteHost(r))
	writeJSON(w, http.StatusOK, s.queues.peek(node, limit))
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	n := s.queues.ack(nodeVar(r), req.IDs)
	writeJSON(w, http.StatusOK, map[string]int{"acked": n})
}

// handleSocket pushes queued and live packets to the node and routes the
// packets it sends. Packets written to the socket are not acknowledged.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	node := nodeVar(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("peer", node.String()).Msg("websocket upgrade")
		return
	}
	conn.SetReadLimit(maxBody)

	sock := newSocket(node, conn)
	s.hub.attach(sock)
	defer s.hub.detach(sock)
	s.registry.Touch(node, remoteHost(r))
	backlog := s.queues.take(node)
	log := s.log.With().Str("peer", node.String()).Logger()
	log.Info().Int("backlog", len(backlog)).Msg("socket open")

	go func() {
		if err := sock.writeLoop(backlog); err != nil {
			log.Debug().Err(err).Msg("socket write")
		}
	}()

	for {
		var p domain.Packet
		if err := conn.ReadJSON(&p); err != nil {
			log.Info().Err(err).Msg("socket closed")
			return
		}
		p.From = node
		if p.To == "" {
			continue
		}
		stamp(&p)
		s.registry.Touch(node, "")
		s.route(context.Background(), p, false, "")
	}
}

func (s *Server) handlePostKey(w http.ResponseWriter, r *http.Request) {
	var k domain.PeerKey
	if !decode(w, r, &k) {
		return
	}
	if len(k.PublicKey) == 0 {
		writeError(w, http.StatusBadRequest, "missing public key")
		return
	}
	kem, err := crypto.LookupKEM(k.KEM)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	k.KEM = kem.Name()
	want := crypto.NodeIDFor(k.PublicKey)
	if k.NodeID == "" {
		k.NodeID = want
	}
	if k.NodeID != want {
		writeError(w, http.StatusBadRequest, "node id does not match public key")
		return
	}
	k.FetchedAt = time.Now().UTC()
	if err := s.cfg.Keys.SavePeerKey(k); err != nil {
		s.log.Error().Err(err).Str("peer", k.NodeID.String()).Msg("save key")
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	s.log.Info().Str("peer", k.NodeID.String()).Str("kem", k.KEM).Msg("key published")
	writeJSON(w, http.StatusCreated, map[string]string{"node_id": k.NodeID.String()})
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	k, ok, err := s.cfg.Keys.LoadPeerKey(nodeVar(r))
	switch {
	case err != nil:
		s.log.Error().Err(err).Msg("load key")
		writeError(w, http.StatusInternalServerError, "storage failure")
	case !ok:
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeJSON(w, http.StatusOK, k)
	}
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb Heartbeat
	if !decode(w, r, &hb) {
		return
	}
	if hb.NodeID == "" || hb.NodeID == domain.Broadcast {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}
	addr := hb.Address
	if addr == "" {
		addr = remoteHost(r)
	}
	isNew := s.registry.Touch(hb.NodeID, addr)
	if isNew {
		s.log.Info().Str("peer", hb.NodeID.String()).Str("addr", addr).Msg("node registered")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "new": isNew})
}

func (s *Server) handleNodeInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"advertise": s.cfg.Advertise,
		"neighbors": s.fwd.Neighbors(),
		"nodes":     len(s.localNodes()),
		"uptime":    int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Network{Nodes: s.registry.List(), Neighbors: s.fwd.Neighbors()})
}

// handleMeshIngress accepts packets forwarded by a neighbour relay.
func (s *Server) handleMeshIngress(w http.ResponseWriter, r *http.Request) {
	var p domain.Packet
	if !decode(w, r, &p) {
		return
	}
	if p.ID == "" || p.To == "" {
		writeError(w, http.StatusBadRequest, "packet needs id and recipient")
		return
	}
	stamp(&p)
	via := r.Header.Get(mesh.RelayHeader)
	if via != "" {
		s.fwd.AddNeighbor(via)
	}
	res := s.route(context.WithoutCancel(r.Context()), p, true, via)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"duplicate": res.Duplicate,
		"local":     res.Local,
		"forwarded": res.Forwarded,
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
