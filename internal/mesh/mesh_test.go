package mesh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/domain"
	"meshtalk/internal/mesh"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Unix(1_700_000_000, 0)} }

func TestDedupSuppressesRepeats(t *testing.T) {
	c := newClock()
	d := mesh.NewDedup(0)
	mesh.SetDedupClock(d, c.now)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
	assert.Equal(t, 2, d.Len())
}

func TestDedupForgetsAfterWindow(t *testing.T) {
	c := newClock()
	d := mesh.NewDedup(mesh.DefaultDedupWindow)
	mesh.SetDedupClock(d, c.now)

	require.False(t, d.Seen("a"))
	c.advance(4 * time.Minute)
	require.False(t, d.Seen("b"))
	c.advance(2 * time.Minute)

	assert.Equal(t, 1, d.Prune())
	assert.Equal(t, 1, d.Len())
	assert.False(t, d.Seen("a"), "pruned id is new again")
	assert.True(t, d.Seen("b"))
}

func TestRegistryActivity(t *testing.T) {
	c := newClock()
	r := mesh.NewRegistry(0, 0)
	mesh.SetRegistryClock(r, c.now)

	assert.True(t, r.Touch("n1", "10.0.0.1"))
	assert.False(t, r.Touch("n1", ""))
	n, ok := r.Get("n1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", n.Address)
	assert.True(t, n.Active)

	c.advance(61 * time.Second)
	assert.False(t, r.Known("n1"))
	inactive, pruned := r.Sweep()
	assert.Equal(t, 1, inactive)
	assert.Zero(t, pruned)

	r.Touch("n1", "")
	assert.True(t, r.Known("n1"))
}

func TestRegistryPrunesSilentNodes(t *testing.T) {
	c := newClock()
	r := mesh.NewRegistry(0, 0)
	mesh.SetRegistryClock(r, c.now)

	r.Touch("old", "")
	c.advance(9 * time.Minute)
	r.Touch("new", "")
	c.advance(2 * time.Minute)

	_, pruned := r.Sweep()
	assert.Equal(t, 1, pruned)
	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.NodeID("new"), list[0].ID)
}

func TestNextTTL(t *testing.T) {
	p, ok := mesh.Next(domain.Packet{ID: "x", TTL: 3})
	require.True(t, ok)
	assert.Equal(t, 2, p.TTL)

	_, ok = mesh.Next(domain.Packet{ID: "x", TTL: 1})
	assert.False(t, ok, "ttl reaching zero stops forwarding")
	_, ok = mesh.Next(domain.Packet{ID: "x", TTL: 0})
	assert.False(t, ok)
}

type ingress struct {
	mu   sync.Mutex
	got  []domain.Packet
	from []string
}

func (in *ingress) handler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, mesh.IngressPath, r.URL.Path)
		var p domain.Packet
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.mu.Lock()
		in.got = append(in.got, p)
		in.from = append(in.from, r.Header.Get(mesh.RelayHeader))
		in.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}
}

func (in *ingress) packets() []domain.Packet {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]domain.Packet(nil), in.got...)
}

func TestForwarderDecrementsAndSkipsSource(t *testing.T) {
	var a, b ingress
	srvA := httptest.NewServer(a.handler(t))
	defer srvA.Close()
	srvB := httptest.NewServer(b.handler(t))
	defer srvB.Close()

	f := mesh.NewForwarder("http://self:8080", nil, zerolog.Nop())
	assert.True(t, f.AddNeighbor(srvA.URL+"/"))
	assert.True(t, f.AddNeighbor(srvB.URL))
	assert.False(t, f.AddNeighbor(srvB.URL), "duplicate neighbour")
	assert.False(t, f.AddNeighbor("http://self:8080/"), "self is never a neighbour")
	assert.Len(t, f.Neighbors(), 2)

	pkt := domain.Packet{ID: "p1", From: "n1", To: "n2", Kind: domain.PacketText, Payload: []byte("x"), TTL: 3}
	sent := f.Forward(context.Background(), pkt, srvA.URL)
	assert.Equal(t, 1, sent)

	assert.Empty(t, a.packets())
	got := b.packets()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].TTL)
	assert.Equal(t, []byte("x"), got[0].Payload)
	assert.Equal(t, "http://self:8080", b.from[0])
}

func TestForwarderStopsAtTTL(t *testing.T) {
	var a ingress
	srv := httptest.NewServer(a.handler(t))
	defer srv.Close()

	f := mesh.NewForwarder("", nil, zerolog.Nop())
	f.AddNeighbor(srv.URL)
	assert.Zero(t, f.Forward(context.Background(), domain.Packet{ID: "v", Kind: domain.PacketVoice, TTL: 1}, ""))
	assert.Empty(t, a.packets())

	f.RemoveNeighbor(srv.URL + "/")
	assert.Empty(t, f.Neighbors())
}

func TestForwarderSkipsFailingNeighbor(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()
	var ok ingress
	good := httptest.NewServer(ok.handler(t))
	defer good.Close()

	f := mesh.NewForwarder("", nil, zerolog.Nop())
	f.AddNeighbor(bad.URL)
	f.AddNeighbor(good.URL)
	assert.Equal(t, 1, f.Forward(context.Background(), domain.Packet{ID: "p", TTL: 2}, ""))
	assert.Len(t, ok.packets(), 1)
}
