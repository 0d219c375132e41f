package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
)

// IngressPath is where relays accept packets from their neighbours.
const IngressPath = "/api/messages"

const forwardTimeout = 5 * time.Second

// Forwarder passes packets to neighbour relays while their TTL allows.
type Forwarder struct {
	self   string
	client *http.Client
	log    zerolog.Logger

	mu        sync.RWMutex
	neighbors map[string]struct{}
}

// NewForwarder returns a forwarder for a relay advertised at self. Packets
// are never forwarded back to self.
func NewForwarder(self string, client *http.Client, log zerolog.Logger) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: forwardTimeout}
	}
	return &Forwarder{
		self:      normalize(self),
		client:    client,
		log:       log.With().Str("component", "forwarder").Logger(),
		neighbors: make(map[string]struct{}),
	}
}

// AddNeighbor adds a relay base URL. It reports whether it was new.
func (f *Forwarder) AddNeighbor(base string) bool {
	base = normalize(base)
	if base == "" || base == f.self {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.neighbors[base]; ok {
		return false
	}
	f.neighbors[base] = struct{}{}
	f.log.Info().Str("neighbor", base).Msg("neighbor added")
	return true
}

// RemoveNeighbor forgets a relay.
func (f *Forwarder) RemoveNeighbor(base string) {
	f.mu.Lock()
	delete(f.neighbors, normalize(base))
	f.mu.Unlock()
}

// Neighbors returns the known relays in sorted order.
func (f *Forwarder) Neighbors() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.neighbors))
	for n := range f.neighbors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Next returns the copy of p to pass on, or false when its TTL is spent.
func Next(p domain.Packet) (domain.Packet, bool) {
	if p.TTL <= 1 {
		return p, false
	}
	p.TTL--
	return p, true
}

// Forward sends p to every neighbour except the one it came from. It
// returns how many relays accepted it.
func (f *Forwarder) Forward(ctx context.Context, p domain.Packet, from string) int {
	next, ok := Next(p)
	if !ok {
		return 0
	}
	body, err := json.Marshal(next)
	if err != nil {
		f.log.Error().Err(err).Str("id", p.ID).Msg("encode packet")
		return 0
	}

	from = normalize(from)
	sent := 0
	for _, n := range f.Neighbors() {
		if n == from {
			continue
		}
		if err := f.post(ctx, n, body); err != nil {
			f.log.Warn().Err(err).Str("neighbor", n).Str("id", p.ID).Msg("forward packet")
			continue
		}
		sent++
	}
	f.log.Debug().Str("id", p.ID).Int("ttl", next.TTL).Int("relays", sent).Msg("packet forwarded")
	return sent
}

func (f *Forwarder) post(ctx context.Context, base string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+IngressPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RelayHeader, f.self)
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", base, resp.Status)
	}
	return nil
}

// RelayHeader carries the forwarding relay's advertised URL.
const RelayHeader = "X-Meshtalk-Relay"

func normalize(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
