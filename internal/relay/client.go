package relay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meshtalk/internal/domain"
	"meshtalk/internal/mesh"
)

const (
	// DefaultPollInterval is the wait between empty polls.
	DefaultPollInterval = time.Second
	// DefaultBatchSize is the number of packets fetched per poll.
	DefaultBatchSize = 64

	maxPollBackoff = 30 * time.Second
)

// Client talks to a relay over plain HTTP. It is a polling Transport and
// the key DirectoryClient.
type Client struct {
	Base         string
	Self         domain.NodeID
	HTTP         *http.Client
	PollInterval time.Duration
	BatchSize    int

	log zerolog.Logger
}

// NewClient returns a client for the relay at base acting as self.
func NewClient(base string, self domain.NodeID, log zerolog.Logger) *Client {
	return &Client{
		Base:         strings.TrimRight(base, "/"),
		Self:         self,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		PollInterval: DefaultPollInterval,
		BatchSize:    DefaultBatchSize,
		log:          log.With().Str("component", "relay-client").Logger(),
	}
}

// Send posts payload to the relay queue of to.
func (c *Client) Send(ctx context.Context, to domain.NodeID, payload []byte) error {
	pkt := NewPacket(c.Self, to, domain.PacketKindFrom(ctx), payload)
	if err := c.post(ctx, "/msg/"+url.PathEscape(to.String()), pkt, nil); err != nil {
		return domain.Wrap(domain.ErrTransport, err)
	}
	return nil
}

// Fetch returns up to limit queued packets without removing them.
func (c *Client) Fetch(ctx context.Context, limit int) ([]domain.Packet, error) {
	path := "/msg/" + url.PathEscape(c.Self.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var pkts []domain.Packet
	if err := c.getJSON(ctx, path, &pkts); err != nil {
		return nil, domain.Wrap(domain.ErrTransport, err)
	}
	return pkts, nil
}

// Ack drops the queued packets with the given ids.
func (c *Client) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	path := "/msg/" + url.PathEscape(c.Self.String()) + "/ack"
	if err := c.post(ctx, path, ackRequest{IDs: ids}, nil); err != nil {
		return domain.Wrap(domain.ErrTransport, err)
	}
	return nil
}

// Receive polls the relay and delivers packets until ctx is done. Relay
// errors are logged and retried with backoff. A packet is acknowledged only
// after it has been delivered, so a crash can replay it.
func (c *Client) Receive(ctx context.Context, deliver domain.DeliverFunc) error {
	wait := c.PollInterval
	for {
		pkts, err := c.Fetch(ctx, c.BatchSize)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			c.log.Warn().Err(err).Dur("retry", wait).Msg("poll relay")
			wait = min(wait*2, maxPollBackoff)
		default:
			wait = c.PollInterval
			for _, p := range pkts {
				deliver(p.From, p.Payload)
			}
			if err := c.Ack(ctx, PacketIDs(pkts)...); err != nil && ctx.Err() == nil {
				c.log.Warn().Err(err).Int("count", len(pkts)).Msg("ack relay")
			}
			if len(pkts) > 0 && len(pkts) == c.BatchSize {
				continue
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// PublishKey stores key in the relay directory.
func (c *Client) PublishKey(ctx context.Context, key domain.PeerKey) error {
	if err := c.post(ctx, "/keys", key, nil); err != nil {
		return domain.Wrap(domain.ErrTransport, err)
	}
	return nil
}

// FetchKey returns the key the relay holds for node.
func (c *Client) FetchKey(ctx context.Context, node domain.NodeID) (domain.PeerKey, error) {
	var key domain.PeerKey
	err := c.getJSON(ctx, "/keys/"+url.PathEscape(node.String()), &key)
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return domain.PeerKey{}, domain.Wrap(domain.ErrPeerKeyNotFound, err)
	case err != nil:
		return domain.PeerKey{}, domain.Wrap(domain.ErrTransport, err)
	}
	return key, nil
}

// Heartbeat registers this node with the relay.
func (c *Client) Heartbeat(ctx context.Context, addr string) error {
	if err := c.post(ctx, "/api/node", Heartbeat{NodeID: c.Self, Address: addr}, nil); err != nil {
		return domain.Wrap(domain.ErrTransport, err)
	}
	return nil
}

// Network lists the nodes the relay knows.
func (c *Client) Network(ctx context.Context) (Network, error) {
	var n Network
	if err := c.getJSON(ctx, "/api/network", &n); err != nil {
		return Network{}, domain.Wrap(domain.ErrTransport, err)
	}
	return n, nil
}

// Network is the body of GET /api/network.
type Network struct {
	Nodes     []mesh.Node `json:"nodes"`
	Neighbors []string    `json:"neighbors"`
}

var (
	_ domain.Transport       = (*Client)(nil)
	_ domain.DirectoryClient = (*Client)(nil)
)
