package relay

import (
	"time"

	"github.com/google/uuid"

	"meshtalk/internal/domain"
)

// NewPacket wraps payload for the relay with a fresh id and the default hop
// budget for kind.
func NewPacket(from, to domain.NodeID, kind domain.PacketKind, payload []byte) domain.Packet {
	return domain.Packet{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		TTL:       kind.DefaultTTL(),
	}
}

// Heartbeat is the body of POST /api/node.
type Heartbeat struct {
	NodeID  domain.NodeID `json:"node_id"`
	Address string        `json:"address,omitempty"`
}

// PacketIDs returns the ids of ps in order.
func PacketIDs(ps []domain.Packet) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

type ackRequest struct {
	IDs []string `json:"ids"`
}
