package quic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"meshtalk/internal/domain"
)

const (
	// MaxPayload bounds one framed payload.
	MaxPayload = 1 << 20
	maxNodeID  = 255
)

var errFrame = errors.New("malformed frame")

// writeFrame writes one message: a length-prefixed sender id followed by a
// length-prefixed payload, both big-endian.
func writeFrame(w io.Writer, from domain.NodeID, payload []byte) error {
	if len(from) > maxNodeID {
		return fmt.Errorf("%w: node id is %d bytes", errFrame, len(from))
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: payload is %d bytes", errFrame, len(payload))
	}
	hdr := make([]byte, 1+len(from)+4)
	hdr[0] = byte(len(from))
	copy(hdr[1:], from)
	binary.BigEndian.PutUint32(hdr[1+len(from):], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one message written by writeFrame.
func readFrame(r io.Reader) (domain.NodeID, []byte, error) {
	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", nil, err
	}
	from := make([]byte, n[0])
	if _, err := io.ReadFull(r, from); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errFrame, err)
	}
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errFrame, err)
	}
	l := binary.BigEndian.Uint32(size[:])
	if l > MaxPayload {
		return "", nil, fmt.Errorf("%w: payload is %d bytes", errFrame, l)
	}
	payload := make([]byte, l)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errFrame, err)
	}
	return domain.NodeID(from), payload, nil
}
