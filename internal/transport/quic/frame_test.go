package quic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, "node-a", []byte("payload")))
	require.NoError(t, writeFrame(&buf, "node-b", nil))

	from, p, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "node-a", string(from))
	assert.Equal(t, "payload", string(p))

	from, p, err = readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "node-b", string(from))
	assert.Empty(t, p)
}

func TestFrame_Limits(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, writeFrame(&buf, "n", make([]byte, MaxPayload+1)), errFrame)

	hdr := []byte{1, 'n', 0xff, 0xff, 0xff, 0xff}
	_, _, err := readFrame(bytes.NewReader(hdr))
	require.ErrorIs(t, err, errFrame)

	_, _, err = readFrame(bytes.NewReader([]byte{3, 'a'}))
	require.ErrorIs(t, err, errFrame)
}
