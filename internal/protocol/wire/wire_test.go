package wire_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/protocol/wire"
)

func sampleEnvelope(mode domain.EnvelopeMode) domain.Envelope {
	env := domain.Envelope{
		Nonce:      bytes.Repeat([]byte{1}, crypto.NonceSize),
		Ciphertext: []byte("ciphertext"),
		Tag:        bytes.Repeat([]byte{2}, crypto.TagSize),
		Mode:       mode,
	}
	if mode == domain.ModePrimary {
		env.EncryptedKey = []byte("wrapped-key")
	}
	return env
}

func TestEnvelope_WireShape(t *testing.T) {
	b, err := wire.EncodeEnvelope(sampleEnvelope(domain.ModePrimary))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "encrypted_key")
	assert.Contains(t, m, "encrypted_data")
	assert.NotContains(t, m, "mode")

	got, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, sampleEnvelope(domain.ModePrimary), got)
}

func TestEnvelope_DegradedIsLabelled(t *testing.T) {
	b, err := wire.EncodeEnvelope(sampleEnvelope(domain.ModeDegraded))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mode":"degraded"`)
	assert.Contains(t, string(b), `"encrypted_key":""`)

	got, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	assert.True(t, got.Degraded())
}

func TestEnvelope_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":     `{{`,
		"missing key":  `{"encrypted_key":"","encrypted_data":"` + strings.Repeat("A", 80) + `"}`,
		"short data":   `{"encrypted_key":"a2V5","encrypted_data":"AAAA"}`,
		"unknown mode": `{"encrypted_key":"a2V5","encrypted_data":"AAAA","mode":"legacy"}`,
		"bad base64":   `{"encrypted_key":"***","encrypted_data":"AAAA"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wire.DecodeEnvelope([]byte(in))
			require.ErrorIs(t, err, domain.ErrMalformedEnvelope)
			require.ErrorIs(t, err, domain.ErrDecryption)
		})
	}
}

func TestEnvelopes_SingleAndArray(t *testing.T) {
	one := []domain.Envelope{sampleEnvelope(domain.ModePrimary)}
	b, err := wire.EncodeEnvelopes(one)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), b[0])

	got, err := wire.DecodeEnvelopes(b)
	require.NoError(t, err)
	assert.Equal(t, one, got)

	many := []domain.Envelope{sampleEnvelope(domain.ModePrimary), sampleEnvelope(domain.ModePrimary)}
	b, err = wire.EncodeEnvelopes(many)
	require.NoError(t, err)
	assert.Equal(t, byte('['), b[0])

	got, err = wire.DecodeEnvelopes(b)
	require.NoError(t, err)
	assert.Equal(t, many, got)

	_, err = wire.DecodeEnvelopes([]byte(`[]`))
	require.ErrorIs(t, err, domain.ErrMalformedEnvelope)
}

func TestEnvelope_EngineRoundTrip(t *testing.T) {
	pub, priv, err := crypto.NewRSAOAEP(2048).GenerateKeyPair()
	require.NoError(t, err)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	env, err := eng.Encrypt([]byte("hello"), pub)
	require.NoError(t, err)
	b, err := wire.EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	pt, err := eng.Decrypt(decoded, priv)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestPayload_Signals(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	ufrag := "abcd"
	signals := []domain.Signal{
		domain.Offer{CallID: "c1", Description: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}},
		domain.Answer{CallID: "c1", Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}},
		domain.ICECandidate{CallID: "c1", Candidate: webrtc.ICECandidateInit{
			Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx, UsernameFragment: &ufrag,
		}},
		domain.EndCall{CallID: "c1", Reason: "hangup"},
	}
	for _, sig := range signals {
		t.Run(string(sig.Kind()), func(t *testing.T) {
			b, compressed, err := wire.EncodePayload(wire.SignalPayload(sig), true)
			require.NoError(t, err)
			assert.False(t, compressed)

			p, err := wire.DecodePayload(b)
			require.NoError(t, err)
			assert.Equal(t, domain.PayloadSignal, p.Kind)
			assert.Equal(t, sig, p.Signal)
		})
	}
}

func TestPayload_SignalWireShape(t *testing.T) {
	in := `{"type":"webrtc_signal","data":{"type":"ice_candidate","candidate":"candidate:x","sdpMid":"0","sdpMLineIndex":0}}`
	p, err := wire.DecodePayload([]byte(in))
	require.NoError(t, err)

	c, ok := p.Signal.(domain.ICECandidate)
	require.True(t, ok)
	assert.Equal(t, "candidate:x", c.Candidate.Candidate)
	require.NotNil(t, c.Candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *c.Candidate.SDPMLineIndex)
	assert.Empty(t, c.CallID)
}

func TestPayload_TextCompression(t *testing.T) {
	msg := &wire.AppMessage{ID: "m1", Text: strings.Repeat("all work and no play ", 200), Timestamp: 42}
	b, compressed, err := wire.EncodePayload(wire.Payload{Kind: domain.PayloadText, Message: msg}, true)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Contains(t, string(b), `"encoding":"lz4"`)
	assert.Less(t, len(b), len(msg.Text))

	p, err := wire.DecodePayload(b)
	require.NoError(t, err)
	assert.True(t, p.Compressed)
	assert.Equal(t, msg, p.Message)

	b, compressed, err = wire.EncodePayload(wire.Payload{Kind: domain.PayloadText, Message: msg}, false)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.NotContains(t, string(b), "encoding")
}

func TestPayload_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `nope`,
		"no data":        `{"type":"text"}`,
		"unknown type":   `{"type":"file","data":{}}`,
		"unknown signal": `{"type":"webrtc_signal","data":{"type":"renegotiate"}}`,
		"offer no sdp":   `{"type":"webrtc_signal","data":{"type":"offer"}}`,
		"bad encoding":   `{"type":"text","data":"AAAA","encoding":"zstd"}`,
		"bad lz4":        `{"type":"text","data":"AAAA","encoding":"lz4"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wire.DecodePayload([]byte(in))
			require.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}

	_, _, err := wire.EncodePayload(wire.Payload{Kind: domain.PayloadSignal}, false)
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
}
