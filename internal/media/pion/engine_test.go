package pion_test

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/media/pion"
)

func TestEngine_OfferAnswer(t *testing.T) {
	eng := pion.New(nil, zerolog.Nop())
	ctx := context.Background()

	caller, err := eng.NewPeer(ctx, "callee", func(webrtc.ICECandidateInit) {})
	require.NoError(t, err)
	defer caller.Close()
	callee, err := eng.NewPeer(ctx, "caller", nil)
	require.NoError(t, err)
	defer callee.Close()

	offer, err := caller.CreateOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.Contains(t, offer.SDP, "m=audio")

	require.NoError(t, callee.SetRemoteDescription(offer))
	answer, err := callee.CreateAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, caller.SetRemoteDescription(answer))
}

func TestEngine_AnswerWithoutOfferFails(t *testing.T) {
	eng := pion.New([]string{"stun:stun.l.google.com:19302"}, zerolog.Nop())
	p, err := eng.NewPeer(context.Background(), "peer", nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.CreateAnswer(context.Background())
	require.Error(t, err)
}
