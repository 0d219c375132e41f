package message_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/services/directory"
	"meshtalk/internal/services/identity"
	"meshtalk/internal/services/message"
	"meshtalk/internal/store"
	"meshtalk/internal/transport/memory"
)

type node struct {
	id  domain.NodeID
	pub []byte
	dir *directory.Service
	svc *message.Service
	tr  *memory.Transport
}

func newNode(t *testing.T, hub *memory.Hub, cfg message.Config) *node {
	t.Helper()
	kem := crypto.NewKyber1024()
	keys := identity.New(store.NewIdentityKVStore(store.NewMemoryKV(), ""), kem, zerolog.Nop())
	id, err := keys.GenerateIdentity(context.Background())
	require.NoError(t, err)

	dir := directory.New(keys, store.NewPeerKeyFileStore(t.TempDir()), nil, kem.Name(), zerolog.Nop())
	tr := hub.Endpoint(id.NodeID)
	cfg.Logger = zerolog.Nop()
	svc := message.New(dir, crypto.NewEngine(kem, keys), tr, cfg)
	return &node{id: id.NodeID, pub: id.PublicKey, dir: dir, svc: svc, tr: tr}
}

// run starts n's receive loop for the rest of the test.
func (n *node) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func introduce(t *testing.T, a, b *node) {
	t.Helper()
	require.NoError(t, a.dir.Pin(domain.PeerKey{PublicKey: b.pub}))
	require.NoError(t, b.dir.Pin(domain.PeerKey{PublicKey: a.pub}))
}

func receive(t *testing.T, ch <-chan domain.InboundMessage) domain.InboundMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return domain.InboundMessage{}
	}
}

type recordingHandler struct {
	mu      sync.Mutex
	signals []domain.Signal
	failed  []error
}

func (h *recordingHandler) Handle(_ context.Context, _ domain.NodeID, sig domain.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signals = append(h.signals, sig)
	if len(h.signals) > 1 {
		return domain.ErrIgnoredDuplicate
	}
	return nil
}

func (h *recordingHandler) Fail(_ domain.NodeID, cause error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, cause)
	return nil
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.signals), len(h.failed)
}

func TestService_TextRoundTrip(t *testing.T) {
	hub := memory.NewHub()
	a, b := newNode(t, hub, message.Config{}), newNode(t, hub, message.Config{})
	introduce(t, a, b)
	inbox, cancel := b.svc.Subscribe(4)
	defer cancel()
	b.run(t)

	d, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.ModePrimary, d.Mode)
	assert.Equal(t, 1, d.Chunks)
	assert.False(t, d.Compressed)

	m := receive(t, inbox)
	assert.Equal(t, a.id, m.From)
	assert.Equal(t, domain.PayloadText, m.Kind)
	assert.Equal(t, "hello", string(m.Body))
	assert.Equal(t, domain.ModePrimary, m.Mode)
	assert.NotEmpty(t, m.ID)
}

func TestService_LargeVoiceIsChunked(t *testing.T) {
	hub := memory.NewHub()
	a, b := newNode(t, hub, message.Config{}), newNode(t, hub, message.Config{})
	introduce(t, a, b)
	inbox, cancel := b.svc.Subscribe(4)
	defer cancel()
	b.run(t)

	audio := make([]byte, 3*crypto.MaxPlaintext)
	_, err := rand.Read(audio)
	require.NoError(t, err)

	d, err := a.svc.Send(context.Background(), b.id, domain.PayloadVoice, audio)
	require.NoError(t, err)
	assert.Greater(t, d.Chunks, 3)
	assert.False(t, d.Compressed)

	m := receive(t, inbox)
	assert.Equal(t, domain.PayloadVoice, m.Kind)
	assert.True(t, bytes.Equal(audio, m.Body))
}

func TestService_CompressesRepetitiveText(t *testing.T) {
	hub := memory.NewHub()
	a, b := newNode(t, hub, message.Config{}), newNode(t, hub, message.Config{})
	introduce(t, a, b)
	inbox, cancel := b.svc.Subscribe(4)
	defer cancel()
	b.run(t)

	text := strings.Repeat("over and out. ", 2000)
	d, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte(text))
	require.NoError(t, err)
	assert.True(t, d.Compressed)
	assert.Equal(t, 1, d.Chunks)

	assert.Equal(t, text, string(receive(t, inbox).Body))
}

func TestService_UnknownPeerWithoutDegraded(t *testing.T) {
	hub := memory.NewHub()
	a, b := newNode(t, hub, message.Config{}), newNode(t, hub, message.Config{})

	_, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("hi"))
	require.ErrorIs(t, err, domain.ErrPeerKeyNotFound)
}

func TestService_DegradedIsLabelled(t *testing.T) {
	hub := memory.NewHub()
	cfg := message.Config{AllowDegraded: true}
	a, b := newNode(t, hub, cfg), newNode(t, hub, cfg)
	inbox, cancel := b.svc.Subscribe(4)
	defer cancel()
	b.run(t)

	d, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("weak"))
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDegraded, d.Mode)

	m := receive(t, inbox)
	assert.Equal(t, domain.ModeDegraded, m.Mode)
	assert.Equal(t, "weak", string(m.Body))
}

func TestService_DegradedRefusedByStrictReceiver(t *testing.T) {
	hub := memory.NewHub()
	a := newNode(t, hub, message.Config{AllowDegraded: true})
	b := newNode(t, hub, message.Config{})
	inbox, cancel := b.svc.Subscribe(4)
	defer cancel()
	b.run(t)

	_, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("weak"))
	require.NoError(t, err)

	select {
	case m := <-inbox:
		t.Fatalf("degraded message delivered: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestService_PrimaryPreferredWhenKeyKnown(t *testing.T) {
	hub := memory.NewHub()
	cfg := message.Config{AllowDegraded: true}
	a, b := newNode(t, hub, cfg), newNode(t, hub, cfg)
	introduce(t, a, b)

	d, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("strong"))
	require.NoError(t, err)
	assert.Equal(t, domain.ModePrimary, d.Mode)
}

func TestService_SignalsReachHandler(t *testing.T) {
	hub := memory.NewHub()
	hub.Duplicate(true)
	a, b := newNode(t, hub, message.Config{}), newNode(t, hub, message.Config{})
	introduce(t, a, b)
	h := &recordingHandler{}
	b.svc.HandleSignals(h)
	b.run(t)

	require.NoError(t, a.svc.SendSignal(context.Background(), b.id, domain.EndCall{CallID: "c1", Reason: "hangup"}))
	require.Eventually(t, func() bool {
		n, _ := h.counts()
		return n == 2
	}, 2*time.Second, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, domain.EndCall{CallID: "c1", Reason: "hangup"}, h.signals[0])
}

func TestService_MalformedPayloadFailsPeer(t *testing.T) {
	hub := memory.NewHub()
	b := newNode(t, hub, message.Config{})
	h := &recordingHandler{}
	b.svc.HandleSignals(h)

	b.svc.Deliver("someone", []byte(`{"encrypted_key":"","encrypted_data":""}`))
	_, failed := h.counts()
	assert.Equal(t, 1, failed)

	h.mu.Lock()
	require.ErrorIs(t, h.failed[0], domain.ErrMalformedEnvelope)
	h.mu.Unlock()
}

func TestService_TransportFailure(t *testing.T) {
	hub := memory.NewHub()
	a := newNode(t, hub, message.Config{})
	other := memory.NewHub()
	b := newNode(t, other, message.Config{})
	introduce(t, a, b)

	_, err := a.svc.Send(context.Background(), b.id, domain.PayloadText, []byte("hi"))
	require.ErrorIs(t, err, domain.ErrTransport)
	require.ErrorIs(t, a.svc.SendSignal(context.Background(), b.id, domain.EndCall{}), domain.ErrTransport)
}

func TestService_RejectsUnknownKind(t *testing.T) {
	hub := memory.NewHub()
	a := newNode(t, hub, message.Config{})
	_, err := a.svc.Send(context.Background(), "x", domain.PayloadSignal, nil)
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
}
