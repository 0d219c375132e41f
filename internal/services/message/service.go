package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/events"
	"meshtalk/internal/protocol/wire"
)

// handleTimeout bounds the handling of one inbound signal.
const handleTimeout = 10 * time.Second

var (
	// ErrDegradedRefused is returned for degraded traffic when degraded mode
	// is not enabled.
	ErrDegradedRefused = errors.New("degraded envelope refused")

	errNoHandler = errors.New("no signal handler attached")
)

// Config tunes a Service.
type Config struct {
	// AllowDegraded permits the degraded path when a recipient's key cannot
	// be resolved, and accepts degraded envelopes from peers.
	AllowDegraded bool
	// NoCompression disables lz4 compression of message data.
	NoCompression bool
	Logger        zerolog.Logger
}

// Service moves application payloads between nodes.
//
// Outbound, it resolves the recipient key, wraps the payload, encrypts it
// into one or more envelopes and hands them to the transport. Inbound, it
// decodes and opens envelopes, then routes signaling to the attached
// SignalHandler and text or voice to subscribers.
type Service struct {
	dir       domain.Directory
	engine    *crypto.Engine
	transport domain.Transport
	cfg       Config
	log       zerolog.Logger
	bus       *events.Bus[domain.InboundMessage]
	now       func() time.Time

	mu      sync.RWMutex
	handler domain.SignalHandler
}

// New returns a message service.
func New(dir domain.Directory, engine *crypto.Engine, transport domain.Transport, cfg Config) *Service {
	log := cfg.Logger.With().Str("component", "message").Logger()
	s := &Service{
		dir:       dir,
		engine:    engine,
		transport: transport,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
	s.bus = events.NewBus(func(m domain.InboundMessage) {
		log.Warn().Str("peer", m.From.String()).Str("id", m.ID).Msg("inbox subscriber full; message dropped")
	})
	return s
}

// HandleSignals attaches the consumer of inbound signaling. The session
// machine sends through this service, so it is attached after both exist.
func (s *Service) HandleSignals(h domain.SignalHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Send delivers a text or voice message to peer. body is UTF-8 text for
// domain.PayloadText and encoded audio for domain.PayloadVoice.
func (s *Service) Send(
	ctx context.Context,
	to domain.NodeID,
	kind domain.PayloadKind,
	body []byte,
) (domain.Delivery, error) {
	msg := &wire.AppMessage{ID: uuid.NewString(), Timestamp: s.now().UnixMilli()}
	switch kind {
	case domain.PayloadText:
		msg.Text = string(body)
	case domain.PayloadVoice:
		msg.Audio = body
	default:
		return domain.Delivery{}, fmt.Errorf("%w: cannot send %q", domain.ErrMalformedPayload, kind)
	}

	plain, compressed, err := wire.EncodePayload(wire.Payload{Kind: kind, Message: msg}, !s.cfg.NoCompression)
	if err != nil {
		return domain.Delivery{}, domain.Wrap(domain.ErrEncryption, err)
	}
	pk := domain.PacketText
	if kind == domain.PayloadVoice {
		pk = domain.PacketVoice
	}
	d, err := s.seal(ctx, to, pk, plain)
	if err != nil {
		return domain.Delivery{}, err
	}
	d.Compressed = compressed
	s.log.Debug().Str("peer", to.String()).Str("kind", string(kind)).Str("mode", string(d.Mode)).
		Int("chunks", d.Chunks).Bool("compressed", compressed).Msg("message sent")
	return d, nil
}

// SendSignal delivers a call-control message to peer.
func (s *Service) SendSignal(ctx context.Context, to domain.NodeID, sig domain.Signal) error {
	plain, _, err := wire.EncodePayload(wire.SignalPayload(sig), false)
	if err != nil {
		return domain.Wrap(domain.ErrEncryption, err)
	}
	d, err := s.seal(ctx, to, domain.PacketSignal, plain)
	if err != nil {
		return err
	}
	s.log.Debug().Str("peer", to.String()).Str("signal", string(sig.Kind())).
		Str("call_id", sig.Call().String()).Str("mode", string(d.Mode)).Msg("signal sent")
	return nil
}

// seal encrypts plain for to and sends it. The degraded path is taken only
// when it is enabled and no key for to exists. kind rides on the context so
// relaying transports can pick a hop budget.
func (s *Service) seal(
	ctx context.Context,
	to domain.NodeID,
	kind domain.PacketKind,
	plain []byte,
) (domain.Delivery, error) {
	var (
		envs []domain.Envelope
		mode = domain.ModePrimary
	)
	key, err := s.dir.Resolve(ctx, to)
	switch {
	case err == nil:
		envs, err = s.engine.EncryptChunks(plain, key.PublicKey)
	case errors.Is(err, domain.ErrPeerKeyNotFound) && s.cfg.AllowDegraded:
		s.log.Warn().Str("peer", to.String()).Msg("no key for peer; sending in degraded mode")
		mode = domain.ModeDegraded
		envs, err = s.engine.EncryptDegradedChunks(plain, to)
	default:
		return domain.Delivery{}, err
	}
	if err != nil {
		return domain.Delivery{}, err
	}

	out, err := wire.EncodeEnvelopes(envs)
	if err != nil {
		return domain.Delivery{}, err
	}
	if err := s.transport.Send(domain.WithPacketKind(ctx, kind), to, out); err != nil {
		if !errors.Is(err, domain.ErrTransport) {
			err = domain.Wrap(domain.ErrTransport, err)
		}
		return domain.Delivery{}, err
	}
	return domain.Delivery{Mode: mode, Chunks: len(envs)}, nil
}

// Deliver processes one inbound transport payload. It never blocks on
// subscribers and tolerates duplicates.
func (s *Service) Deliver(from domain.NodeID, payload []byte) {
	log := s.log.With().Str("peer", from.String()).Logger()

	envs, err := wire.DecodeEnvelopes(payload)
	if err != nil {
		log.Warn().Err(err).Msg("drop undecodable envelope")
		s.failPeer(from, err)
		return
	}
	mode := envs[0].Mode
	if mode == domain.ModeDegraded && !s.cfg.AllowDegraded {
		log.Warn().Err(ErrDegradedRefused).Msg("drop envelope")
		return
	}

	plain, err := s.engine.OpenChunks(envs)
	switch {
	case errors.Is(err, domain.ErrUnknownRecipient):
		log.Debug().Err(err).Msg("envelope not addressed to us")
		return
	case err != nil:
		log.Warn().Err(err).Msg("drop envelope")
		s.failPeer(from, err)
		return
	}

	p, err := wire.DecodePayload(plain)
	if err != nil {
		log.Warn().Err(err).Msg("drop payload")
		s.failPeer(from, err)
		return
	}

	switch p.Kind {
	case domain.PayloadSignal:
		s.handleSignal(log, from, p.Signal)
	case domain.PayloadText, domain.PayloadVoice:
		m := domain.InboundMessage{
			ID:        p.Message.ID,
			From:      from,
			Kind:      p.Kind,
			Codec:     p.Message.Codec,
			Timestamp: p.Message.Timestamp,
			Mode:      mode,
		}
		if p.Kind == domain.PayloadText {
			m.Body = []byte(p.Message.Text)
		} else {
			m.Body = p.Message.Audio
		}
		if mode == domain.ModeDegraded {
			log.Warn().Str("id", m.ID).Msg("message received in degraded mode")
		}
		s.bus.Publish(m)
	}
}

func (s *Service) handleSignal(log zerolog.Logger, from domain.NodeID, sig domain.Signal) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		log.Warn().Err(errNoHandler).Str("signal", string(sig.Kind())).Msg("drop signal")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	err := h.Handle(ctx, from, sig)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIgnoredDuplicate):
		log.Debug().Err(err).Str("signal", string(sig.Kind())).Msg("signal ignored")
	default:
		log.Warn().Err(err).Str("signal", string(sig.Kind())).Str("call_id", sig.Call().String()).
			Msg("handle signal")
	}
}

// failPeer fails a live call with from after a bad payload.
func (s *Service) failPeer(from domain.NodeID, cause error) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		return
	}
	if err := h.Fail(from, cause); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		s.log.Warn().Err(err).Str("peer", from.String()).Msg("fail call")
	}
}

// Run receives from the transport until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	return s.transport.Receive(ctx, s.Deliver)
}

// Subscribe registers an inbox listener for text and voice messages.
func (s *Service) Subscribe(buffer int) (<-chan domain.InboundMessage, func()) {
	return s.bus.Subscribe(buffer)
}

var _ domain.MessageService = (*Service)(nil)
