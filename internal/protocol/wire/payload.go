package wire

import (
	"encoding/json"
	"fmt"

	"meshtalk/internal/domain"
)

// compressThreshold is the smallest data object worth trying to compress.
const compressThreshold = 1024

const encodingLZ4 = "lz4"

// AppMessage is the data of a text or voice payload.
type AppMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	Codec     string `json:"codec,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Payload is a decrypted application payload. Exactly one of Signal and
// Message is set, according to Kind.
type Payload struct {
	Kind       domain.PayloadKind
	Signal     domain.Signal
	Message    *AppMessage
	Compressed bool
}

type payloadJSON struct {
	Type     domain.PayloadKind `json:"type"`
	Data     json.RawMessage    `json:"data"`
	Encoding string             `json:"encoding,omitempty"`
}

// SignalPayload wraps sig for sending.
func SignalPayload(sig domain.Signal) Payload {
	return Payload{Kind: domain.PayloadSignal, Signal: sig}
}

// EncodePayload renders p. With compress set, data objects over 1 KiB are
// lz4-compressed when that makes them smaller; p.Compressed is ignored.
func EncodePayload(p Payload, compress bool) ([]byte, bool, error) {
	var (
		data []byte
		err  error
	)
	switch p.Kind {
	case domain.PayloadSignal:
		if p.Signal == nil {
			return nil, false, fmt.Errorf("%w: signal payload without signal", domain.ErrMalformedPayload)
		}
		var sj signalJSON
		if sj, err = encodeSignal(p.Signal); err != nil {
			return nil, false, err
		}
		data, err = json.Marshal(sj)
	case domain.PayloadText, domain.PayloadVoice:
		if p.Message == nil {
			return nil, false, fmt.Errorf("%w: %s payload without message", domain.ErrMalformedPayload, p.Kind)
		}
		data, err = json.Marshal(p.Message)
	default:
		return nil, false, fmt.Errorf("%w: unknown payload type %q", domain.ErrMalformedPayload, p.Kind)
	}
	if err != nil {
		return nil, false, err
	}

	pj := payloadJSON{Type: p.Kind, Data: data}
	compressed := false
	if compress && len(data) > compressThreshold {
		if z, err := compressLZ4(data); err == nil {
			if quoted, err := json.Marshal(z); err == nil && len(quoted) < len(data) {
				pj.Data = quoted
				pj.Encoding = encodingLZ4
				compressed = true
			}
		}
	}
	out, err := json.Marshal(pj)
	return out, compressed, err
}

// DecodePayload parses a decrypted payload and dispatches on its type.
func DecodePayload(b []byte) (Payload, error) {
	var pj payloadJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return Payload{}, domain.Wrap(domain.ErrMalformedPayload, err)
	}
	if len(pj.Data) == 0 {
		return Payload{}, fmt.Errorf("%w: missing data", domain.ErrMalformedPayload)
	}

	p := Payload{Kind: pj.Type}
	data := []byte(pj.Data)
	switch pj.Encoding {
	case "":
	case encodingLZ4:
		var z []byte
		if err := json.Unmarshal(pj.Data, &z); err != nil {
			return Payload{}, domain.Wrap(domain.ErrMalformedPayload, err)
		}
		raw, err := decompressLZ4(z)
		if err != nil {
			return Payload{}, domain.Wrap(domain.ErrMalformedPayload, err)
		}
		data = raw
		p.Compressed = true
	default:
		return Payload{}, fmt.Errorf("%w: unknown encoding %q", domain.ErrMalformedPayload, pj.Encoding)
	}

	switch pj.Type {
	case domain.PayloadSignal:
		sig, err := decodeSignal(data)
		if err != nil {
			return Payload{}, err
		}
		p.Signal = sig
	case domain.PayloadText, domain.PayloadVoice:
		var m AppMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Payload{}, domain.Wrap(domain.ErrMalformedPayload, err)
		}
		p.Message = &m
	default:
		return Payload{}, fmt.Errorf("%w: unknown payload type %q", domain.ErrMalformedPayload, pj.Type)
	}
	return p, nil
}
