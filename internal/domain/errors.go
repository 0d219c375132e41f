package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Sub-kinds wrap their parent so that
// errors.Is(err, ErrDecryption) also matches ErrMalformedEnvelope.
var (
	ErrInitialization = errors.New("engine used before identity is ready")
	ErrNotInitialized = errors.New("identity not initialized")
	ErrStorage        = errors.New("storage unavailable")
	ErrKeyGeneration  = errors.New("key generation failed")
	ErrEncryption     = errors.New("encryption failed")
	ErrTransport      = errors.New("transport failure")

	ErrDecryption        = errors.New("decryption failed")
	ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", ErrDecryption)
	ErrUnknownRecipient  = fmt.Errorf("%w: unknown recipient", ErrDecryption)

	ErrSignaling         = errors.New("signaling error")
	ErrInvalidTransition = fmt.Errorf("%w: invalid transition", ErrSignaling)
	ErrTimeout           = fmt.Errorf("%w: timeout", ErrSignaling)
	ErrBusy              = fmt.Errorf("%w: busy", ErrSignaling)
	ErrIgnoredDuplicate  = fmt.Errorf("%w: ignored duplicate", ErrSignaling)

	ErrMalformedPayload = errors.New("malformed payload")
	ErrPeerKeyNotFound  = errors.New("peer public key not found")
	ErrUnknownKEM       = errors.New("unknown key encapsulation mechanism")
)

// Wrap attaches cause to kind so both match with errors.Is.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
