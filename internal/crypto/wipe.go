package crypto

import "runtime"

// Wipe zeroes key material once it is no longer needed: session keys after
// sealing, shared secrets after the AEAD is built, private keys after use.
//
//go:noinline
func Wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}
