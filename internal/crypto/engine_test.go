package crypto_test

import (
	"bytes"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
)

var (
	rsaOnce         sync.Once
	rsaPub, rsaPriv []byte
	rsaErr          error
)

// rsaKeys returns one RSA key pair shared by the tests in this package.
func rsaKeys(t *testing.T) (pub, priv []byte) {
	t.Helper()
	rsaOnce.Do(func() {
		rsaPub, rsaPriv, rsaErr = crypto.NewRSAOAEP(2048).GenerateKeyPair()
	})
	require.NoError(t, rsaErr)
	return rsaPub, rsaPriv
}

type staticKeys struct {
	priv []byte
	id   domain.NodeID
}

func (k staticKeys) PrivateKey() ([]byte, error)    { return k.priv, nil }
func (k staticKeys) NodeID() (domain.NodeID, error) { return k.id, nil }

func TestEngine_RoundTrip_OK(t *testing.T) {
	pub, priv := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	for _, size := range []int{0, 1, 31, 32, 33, 1000, crypto.MaxPlaintext} {
		pt := bytes.Repeat([]byte{0xA5}, size)
		env, err := eng.Encrypt(pt, pub)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, domain.ModePrimary, env.Mode)

		got, err := eng.Decrypt(env, priv)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, pt, got)
	}
}

func TestEngine_Hello_Scenario(t *testing.T) {
	pub, priv := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	env, err := eng.Encrypt([]byte("hello"), pub)
	require.NoError(t, err)

	// Both wire fields are valid base64.
	_, err = base64.StdEncoding.DecodeString(crypto.B64(env.EncryptedKey))
	require.NoError(t, err)

	got, err := eng.Decrypt(env, priv)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestEngine_FreshKeyAndNoncePerCall(t *testing.T) {
	pub, _ := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	a, err := eng.Encrypt([]byte("same"), pub)
	require.NoError(t, err)
	b, err := eng.Encrypt([]byte("same"), pub)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.EncryptedKey, b.EncryptedKey)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEngine_OverCeiling_Rejected(t *testing.T) {
	pub, _ := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	_, err := eng.Encrypt(make([]byte, crypto.MaxPlaintext+1), pub)
	require.ErrorIs(t, err, domain.ErrEncryption)
	assert.ErrorIs(t, err, crypto.ErrPayloadTooLarge)
}

func TestEngine_Tampering_Detected(t *testing.T) {
	pub, priv := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	env, err := eng.Encrypt([]byte("attack at dawn"), pub)
	require.NoError(t, err)

	flipped := env
	flipped.Ciphertext = append([]byte(nil), env.Ciphertext...)
	flipped.Ciphertext[3] ^= 0x01
	_, err = eng.Decrypt(flipped, priv)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)

	badTag := env
	badTag.Tag = append([]byte(nil), env.Tag...)
	badTag.Tag[0] ^= 0x80
	_, err = eng.Decrypt(badTag, priv)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)

	badNonce := env
	badNonce.Nonce = env.Nonce[:8]
	_, err = eng.Decrypt(badNonce, priv)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
}

func TestEngine_WrongRecipient_Unknown(t *testing.T) {
	pub, _ := rsaKeys(t)
	kem := crypto.NewRSAOAEP(2048)
	_, otherPriv, err := kem.GenerateKeyPair()
	require.NoError(t, err)
	eng := crypto.NewEngine(kem, nil)

	env, err := eng.Encrypt([]byte("hi"), pub)
	require.NoError(t, err)

	_, err = eng.Decrypt(env, otherPriv)
	assert.ErrorIs(t, err, domain.ErrUnknownRecipient)
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestEngine_Open_NeedsIdentity(t *testing.T) {
	pub, priv := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)
	env, err := eng.Encrypt([]byte("x"), pub)
	require.NoError(t, err)

	_, err = eng.Open(env)
	assert.ErrorIs(t, err, domain.ErrInitialization)

	bound := crypto.NewEngine(crypto.NewRSAOAEP(2048), staticKeys{priv: priv, id: "me"})
	got, err := bound.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestEngine_Chunks_RoundTrip(t *testing.T) {
	pub, priv := rsaKeys(t)
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), nil)

	pt := make([]byte, 2*crypto.MaxPlaintext+17)
	for i := range pt {
		pt[i] = byte(i)
	}
	envs, err := eng.EncryptChunks(pt, pub)
	require.NoError(t, err)
	require.Len(t, envs, 3)

	got, err := eng.DecryptChunks(envs, priv)
	require.NoError(t, err)
	assert.Equal(t, pt, got)

	empty, err := eng.EncryptChunks(nil, pub)
	require.NoError(t, err)
	assert.Len(t, empty, 1)
}

func TestEngine_Degraded_LabelledAndBoundToRecipient(t *testing.T) {
	eng := crypto.NewEngine(crypto.NewRSAOAEP(2048), staticKeys{id: "bob"})

	env, err := eng.EncryptDegraded([]byte("fallback"), "bob")
	require.NoError(t, err)
	assert.True(t, env.Degraded())
	assert.Empty(t, env.EncryptedKey)

	got, err := eng.Open(env)
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(got))

	_, err = eng.DecryptDegraded(env, "carol")
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)

	// A degraded envelope never goes through the primary path.
	_, err = eng.Decrypt(env, nil)
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
}

func TestKyber1024_RoundTrip(t *testing.T) {
	kem, err := crypto.LookupKEM(crypto.Kyber1024Name)
	require.NoError(t, err)
	pub, priv, err := kem.GenerateKeyPair()
	require.NoError(t, err)

	eng := crypto.NewEngine(kem, nil)
	env, err := eng.Encrypt([]byte("post-quantum hello"), pub)
	require.NoError(t, err)
	got, err := eng.Decrypt(env, priv)
	require.NoError(t, err)
	assert.Equal(t, "post-quantum hello", string(got))
}

func TestX25519_RoundTrip(t *testing.T) {
	kem, err := crypto.LookupKEM(crypto.X25519Name)
	require.NoError(t, err)
	pub, priv, err := kem.GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pub, 32)

	eng := crypto.NewEngine(kem, nil)
	env, err := eng.Encrypt([]byte("curve hello"), pub)
	require.NoError(t, err)
	got, err := eng.Decrypt(env, priv)
	require.NoError(t, err)
	assert.Equal(t, "curve hello", string(got))

	_, otherPriv, err := kem.GenerateKeyPair()
	require.NoError(t, err)
	_, err = eng.Decrypt(env, otherPriv)
	assert.ErrorIs(t, err, domain.ErrUnknownRecipient)
}

func TestX25519_WrapIsFreshPerCall(t *testing.T) {
	kem := crypto.NewX25519()
	pub, _, err := kem.GenerateKeyPair()
	require.NoError(t, err)
	key := make([]byte, 32)
	a, err := kem.Wrap(pub, key)
	require.NoError(t, err)
	b, err := kem.Wrap(pub, key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = kem.Unwrap(make([]byte, 32), a[:40])
	assert.Error(t, err)
}

func TestKEMNames(t *testing.T) {
	assert.Equal(t, []string{crypto.Kyber1024Name, crypto.RSAOAEPName, crypto.X25519Name}, crypto.KEMNames())
}

func TestLookupKEM_Unknown(t *testing.T) {
	_, err := crypto.LookupKEM("rot13")
	assert.ErrorIs(t, err, domain.ErrUnknownKEM)

	k, err := crypto.LookupKEM("")
	require.NoError(t, err)
	assert.Equal(t, crypto.DefaultKEM, k.Name())
}
