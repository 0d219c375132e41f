package directory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/crypto"
	"meshtalk/internal/domain"
	"meshtalk/internal/services/directory"
	"meshtalk/internal/store"
)

type staticKeys struct{ pub []byte }

func (k staticKeys) GenerateIdentity(context.Context) (domain.Identity, error) {
	return domain.Identity{}, nil
}
func (k staticKeys) Load() (domain.Identity, bool, error) { return domain.Identity{}, false, nil }
func (k staticKeys) Save(domain.Identity) error           { return nil }
func (k staticKeys) PublicKey() ([]byte, error)           { return k.pub, nil }
func (k staticKeys) PrivateKey() ([]byte, error)          { return nil, nil }
func (k staticKeys) NodeID() (domain.NodeID, error)       { return crypto.NodeIDFor(k.pub), nil }

type fakeClient struct {
	published []domain.PeerKey
	keys      map[domain.NodeID]domain.PeerKey
	fetches   int
}

func (c *fakeClient) PublishKey(_ context.Context, k domain.PeerKey) error {
	c.published = append(c.published, k)
	return nil
}

func (c *fakeClient) FetchKey(_ context.Context, node domain.NodeID) (domain.PeerKey, error) {
	c.fetches++
	k, ok := c.keys[node]
	if !ok {
		return domain.PeerKey{}, fmt.Errorf("%w: %s", domain.ErrPeerKeyNotFound, node)
	}
	return k, nil
}

const kemName = "rsa-oaep-2048"

func newDirectory(t *testing.T, client domain.DirectoryClient) *directory.Service {
	t.Helper()
	cache := store.NewPeerKeyFileStore(t.TempDir())
	return directory.New(staticKeys{pub: []byte("our-key")}, cache, client, kemName, zerolog.Nop())
}

func TestDirectory_Publish(t *testing.T) {
	client := &fakeClient{}
	dir := newDirectory(t, client)

	require.NoError(t, dir.Publish(context.Background()))
	require.Len(t, client.published, 1)
	assert.Equal(t, crypto.NodeIDFor([]byte("our-key")), client.published[0].NodeID)
	assert.Equal(t, kemName, client.published[0].KEM)
}

func TestDirectory_ResolveCaches(t *testing.T) {
	pub := []byte("peer-key")
	node := crypto.NodeIDFor(pub)
	client := &fakeClient{keys: map[domain.NodeID]domain.PeerKey{
		node: {NodeID: node, KEM: kemName, PublicKey: pub},
	}}
	dir := newDirectory(t, client)

	k, err := dir.Resolve(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, pub, k.PublicKey)
	assert.False(t, k.FetchedAt.IsZero())

	_, err = dir.Resolve(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, 1, client.fetches)
}

func TestDirectory_ResolveRejectsSubstitutedKey(t *testing.T) {
	node := crypto.NodeIDFor([]byte("real-key"))
	client := &fakeClient{keys: map[domain.NodeID]domain.PeerKey{
		node: {NodeID: node, KEM: kemName, PublicKey: []byte("relay-key")},
	}}
	dir := newDirectory(t, client)

	_, err := dir.Resolve(context.Background(), node)
	require.ErrorIs(t, err, directory.ErrKeyMismatch)
}

func TestDirectory_ResolveUnknown(t *testing.T) {
	dir := newDirectory(t, &fakeClient{})
	_, err := dir.Resolve(context.Background(), "0011223344")
	require.ErrorIs(t, err, domain.ErrPeerKeyNotFound)

	offline := newDirectory(t, nil)
	_, err = offline.Resolve(context.Background(), "0011223344")
	require.ErrorIs(t, err, domain.ErrPeerKeyNotFound)
	require.ErrorIs(t, offline.Publish(context.Background()), domain.ErrTransport)
}

func TestDirectory_Pin(t *testing.T) {
	dir := newDirectory(t, nil)
	pub := []byte("pinned-key")

	require.NoError(t, dir.Pin(domain.PeerKey{PublicKey: pub}))
	k, err := dir.Resolve(context.Background(), crypto.NodeIDFor(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, k.PublicKey)
	assert.Equal(t, kemName, k.KEM)

	err = dir.Pin(domain.PeerKey{NodeID: "ffffffffffffffffffff", PublicKey: pub})
	require.ErrorIs(t, err, directory.ErrKeyMismatch)
}
