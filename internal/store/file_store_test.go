package store_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/domain"
	"meshtalk/internal/store"
)

func TestKV_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kv := store.NewKVFileStore(dir)

	_, ok, err := kv.GetString("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.SetString("a", "1"))
	require.NoError(t, kv.SetString("b", "2"))
	require.NoError(t, kv.SetString("a", "3"))

	// A second instance over the same directory sees the writes.
	v, ok, err := store.NewKVFileStore(dir).GetString("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestKV_CreatesDirAndPrivateFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	kv := store.NewKVFileStore(dir)
	require.NoError(t, kv.SetString("a", "1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file is removed after rename")
	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKV_CorruptFileIsStorageError(t *testing.T) {
	dir := t.TempDir()
	kv := store.NewKVFileStore(dir)
	require.NoError(t, kv.SetString("a", "1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), []byte("{not json"), 0o600))

	_, _, err = kv.GetString("a")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPeerKeys_SaveLoadList(t *testing.T) {
	s := store.NewPeerKeyFileStore(t.TempDir())

	require.NoError(t, s.SavePeerKey(domain.PeerKey{NodeID: "zed", KEM: "rsa-oaep-2048", PublicKey: []byte{9}}))
	require.NoError(t, s.SavePeerKey(domain.PeerKey{NodeID: "amy", KEM: "kyber1024", PublicKey: []byte{7}}))

	k, ok, err := s.LoadPeerKey("amy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kyber1024", k.KEM)

	_, ok, err = s.LoadPeerKey("nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.ListPeerKeys()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.NodeID("amy"), all[0].NodeID)
}

func TestCallHistory_AppendBounded(t *testing.T) {
	s := store.NewCallHistoryFileStore(t.TempDir())
	start := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 205; i++ {
		require.NoError(t, s.AppendCallRecord(domain.CallRecord{
			CallID:    domain.CallID(fmt.Sprintf("call-%03d", i)),
			Peer:      "bob",
			Direction: domain.Outgoing,
			Outcome:   domain.StateEnded,
			StartedAt: start,
			EndedAt:   start.Add(time.Minute),
		}))
	}

	all, err := s.ListCallRecords(0)
	require.NoError(t, err)
	require.Len(t, all, 200)
	assert.Equal(t, domain.CallID("call-005"), all[0].CallID)

	last, err := s.ListCallRecords(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, domain.CallID("call-204"), last[1].CallID)
	assert.Equal(t, domain.StateEnded, last[1].Outcome)
}
