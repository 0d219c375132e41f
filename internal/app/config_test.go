package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/app"
	"meshtalk/internal/crypto"
)

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := app.LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".meshtalk"), cfg.Home)
	assert.Equal(t, crypto.DefaultKEM, cfg.KEM)
	assert.Equal(t, app.TransportRelay, cfg.Transport)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.False(t, cfg.AllowDegraded)
}

func TestLoadConfigLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MESHTALK_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(
		"relay_url: http://file:8080\ncall_timeout: 10s\nkem: kyber1024\n"), 0o600))
	t.Setenv("MESHTALK_RELAY_URL", "http://env:8080")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--transport", "ws", "--quic-peer", "abc=10.0.0.1:4433"}))

	cfg, err := app.LoadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "http://env:8080", cfg.RelayURL, "env wins over file")
	assert.Equal(t, 10*time.Second, cfg.CallTimeout, "file wins over flag default")
	assert.Equal(t, crypto.Kyber1024Name, cfg.KEM)
	assert.Equal(t, app.TransportWS, cfg.Transport, "set flag wins")
	assert.Equal(t, map[string]string{"abc": "10.0.0.1:4433"}, cfg.QUICPeers)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("MESHTALK_HOME", t.TempDir())

	t.Setenv("MESHTALK_TRANSPORT", "carrier-pigeon")
	_, err := app.LoadConfig(nil)
	assert.Error(t, err)

	t.Setenv("MESHTALK_TRANSPORT", "relay")
	t.Setenv("MESHTALK_KEM", "rot13")
	_, err = app.LoadConfig(nil)
	assert.Error(t, err)
}
