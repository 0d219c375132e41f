package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"meshtalk/internal/crypto"
)

// Transport names accepted in Config.Transport.
const (
	TransportRelay = "relay"
	TransportWS    = "ws"
	TransportQUIC  = "quic"
)

// EnvPrefix prefixes every environment override, e.g. MESHTALK_RELAY_URL.
const EnvPrefix = "MESHTALK"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string `mapstructure:"home"`       // state directory, e.g. $HOME/.meshtalk
	Passphrase string `mapstructure:"passphrase"` // seals the identity at rest when set
	KEM        string `mapstructure:"kem"`
	RelayURL   string `mapstructure:"relay_url"` // relay base URL, e.g. http://127.0.0.1:8080
	Transport  string `mapstructure:"transport"` // relay | ws | quic

	QUICListen string            `mapstructure:"quic_listen"`
	QUICPeers  map[string]string `mapstructure:"quic_peers"` // node id -> host:port

	ICEServers    []string      `mapstructure:"ice_servers"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	AllowDegraded bool          `mapstructure:"allow_degraded"`

	LogLevel string `mapstructure:"log_level"`
	Pretty   bool   `mapstructure:"pretty"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"home":           "home",
	"passphrase":     "passphrase",
	"kem":            "kem",
	"relay":          "relay_url",
	"transport":      "transport",
	"quic-listen":    "quic_listen",
	"quic-peer":      "quic_peers",
	"ice-server":     "ice_servers",
	"call-timeout":   "call_timeout",
	"allow-degraded": "allow_degraded",
	"log-level":      "log_level",
	"pretty":         "pretty",
}

// RegisterFlags adds the config flags to fs. Unset flags do not override the
// environment or config file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("home", "", "state directory (default ~/.meshtalk)")
	fs.String("passphrase", "", "passphrase sealing the identity at rest")
	fs.String("kem", crypto.DefaultKEM, "key encapsulation: "+strings.Join(crypto.KEMNames(), ", "))
	fs.String("relay", "", "relay base URL")
	fs.String("transport", TransportRelay, "transport: relay, ws or quic")
	fs.String("quic-listen", ":4433", "QUIC listen address")
	fs.StringToString("quic-peer", nil, "QUIC peer address as node=host:port")
	fs.StringSlice("ice-server", nil, "STUN/TURN url for calls")
	fs.Duration("call-timeout", 30*time.Second, "call negotiation timeout")
	fs.Bool("allow-degraded", false, "allow degraded encryption when a peer key is unknown")
	fs.String("log-level", "info", "log level")
	fs.Bool("pretty", false, "human readable logs")
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("home", filepath.Join(home, ".meshtalk"))
	v.SetDefault("kem", crypto.DefaultKEM)
	v.SetDefault("transport", TransportRelay)
	v.SetDefault("quic_listen", ":4433")
	v.SetDefault("call_timeout", "30s")
	v.SetDefault("allow_degraded", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("pretty", false)
}

// LoadConfig merges defaults, config.yaml in the home directory, MESHTALK_*
// environment variables and the flags in fs, later sources winning. fs may
// be nil.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	home := expandHome(v.GetString("home"))
	v.Set("home", home)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Home = home
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values that cannot be repaired with a default.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("config: home is required")
	}
	if _, err := crypto.LookupKEM(c.KEM); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !slices.Contains([]string{TransportRelay, TransportWS, TransportQUIC}, c.Transport) {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.CallTimeout <= 0 {
		return errors.New("config: call timeout must be positive")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if h, err := os.UserHomeDir(); err == nil {
			return filepath.Join(h, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
