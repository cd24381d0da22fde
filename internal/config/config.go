package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string      `mapstructure:"mode"`
	LogLevel string      `mapstructure:"log_level"`
	Relay    RelayConfig `mapstructure:"relay"`
	Peer     PeerConfig  `mapstructure:"peer"`
}

type RelayConfig struct {
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	SendQueue    int           `mapstructure:"send_queue"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	KickSlow     bool          `mapstructure:"kick_slow"`
}

type PeerConfig struct {
	RelayURL           string        `mapstructure:"relay_url"`
	ID                 string        `mapstructure:"id"`
	CallTo             string        `mapstructure:"call_to"`
	ICEServers         []string      `mapstructure:"ice_servers"`
	FallbackSTUN       string        `mapstructure:"fallback_stun"`
	ICEUDPPort         int           `mapstructure:"ice_udp_port"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	StartAudio         bool          `mapstructure:"start_audio"`
	StartVideo         bool          `mapstructure:"start_video"`
	CameraFacing       string        `mapstructure:"camera_facing"`
	Video              VideoConfig   `mapstructure:"video"`
}

type VideoConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

const EnvPrefix = "PEERCALL"

// flagKeys maps CLI flags onto config keys.
var flagKeys = map[string]string{
	"id":    "peer.id",
	"call":  "peer.call_to",
	"relay": "peer.relay_url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")

	v.SetDefault("relay.port", 8080)
	v.SetDefault("relay.static_path", "")
	v.SetDefault("relay.read_limit", 65536)
	v.SetDefault("relay.ping_period", "54s")
	v.SetDefault("relay.send_queue", 32)
	v.SetDefault("relay.rate_limit", 200)
	v.SetDefault("relay.rate_interval", "1s")
	v.SetDefault("relay.kick_slow", false)

	v.SetDefault("peer.relay_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("peer.id", "")
	v.SetDefault("peer.call_to", "")
	v.SetDefault("peer.ice_servers", []string{})
	v.SetDefault("peer.fallback_stun", "stun:stun1.l.google.com:19302")
	v.SetDefault("peer.ice_udp_port", 0)
	v.SetDefault("peer.negotiation_timeout", "0s")
	v.SetDefault("peer.start_audio", true)
	v.SetDefault("peer.start_video", false)
	v.SetDefault("peer.camera_facing", "front")
	v.SetDefault("peer.video.width", 1280)
	v.SetDefault("peer.video.height", 720)
	v.SetDefault("peer.video.fps", 30)
}

// Flags registers the peer CLI flags bound by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("id", "", "local peer id (random when empty)")
	fs.String("call", "", "peer id to call once connected")
	fs.String("relay", "", "relay websocket url")
	return fs
}

// Load reads config/config.<CONFIG_ENV>.yaml, then PEERCALL_* env vars, then
// any flags set in fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("log_level", cfg.LogLevel).Msg("config ready")
	return &cfg, nil
}
