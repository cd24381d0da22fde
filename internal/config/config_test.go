package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "none")

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 8080, cfg.Relay.Port)
	require.Equal(t, 54*time.Second, cfg.Relay.PingPeriod)
	require.Equal(t, time.Second, cfg.Relay.RateInterval)
	require.Equal(t, "stun:stun1.l.google.com:19302", cfg.Peer.FallbackSTUN)
	require.Equal(t, VideoConfig{Width: 1280, Height: 720, FPS: 30}, cfg.Peer.Video)
	require.True(t, cfg.Peer.StartAudio)
	require.Zero(t, cfg.Peer.NegotiationTimeout)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`mode: debug
relay:
  port: 9000
peer:
  id: "111"
  call_to: "222"
  ice_servers:
    - stun:stun.example.org:3478
  video:
    fps: 15
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("PEERCALL_RELAY_PORT", "9100")

	fs := Flags("peer")
	require.NoError(t, fs.Parse([]string{"--call", "333"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 9100, cfg.Relay.Port)
	require.Equal(t, "111", cfg.Peer.ID)
	require.Equal(t, "333", cfg.Peer.CallTo)
	require.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.Peer.ICEServers)
	require.Equal(t, 15, cfg.Peer.Video.FPS)
	require.Equal(t, 1280, cfg.Peer.Video.Width)
}
