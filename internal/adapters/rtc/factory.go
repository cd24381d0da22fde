package rtc

import (
	"fmt"
	"slices"

	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultFallbackSTUN = "stun:stun1.l.google.com:19302"

type FactoryConfig struct {
	ICEServers []string
	// FallbackSTUN is appended to ICEServers unless empty or already listed.
	FallbackSTUN string
	// UDPPort > 0 multiplexes all ICE traffic over one UDP port.
	UDPPort int
	// Net replaces the host network, e.g. with a vnet in tests.
	Net         transport.Net
	DisableMDNS bool
	Logger      *zerolog.Logger
}

// Factory builds engines sharing one pion API (codecs, interceptors, network).
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
	mux    ice.UDPMux
	logger zerolog.Logger
}

var _ core.EngineFactory = (*Factory)(nil)

func NewFactory(cfg FactoryConfig) (*Factory, error) {
	logger := log.With().Str("module", "webrtc").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = newLoggerFactory(logger)
	if cfg.Net != nil {
		se.SetNet(cfg.Net)
	}
	if cfg.DisableMDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	f := &Factory{logger: logger}
	if cfg.UDPPort > 0 {
		opts := []ice.UDPMuxFromPortOption{ice.UDPMuxFromPortWithLogger(se.LoggerFactory.NewLogger("udpmux"))}
		if cfg.Net != nil {
			opts = append(opts, ice.UDPMuxFromPortWithNet(cfg.Net))
		}
		mux, err := ice.NewMultiUDPMuxFromPort(cfg.UDPPort, opts...)
		if err != nil {
			return nil, fmt.Errorf("udp mux on %d: %w", cfg.UDPPort, err)
		}
		se.SetICEUDPMux(mux)
		f.mux = mux
		logger.Info().Int("port", cfg.UDPPort).Msg("ICE UDP mux listening")
	}

	f.api = webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	f.config = webrtc.Configuration{ICEServers: iceServers(cfg.ICEServers, cfg.FallbackSTUN)}
	return f, nil
}

func iceServers(urls []string, fallback string) []webrtc.ICEServer {
	all := slices.Clone(urls)
	if fallback != "" && !slices.Contains(all, fallback) {
		all = append(all, fallback)
	}
	if len(all) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: all}}
}

func (f *Factory) NewEngine(opts core.EngineOptions, sink func(core.EngineEvent)) (core.MediaEngine, error) {
	return newEngine(f.api, f.config, opts, sink, f.logger)
}

// Close releases the shared UDP mux. Engines must be closed first.
func (f *Factory) Close() error {
	if f.mux != nil {
		return f.mux.Close()
	}
	return nil
}
