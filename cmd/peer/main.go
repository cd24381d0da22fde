package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/peercall/internal/adapters/device"
	"github.com/dkeye/peercall/internal/adapters/relayclient"
	"github.com/dkeye/peercall/internal/adapters/rtc"
	"github.com/dkeye/peercall/internal/app/orch"
	"github.com/dkeye/peercall/internal/app/session"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/domain"

	// registers the camera driver with mediadevices
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("peer exited")
	}
}

func run() (err error) {
	defer err2.Handle(&err)

	_ = godotenv.Load(".env")

	fs := config.Flags("peer")
	try.To(fs.Parse(os.Args[1:]))
	cfg := try.To1(config.Load(fs))
	config.SetupLogging(cfg.Mode, cfg.LogLevel)

	local := domain.PeerID(cfg.Peer.ID)
	if local == "" {
		local = domain.NewPeerID()
	}
	try.To(domain.ValidatePeerID(local))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	camera := device.NewCamera(device.MediaDevices{}, device.ParseFacing(cfg.Peer.CameraFacing))
	defer camera.Close()

	factory := try.To1(rtc.NewFactory(rtc.FactoryConfig{
		ICEServers:   cfg.Peer.ICEServers,
		FallbackSTUN: cfg.Peer.FallbackSTUN,
		UDPPort:      cfg.Peer.ICEUDPPort,
	}))
	defer factory.Close()

	client := relayclient.New(relayclient.Options{URL: cfg.Peer.RelayURL})
	defer client.Close()

	o := &orch.Orchestrator{
		Local:   local,
		Relay:   client,
		Engines: factory,
		Camera:  camera,
		Options: orch.Options{
			AutoCall: domain.PeerID(cfg.Peer.CallTo),
			Capture: session.CaptureFormat{
				Width:  cfg.Peer.Video.Width,
				Height: cfg.Peer.Video.Height,
				FPS:    cfg.Peer.Video.FPS,
			},
			NegotiationTimeout: cfg.Peer.NegotiationTimeout,
			StartAudio:         cfg.Peer.StartAudio,
			StartVideo:         cfg.Peer.StartVideo,
			Remote:             newPacketLog(),
			OnStatus:           logStatus,
		},
	}

	log.Info().Str("id", string(local)).Str("relay", cfg.Peer.RelayURL).Msg("peer starting, share this id with the other side")

	var runErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		runErr = o.Run(ctx)
		cancel()
	})
	if err := client.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("relay unreachable")
		cancel()
	}
	<-ctx.Done()
	log.Info().Msg("hanging up")
	o.Hangup()
	_ = client.Close()
	wg.Wait()

	if runErr != nil && !errors.Is(runErr, domain.ErrRelayDisconnected) {
		return runErr
	}
	return nil
}
