package rtc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const streamID = "peercall"

var (
	ErrUnsupportedSDPType = errors.New("unsupported sdp type")
	ErrMediaLineIndex     = errors.New("media line index out of range")
)

// Engine is a pion PeerConnection behind the callback-style core.MediaEngine.
type Engine struct {
	pc     *webrtc.PeerConnection
	audio  *localTrack
	video  *localTrack
	remote core.RemoteSink
	events *dispatcher
	logger zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ core.MediaEngine = (*Engine)(nil)

func newEngine(api *webrtc.API, cfg webrtc.Configuration, opts core.EngineOptions, sink func(core.EngineEvent), logger zerolog.Logger) (*Engine, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		pc:     pc,
		remote: opts.Remote,
		events: newDispatcher(sink),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if e.audio, err = e.addTrack(webrtc.MimeTypeOpus, "audio"); err != nil {
		_ = e.Close()
		return nil, err
	}
	if opts.Video {
		if e.video, err = e.addTrack(webrtc.MimeTypeVP8, "video"); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	e.bind()
	go e.events.run()
	return e, nil
}

func (e *Engine) addTrack(mime, id string) (*localTrack, error) {
	t, err := newLocalTrack(mime, id, streamID)
	if err != nil {
		return nil, err
	}
	sender, err := e.pc.AddTrack(t)
	if err != nil {
		return nil, fmt.Errorf("add %s track: %w", id, err)
	}
	go drainRTCP(sender)
	return t, nil
}

func (e *Engine) bind() {
	e.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		e.events.push(core.SignalingStateChanged{State: s.String()})
	})

	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			e.logger.Debug().Msg("ICE gathering complete")
			return
		}
		init := c.ToJSON()
		cand := domain.Candidate{Description: init.Candidate}
		if init.SDPMid != nil {
			cand.MediaLineID = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.MediaLineIndex = int(*init.SDPMLineIndex)
		}
		e.events.push(core.CandidateDiscovered{Candidate: cand})
	})

	e.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
		e.events.push(core.ICEStateChanged{State: iceState(s)})
	})

	e.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	e.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		kind := domain.Audio
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			kind = domain.Video
		}
		e.events.push(core.StreamAdded{StreamID: track.StreamID(), TrackID: track.ID(), Kind: kind})
		go e.readRemote(track)
	})
}

func (e *Engine) CreateOffer(c domain.Constraints, done func(domain.SessionDescriptor, error)) {
	go func() {
		offer, err := e.pc.CreateOffer(&webrtc.OfferOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{VoiceActivityDetection: c.VoiceActivityDetection},
			ICERestart:         c.ICERestart,
		})
		if err != nil {
			done(domain.SessionDescriptor{}, err)
			return
		}
		e.logDescription("created", offer)
		done(domain.NewOffer(offer.SDP), nil)
	}()
}

func (e *Engine) CreateAnswer(c domain.Constraints, done func(domain.SessionDescriptor, error)) {
	go func() {
		answer, err := e.pc.CreateAnswer(&webrtc.AnswerOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{VoiceActivityDetection: c.VoiceActivityDetection},
		})
		if err != nil {
			done(domain.SessionDescriptor{}, err)
			return
		}
		e.logDescription("created", answer)
		done(domain.NewAnswer(answer.SDP), nil)
	}()
}

func (e *Engine) SetLocalDescription(d domain.SessionDescriptor, done func(error)) {
	go func() {
		desc, err := toPion(d)
		if err == nil {
			err = e.pc.SetLocalDescription(desc)
		}
		done(err)
	}()
}

func (e *Engine) SetRemoteDescription(d domain.SessionDescriptor, done func(error)) {
	go func() {
		desc, err := toPion(d)
		if err == nil {
			e.logDescription("remote", desc)
			err = e.pc.SetRemoteDescription(desc)
		}
		done(err)
	}()
}

func (e *Engine) AddICECandidate(c domain.Candidate) error {
	init, err := candidateInit(c)
	if err != nil {
		return err
	}
	return e.pc.AddICECandidate(init)
}

func candidateInit(c domain.Candidate) (webrtc.ICECandidateInit, error) {
	init := webrtc.ICECandidateInit{Candidate: c.Description}
	if c.MediaLineIndex < 0 || c.MediaLineIndex > math.MaxUint16 {
		return init, fmt.Errorf("%w: %d", ErrMediaLineIndex, c.MediaLineIndex)
	}
	if c.MediaLineID != "" {
		mid := c.MediaLineID
		init.SDPMid = &mid
	}
	idx := uint16(c.MediaLineIndex)
	init.SDPMLineIndex = &idx
	return init, nil
}

func (e *Engine) SetTrackEnabled(kind domain.MediaKind, enabled bool) bool {
	t := e.track(kind)
	if t == nil {
		return false
	}
	t.SetEnabled(enabled)
	return true
}

func (e *Engine) LocalTrack(kind domain.MediaKind) core.LocalTrack {
	if t := e.track(kind); t != nil {
		return t
	}
	return nil
}

func (e *Engine) track(kind domain.MediaKind) *localTrack {
	if kind == domain.Video {
		return e.video
	}
	return e.audio
}

func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		e.events.stop()
		if err = e.pc.Close(); err != nil {
			e.logger.Error().Err(err).Msg("close error")
		} else {
			e.logger.Info().Msg("closed")
		}
	})
	return err
}

func toPion(d domain.SessionDescriptor) (webrtc.SessionDescription, error) {
	switch d.Type {
	case domain.SDPOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: d.SDP}, nil
	case domain.SDPAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: d.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s", ErrUnsupportedSDPType, d.Type)
	}
}

func iceState(s webrtc.ICEConnectionState) core.ICEState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return core.ICEChecking
	case webrtc.ICEConnectionStateConnected:
		return core.ICEConnected
	case webrtc.ICEConnectionStateCompleted:
		return core.ICECompleted
	case webrtc.ICEConnectionStateDisconnected:
		return core.ICEDisconnected
	case webrtc.ICEConnectionStateFailed:
		return core.ICEFailed
	case webrtc.ICEConnectionStateClosed:
		return core.ICEClosed
	default:
		return core.ICENew
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
