// Package session holds the per-call connection state machine.
package session

import (
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app/negotiation"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type CaptureFormat struct {
	Width  int
	Height int
	FPS    int
}

var DefaultCaptureFormat = CaptureFormat{Width: 1280, Height: 720, FPS: 30}

type Options struct {
	Capture            CaptureFormat
	NegotiationTimeout time.Duration
	// OnState is called after every state change, outside the session lock.
	OnState func(domain.ConnectionState)
	Logger  *zerolog.Logger
}

// Session is one call attempt: an engine, its negotiation adapter, the
// buffered remote candidates and the connection state.
type Session struct {
	engine  core.MediaEngine
	neg     *negotiation.Adapter
	camera  core.CaptureDevice
	format  CaptureFormat
	onState func(domain.ConnectionState)
	logger  zerolog.Logger

	// flow serializes offer/answer sequences
	flow sync.Mutex

	mu        sync.Mutex
	state     domain.ConnectionState
	direction domain.Direction
	remoteSet bool
	// iceUp is set once connectivity checks succeeded, possibly before the
	// flow that is still running has reached Negotiating
	iceUp   bool
	pending []domain.Candidate
	cause   error

	release sync.Once
}

// New wraps engine in an Idle session. camera may be nil. Local tracks start disabled.
func New(engine core.MediaEngine, camera core.CaptureDevice, opts Options) *Session {
	logger := log.With().Str("module", "session").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	format := opts.Capture
	if format.Width == 0 || format.Height == 0 || format.FPS == 0 {
		format = DefaultCaptureFormat
	}
	s := &Session{
		engine:  engine,
		neg:     negotiation.New(engine, negotiation.Options{Timeout: opts.NegotiationTimeout, Logger: &logger}),
		camera:  camera,
		format:  format,
		onState: opts.OnState,
		logger:  logger,
	}
	engine.SetTrackEnabled(domain.Audio, false)
	engine.SetTrackEnabled(domain.Video, false)
	return s
}

func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Direction() domain.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direction
}

// Err returns the failure cause once the session is Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Session) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// MarkConnected records that connectivity checks succeeded. A session that
// is still mid-flow moves to Connected when the flow reaches Negotiating.
func (s *Session) MarkConnected() {
	s.mu.Lock()
	if s.state.Terminal() || s.state == domain.StateConnected {
		s.mu.Unlock()
		return
	}
	s.iceUp = true
	if st := s.state; st != domain.StateNegotiating {
		s.mu.Unlock()
		s.logger.Debug().Str("state", st.String()).Msg("connected before negotiation finished")
		return
	}
	s.state = domain.StateConnected
	s.mu.Unlock()
	s.logger.Info().Msg("connected")
	s.notify(domain.StateConnected)
}

// Fail moves the session to Failed and releases it. No-op once terminal.
func (s *Session) Fail(err error) {
	if s.terminate(domain.StateFailed, err) {
		s.logger.Warn().Err(err).Msg("session failed")
	}
}

// Close moves the session to Closed and releases it. No-op once terminal.
func (s *Session) Close() {
	if s.terminate(domain.StateClosed, nil) {
		s.logger.Info().Msg("session closed")
	}
}

func (s *Session) terminate(to domain.ConnectionState, cause error) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.cause = cause
	s.pending = nil
	s.mu.Unlock()

	s.releaseResources()
	s.notify(to)
	return true
}

func (s *Session) releaseResources() {
	s.release.Do(func() {
		s.neg.Abort(domain.ErrSessionClosed)
		if s.camera != nil {
			if err := s.camera.StopCapture(); err != nil {
				s.logger.Error().Err(err).Msg("stop capture")
			}
		}
		if err := s.engine.Close(); err != nil {
			s.logger.Error().Err(err).Msg("engine close")
		}
	})
}

func (s *Session) notify(st domain.ConnectionState) {
	if s.onState != nil {
		s.onState(st)
	}
}
