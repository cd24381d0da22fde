package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app/session"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const (
	defaultQueueSize    = 64
	defaultEarlyBacklog = 64
)

// ErrBacklogFull is reported when a signaling event is dropped because the
// queue in front of the worker is full.
var ErrBacklogFull = errors.New("signaling backlog full")

type Options struct {
	// AutoCall is dialed as soon as the relay connection is up.
	AutoCall           domain.PeerID
	Constraints        domain.Constraints
	Capture            session.CaptureFormat
	NegotiationTimeout time.Duration
	StartAudio         bool
	StartVideo         bool
	// EarlyBacklog bounds candidates held while no session exists.
	EarlyBacklog int
	Remote       core.RemoteSink
	OnStatus     func(Status)
	// OnStream observes StreamAdded and StreamRemoved.
	OnStream func(core.EngineEvent)
	Logger   *zerolog.Logger
}

// Status is the last observation of the relay and the call.
type Status struct {
	Relay domain.RelayStatus
	Call  domain.ConnectionState
	Peer  domain.PeerID
	Err   error
}

// Orchestrator routes relay events into the single live call session and
// engine events back out to the relay.
type Orchestrator struct {
	Local   domain.PeerID
	Relay   core.RelayTransport
	Engines core.EngineFactory
	Camera  core.CaptureDevice
	Options Options

	// callMu serializes the offer/answer handlers
	callMu sync.Mutex

	mu     sync.Mutex
	sess   *session.Session
	gen    uint64
	call   *domain.PendingCall
	early  []domain.Candidate
	status Status
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Run processes relay events until ctx ends or the relay closes its event
// stream. Lifecycle events are handled as they arrive; signaling events are
// queued and handled one at a time in arrival order.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.updateStatus(func(s *Status) { s.Relay = domain.RelayConnecting })

	queue := make(chan task, defaultQueueSize)
	var relayClosed bool
	var wg conc.WaitGroup
	wg.Go(func() {
		defer close(queue)
		relayClosed = o.pump(ctx, queue)
	})
	wg.Go(func() { o.work(ctx, queue) })
	wg.Wait()

	o.Hangup()
	if relayClosed {
		return domain.ErrRelayDisconnected
	}
	return nil
}

func (o *Orchestrator) pump(ctx context.Context, queue chan<- task) (relayClosed bool) {
	events := o.Relay.Events()
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				o.log().Warn().Msg("relay event stream closed")
				o.updateStatus(func(s *Status) { s.Relay = domain.RelayDisconnected })
				return true
			}
			o.safely("relay-event", func() {
				t, ok := o.onRelayEvent(ev)
				if !ok {
					return
				}
				select {
				case queue <- t:
				default:
					// the worker is stuck in negotiation, keep reading so
					// lifecycle events still get through
					o.report(t.name, ErrBacklogFull)
				}
			})
		}
	}
}

func (o *Orchestrator) work(ctx context.Context, queue <-chan task) {
	for t := range queue {
		if ctx.Err() != nil {
			continue
		}
		o.safely(t.name, func() {
			if err := t.run(ctx); err != nil {
				o.report(t.name, err)
			}
		})
	}
}

// onRelayEvent handles lifecycle events in place and returns signaling work
// for the queue.
func (o *Orchestrator) onRelayEvent(ev core.RelayEvent) (task, bool) {
	switch ev := ev.(type) {
	case core.RelayConnected:
		o.log().Info().Msg("relay connected")
		o.updateStatus(func(s *Status) { s.Relay, s.Err = domain.RelayConnected, nil })
		if err := o.Relay.Send(core.CreateID{ID: o.Local}); err != nil {
			o.report("create-id", &domain.TransportError{Op: "create-id", Err: err})
		}
		if to := o.Options.AutoCall; to != "" {
			return task{name: "call", run: func(ctx context.Context) error { return o.Call(ctx, to) }}, true
		}
	case core.RelayDisconnected:
		o.log().Warn().Err(ev.Err).Msg("relay disconnected")
		o.updateStatus(func(s *Status) { s.Relay, s.Err = domain.RelayDisconnected, ev.Err })
		o.Hangup()
	case core.RelayConnectError:
		o.log().Error().Err(ev.Err).Msg("relay connect error")
		o.updateStatus(func(s *Status) { s.Relay, s.Err = domain.RelayConnectError, ev.Err })
	case core.RelayFailure:
		o.log().Error().Err(ev.Err).Msg("relay error")
		o.updateStatus(func(s *Status) { s.Relay, s.Err = domain.RelayError, ev.Err })
	case core.CallReceived:
		return task{name: "receive-call", run: func(ctx context.Context) error {
			return o.ReceiveCall(ctx, ev.From, ev.SDP)
		}}, true
	case core.AnswerReceived:
		return task{name: "receive-answer-call", run: func(ctx context.Context) error {
			return o.ReceiveAnswer(ctx, ev.SDP)
		}}, true
	case core.CandidateReceived:
		return task{name: "receive-ice", run: func(context.Context) error {
			return o.ReceiveCandidate(ev.Candidate)
		}}, true
	default:
		o.log().Warn().Msgf("unhandled relay event %T", ev)
	}
	return task{}, false
}

// Hangup ends the current call without waiting for in-flight negotiation,
// which is released with domain.ErrSessionClosed.
func (o *Orchestrator) Hangup() {
	o.mu.Lock()
	s := o.sess
	o.call = nil
	o.early = nil
	o.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) updateStatus(f func(*Status)) {
	o.mu.Lock()
	f(&o.status)
	st := o.status
	o.mu.Unlock()
	if o.Options.OnStatus != nil {
		o.Options.OnStatus(st)
	}
}

// report turns a handler error into a status observation.
func (o *Orchestrator) report(op string, err error) {
	o.log().Warn().Str("op", op).Err(err).Msg("signaling error")
	o.updateStatus(func(s *Status) { s.Err = err })
}

func (o *Orchestrator) safely(op string, f func()) {
	var pc panics.Catcher
	pc.Try(f)
	if r := pc.Recovered(); r != nil {
		o.log().Error().Str("op", op).Str("stack", string(r.Stack)).Msgf("panic: %v", r.Value)
		o.report(op, r.AsError())
	}
}

func (o *Orchestrator) log() *zerolog.Logger {
	if o.Options.Logger != nil {
		return o.Options.Logger
	}
	l := log.With().Str("module", "orch").Str("local", string(o.Local)).Logger()
	return &l
}
