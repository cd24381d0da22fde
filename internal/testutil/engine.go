// Package testutil holds hand-written fakes shared by package tests.
package testutil

import (
	"errors"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4/pkg/media"
)

var ErrNoRemoteDescription = errors.New("fake: remote description not set")

// Engine is a scripted core.MediaEngine. Completion callbacks run on their own
// goroutine, held back while HoldCalls is in effect.
type Engine struct {
	OfferSDP  string
	AnswerSDP string

	CreateOfferErr  error
	CreateAnswerErr error
	SetLocalErr     error
	SetRemoteErr    error
	// RejectCandidate, when set, decides per candidate.
	RejectCandidate func(domain.Candidate) error

	mu         sync.Mutex
	sink       func(core.EngineEvent)
	local      []domain.SessionDescriptor
	remote     []domain.SessionDescriptor
	candidates []domain.Candidate
	ops        []string
	audio      *Track
	video      *Track
	closed     int
	hold       chan struct{}
	beforeAck  func(op string)
}

func NewEngine(video bool) *Engine {
	e := &Engine{
		OfferSDP:  "v=0 fake-offer",
		AnswerSDP: "v=0 fake-answer",
		audio:     &Track{},
	}
	if video {
		e.video = &Track{}
	}
	return e
}

func (e *Engine) run(op string, f func()) {
	e.mu.Lock()
	e.ops = append(e.ops, op)
	hold := e.hold
	beforeAck := e.beforeAck
	e.mu.Unlock()
	go func() {
		if hold != nil {
			<-hold
		}
		if beforeAck != nil {
			beforeAck(op)
		}
		f()
	}()
}

// BeforeAck runs hook on the engine goroutine ahead of every completion
// issued from now on, e.g. to deliver an event that races the ack.
func (e *Engine) BeforeAck(hook func(op string)) {
	e.mu.Lock()
	e.beforeAck = hook
	e.mu.Unlock()
}

// HoldCalls delays completions of calls issued from now on until release is called.
func (e *Engine) HoldCalls() (release func()) {
	hold := make(chan struct{})
	e.mu.Lock()
	e.hold = hold
	e.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			if e.hold == hold {
				e.hold = nil
			}
			e.mu.Unlock()
			close(hold)
		})
	}
}

func (e *Engine) CreateOffer(_ domain.Constraints, done func(domain.SessionDescriptor, error)) {
	e.run("create-offer", func() {
		if e.CreateOfferErr != nil {
			done(domain.SessionDescriptor{}, e.CreateOfferErr)
			return
		}
		done(domain.NewOffer(e.OfferSDP), nil)
	})
}

func (e *Engine) CreateAnswer(_ domain.Constraints, done func(domain.SessionDescriptor, error)) {
	e.run("create-answer", func() {
		if e.CreateAnswerErr != nil {
			done(domain.SessionDescriptor{}, e.CreateAnswerErr)
			return
		}
		done(domain.NewAnswer(e.AnswerSDP), nil)
	})
}

func (e *Engine) SetLocalDescription(d domain.SessionDescriptor, done func(error)) {
	e.run("set-local", func() {
		if e.SetLocalErr != nil {
			done(e.SetLocalErr)
			return
		}
		e.mu.Lock()
		e.local = append(e.local, d)
		e.mu.Unlock()
		done(nil)
	})
}

func (e *Engine) SetRemoteDescription(d domain.SessionDescriptor, done func(error)) {
	e.run("set-remote", func() {
		if e.SetRemoteErr != nil {
			done(e.SetRemoteErr)
			return
		}
		e.mu.Lock()
		e.remote = append(e.remote, d)
		e.mu.Unlock()
		done(nil)
	})
}

func (e *Engine) AddICECandidate(c domain.Candidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.remote) == 0 {
		return ErrNoRemoteDescription
	}
	if e.RejectCandidate != nil {
		if err := e.RejectCandidate(c); err != nil {
			return err
		}
	}
	e.candidates = append(e.candidates, c)
	return nil
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
	t := e.track(kind)
	if t == nil {
		return nil
	}
	return t
}

func (e *Engine) track(kind domain.MediaKind) *Track {
	if kind == domain.Video {
		return e.video
	}
	return e.audio
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed++
	e.mu.Unlock()
	return nil
}

// Emit delivers ev to the sink installed by the factory.
func (e *Engine) Emit(ev core.EngineEvent) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (e *Engine) Applied() []domain.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Candidate(nil), e.candidates...)
}

func (e *Engine) Local() []domain.SessionDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.SessionDescriptor(nil), e.local...)
}

func (e *Engine) Remote() []domain.SessionDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.SessionDescriptor(nil), e.remote...)
}

// Ops lists engine calls in issue order.
func (e *Engine) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ops...)
}

func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type Track struct {
	mu      sync.Mutex
	enabled bool
	written int
}

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(v bool) {
	t.mu.Lock()
	t.enabled = v
	t.mu.Unlock()
}

func (t *Track) WriteSample(media.Sample) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		t.written++
	}
	return nil
}

// Factory hands out fake engines. Prepare lets a test configure the next engine.
type Factory struct {
	Err     error
	Prepare func(*Engine)

	mu      sync.Mutex
	engines []*Engine
}

func (f *Factory) NewEngine(opts core.EngineOptions, sink func(core.EngineEvent)) (core.MediaEngine, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	e := NewEngine(opts.Video)
	e.sink = sink
	if f.Prepare != nil {
		f.Prepare(e)
	}
	f.mu.Lock()
	f.engines = append(f.engines, e)
	f.mu.Unlock()
	return e, nil
}

func (f *Factory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Engine(nil), f.engines...)
}

// Last returns the most recent engine or nil.
func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}
