// Package negotiation turns the engine's callback-style description calls
// into blocking calls with explicit results.
package negotiation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/async"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// Timeout bounds each wait. Zero waits until the engine answers or ctx ends.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Adapter allows one outstanding engine operation at a time.
type Adapter struct {
	engine  core.MediaEngine
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	pending string
	fail    func(error) bool
	aborted error
}

func New(engine core.MediaEngine, opts Options) *Adapter {
	logger := log.With().Str("module", "negotiation").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Adapter{engine: engine, timeout: opts.Timeout, logger: logger}
}

func (a *Adapter) CreateOffer(ctx context.Context, c domain.Constraints) (domain.SessionDescriptor, error) {
	return await(ctx, a, "create-offer", func(comp *async.Completion[domain.SessionDescriptor]) {
		a.engine.CreateOffer(c, describeDone(comp))
	})
}

func (a *Adapter) CreateAnswer(ctx context.Context, c domain.Constraints) (domain.SessionDescriptor, error) {
	return await(ctx, a, "create-answer", func(comp *async.Completion[domain.SessionDescriptor]) {
		a.engine.CreateAnswer(c, describeDone(comp))
	})
}

func (a *Adapter) SetLocalDescription(ctx context.Context, d domain.SessionDescriptor) error {
	_, err := await(ctx, a, "set-local", func(comp *async.Completion[struct{}]) {
		a.engine.SetLocalDescription(d, setDone(comp))
	})
	return err
}

func (a *Adapter) SetRemoteDescription(ctx context.Context, d domain.SessionDescriptor) error {
	_, err := await(ctx, a, "set-remote", func(comp *async.Completion[struct{}]) {
		a.engine.SetRemoteDescription(d, setDone(comp))
	})
	return err
}

// Abort fails the outstanding operation, if any, and every later one with cause.
func (a *Adapter) Abort(cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted == nil {
		a.aborted = cause
	}
	if a.fail != nil {
		a.logger.Debug().Str("op", a.pending).Err(cause).Msg("aborting pending operation")
		a.fail(cause)
	}
}

func (a *Adapter) begin(op string, fail func(error) bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted != nil {
		return a.aborted
	}
	if a.fail != nil {
		return fmt.Errorf("%w: %s", domain.ErrOperationPending, a.pending)
	}
	a.pending, a.fail = op, fail
	return nil
}

func (a *Adapter) end() {
	a.mu.Lock()
	a.pending, a.fail = "", nil
	a.mu.Unlock()
}

func await[T any](ctx context.Context, a *Adapter, op string, issue func(*async.Completion[T])) (T, error) {
	var zero T
	comp := async.New[T]()
	if err := a.begin(op, comp.Fail); err != nil {
		return zero, &domain.NegotiationError{Op: op, Err: err}
	}
	defer a.end()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.logger.Debug().Str("op", op).Msg("issue")
	issue(comp)
	v, err := comp.Wait(ctx)
	if err != nil {
		a.logger.Warn().Str("op", op).Err(err).Msg("failed")
		return zero, &domain.NegotiationError{Op: op, Err: err}
	}
	return v, nil
}

func describeDone(comp *async.Completion[domain.SessionDescriptor]) func(domain.SessionDescriptor, error) {
	return func(d domain.SessionDescriptor, err error) {
		if err != nil {
			comp.Fail(err)
			return
		}
		comp.Complete(d)
	}
}

func setDone(comp *async.Completion[struct{}]) func(error) {
	return func(err error) {
		if err != nil {
			comp.Fail(err)
			return
		}
		comp.Complete(struct{}{})
	}
}
