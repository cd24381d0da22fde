package rtc

import (
	"sync"

	"github.com/dkeye/peercall/internal/core"
)

// dispatcher delivers engine events to the sink in order on its own goroutine.
// push never blocks pion's callback goroutines.
type dispatcher struct {
	sink func(core.EngineEvent)

	mu     sync.Mutex
	queue  []core.EngineEvent
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newDispatcher(sink func(core.EngineEvent)) *dispatcher {
	return &dispatcher{
		sink: sink,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (d *dispatcher) push(ev core.EngineEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		for {
			d.mu.Lock()
			if d.closed || len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			ev := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			if d.sink != nil {
				d.sink(ev)
			}
		}
	}
}

// stop drops undelivered events.
func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queue = nil
	close(d.done)
}
