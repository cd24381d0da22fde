package testutil

import "sync"

// Camera counts capture calls. With Present false it behaves like a host without a camera.
type Camera struct {
	Present bool

	mu        sync.Mutex
	capturing bool
	starts    int
	stops     int
	switches  int
	closed    bool
}

func (c *Camera) Available() bool { return c.Present }

func (c *Camera) StartCapture(_, _, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.Present || c.capturing {
		return nil
	}
	c.capturing = true
	c.starts++
	return nil
}

func (c *Camera) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	c.capturing = false
	c.stops++
	return nil
}

func (c *Camera) ChangeCaptureFormat(_, _, _ int) error { return nil }

func (c *Camera) SwitchCamera() error {
	c.mu.Lock()
	c.switches++
	c.mu.Unlock()
	return nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	c.closed = true
	c.capturing = false
	c.mu.Unlock()
	return nil
}

func (c *Camera) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

func (c *Camera) Counts() (starts, stops, switches int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops, c.switches
}
