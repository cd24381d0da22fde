// Package device wraps the local camera.
package device

import (
	"strings"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Facing int

const (
	FacingNone Facing = iota
	FacingFront
	FacingBack
)

func (f Facing) String() string {
	switch f {
	case FacingFront:
		return "front"
	case FacingBack:
		return "back"
	default:
		return "none"
	}
}

// ParseFacing accepts "front"/"user" and "back"/"environment".
func ParseFacing(s string) Facing {
	switch strings.ToLower(s) {
	case "front", "user":
		return FacingFront
	case "back", "environment", "rear":
		return FacingBack
	default:
		return FacingNone
	}
}

type Device struct {
	ID     string
	Label  string
	Facing Facing
}

type Format struct {
	Width  int
	Height int
	FPS    int
}

var DefaultFormat = Format{Width: 1280, Height: 720, FPS: 30}

// Stream is an open capture.
type Stream interface {
	Close() error
}

// Source enumerates and opens video inputs.
type Source interface {
	Devices() []Device
	Open(id string, f Format) (Stream, error)
}

// Camera picks a device by preferred facing, falling back to the other facing.
// Without any device every operation is a no-op.
type Camera struct {
	src    Source
	logger zerolog.Logger

	mu        sync.Mutex
	devices   []Device
	current   int
	format    Format
	capturing bool
	stream    Stream
	closed    bool
}

var _ core.CaptureDevice = (*Camera)(nil)

func NewCamera(src Source, preferred Facing) *Camera {
	c := &Camera{
		src:     src,
		logger:  log.With().Str("module", "device").Logger(),
		devices: src.Devices(),
		current: -1,
		format:  DefaultFormat,
	}
	c.current = pick(c.devices, preferred)
	if c.current < 0 {
		c.logger.Warn().Msg("no camera found, video disabled")
	} else {
		d := c.devices[c.current]
		c.logger.Info().Str("device", d.Label).Str("facing", d.Facing.String()).Msg("camera selected")
	}
	return c
}

// pick prefers the requested facing, then the opposite one, then anything.
func pick(devices []Device, preferred Facing) int {
	if len(devices) == 0 {
		return -1
	}
	order := []Facing{FacingFront, FacingBack}
	if preferred == FacingBack {
		order = []Facing{FacingBack, FacingFront}
	}
	for _, want := range order {
		for i, d := range devices {
			if d.Facing == want {
				return i
			}
		}
	}
	return 0
}

func (c *Camera) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current >= 0 && !c.closed
}

// Facing of the selected device; FacingNone without a device.
func (c *Camera) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current < 0 {
		return FacingNone
	}
	return c.devices[c.current].Facing
}

func (c *Camera) StartCapture(width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current < 0 || c.closed || c.capturing {
		return nil
	}
	c.format = Format{Width: width, Height: height, FPS: fps}
	return c.openLocked()
}

func (c *Camera) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// ChangeCaptureFormat restarts a running capture with the new format.
func (c *Camera) ChangeCaptureFormat(width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	c.format = Format{Width: width, Height: height, FPS: fps}
	if err := c.stopLocked(); err != nil {
		return err
	}
	return c.openLocked()
}

// SwitchCamera moves to the next device. Needs at least two.
func (c *Camera) SwitchCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.devices) < 2 || c.closed {
		c.logger.Debug().Int("devices", len(c.devices)).Msg("switch ignored")
		return nil
	}
	wasCapturing := c.capturing
	if err := c.stopLocked(); err != nil {
		return err
	}
	c.current = (c.current + 1) % len(c.devices)
	c.logger.Info().Str("device", c.devices[c.current].Label).Msg("camera switched")
	if wasCapturing {
		return c.openLocked()
	}
	return nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	err := c.stopLocked()
	c.closed = true
	return err
}

func (c *Camera) openLocked() error {
	d := c.devices[c.current]
	s, err := c.src.Open(d.ID, c.format)
	if err != nil {
		return &domain.DeviceError{Op: "open " + d.Label, Err: err}
	}
	c.stream = s
	c.capturing = true
	c.logger.Info().
		Str("device", d.Label).
		Int("width", c.format.Width).
		Int("height", c.format.Height).
		Int("fps", c.format.FPS).
		Msg("capture started")
	return nil
}

func (c *Camera) stopLocked() error {
	if !c.capturing {
		return nil
	}
	c.capturing = false
	s := c.stream
	c.stream = nil
	if err := s.Close(); err != nil {
		return &domain.DeviceError{Op: "close", Err: err}
	}
	c.logger.Info().Msg("capture stopped")
	return nil
}
