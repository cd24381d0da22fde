package device

import (
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
)

// MediaDevices is the Source backed by pion/mediadevices. Drivers register
// themselves through blank imports in main.
type MediaDevices struct{}

func (MediaDevices) Devices() []Device {
	var out []Device
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind != mediadevices.VideoInput {
			continue
		}
		out = append(out, Device{ID: info.DeviceID, Label: info.Label, Facing: facingFromLabel(info.Label)})
	}
	return out
}

func (MediaDevices) Open(id string, f Format) (Stream, error) {
	s, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.DeviceID = prop.String(id)
			c.Width = prop.Int(f.Width)
			c.Height = prop.Int(f.Height)
			c.FrameRate = prop.Float(float32(f.FPS))
		},
	})
	if err != nil {
		return nil, err
	}
	return mediaStream{s: s}, nil
}

type mediaStream struct {
	s mediadevices.MediaStream
}

func (m mediaStream) Close() error {
	var first error
	for _, t := range m.s.GetTracks() {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func facingFromLabel(label string) Facing {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "front"), strings.Contains(l, "user"), strings.Contains(l, "facetime"):
		return FacingFront
	case strings.Contains(l, "back"), strings.Contains(l, "rear"), strings.Contains(l, "environment"):
		return FacingBack
	default:
		return FacingNone
	}
}
