package session

import "github.com/dkeye/peercall/internal/domain"

func (s *Session) EnableAudio(on bool) error {
	if s.State().Terminal() {
		return domain.ErrSessionClosed
	}
	if !s.engine.SetTrackEnabled(domain.Audio, on) {
		s.logger.Debug().Msg("no local audio track")
	}
	return nil
}

// EnableVideo toggles the local video track and the capture device with it.
// Without a camera this is a no-op.
func (s *Session) EnableVideo(on bool) error {
	if s.State().Terminal() {
		return domain.ErrSessionClosed
	}
	if !s.engine.SetTrackEnabled(domain.Video, on) || s.camera == nil || !s.camera.Available() {
		s.logger.Debug().Err(&domain.DeviceError{Op: "enable-video", Err: domain.ErrNoCamera}).Msg("video toggle ignored")
		return nil
	}
	if on {
		if err := s.camera.StartCapture(s.format.Width, s.format.Height, s.format.FPS); err != nil {
			return &domain.DeviceError{Op: "start-capture", Err: err}
		}
		return nil
	}
	if err := s.camera.StopCapture(); err != nil {
		return &domain.DeviceError{Op: "stop-capture", Err: err}
	}
	return nil
}

func (s *Session) SwitchCamera() error {
	if s.camera == nil || !s.camera.Available() {
		return nil
	}
	if err := s.camera.SwitchCamera(); err != nil {
		return &domain.DeviceError{Op: "switch-camera", Err: err}
	}
	return nil
}
