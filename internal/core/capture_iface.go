package core

// CaptureDevice is the local camera. Without a device every call is a no-op.
type CaptureDevice interface {
	Available() bool
	StartCapture(width, height, fps int) error
	StopCapture() error
	ChangeCaptureFormat(width, height, fps int) error
	SwitchCamera() error
	Close() error
}
