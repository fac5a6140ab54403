package posture

import "errors"

var (
	// ErrSourceUnavailable means a camera source could not be opened; the role stays empty.
	ErrSourceUnavailable = errors.New("camera source unavailable")
	// ErrNoDetection means no body was found in a frame. The frame is skipped.
	ErrNoDetection = errors.New("no landmarks detected")
	// ErrPersistence wraps storage failures. Callers log and continue.
	ErrPersistence = errors.New("persistence failure")
	// ErrCalibrationNotReady is returned when a verdict is requested before the band is frozen.
	ErrCalibrationNotReady = errors.New("calibration not ready")
)
