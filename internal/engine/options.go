package engine

import (
	"time"

	"postureguard/internal/posture"
)

type Options struct {
	TickInterval      time.Duration
	CalibrationFrames int
	CalibrationMargin float64
	MinBadDuration    time.Duration
	// SampleGap restarts the bad posture debounce when two usable samples
	// of a role are further apart.
	SampleGap          time.Duration
	AlertInterval      time.Duration
	AlertScope         posture.AlertScope
	AlertTimeout       time.Duration
	SaveInterval       time.Duration
	RecordQueueSize    int
	DetectTimeout      time.Duration
	StorageTimeout     time.Duration
	RestoreCalibration bool
}

func DefaultOptions() Options {
	return Options{
		TickInterval:       33 * time.Millisecond,
		CalibrationFrames:  posture.DefaultCalibrationFrames,
		CalibrationMargin:  posture.DefaultMarginDegrees,
		MinBadDuration:     posture.DefaultMinBadDuration,
		SampleGap:          2 * time.Second,
		AlertInterval:      posture.DefaultAlertInterval,
		AlertScope:         posture.AlertScopeGlobal,
		AlertTimeout:       30 * time.Second,
		SaveInterval:       5 * time.Second,
		RecordQueueSize:    64,
		DetectTimeout:      2 * time.Second,
		StorageTimeout:     5 * time.Second,
		RestoreCalibration: true,
	}
}

// withDefaults fills zero fields so a partially filled Options is usable.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TickInterval <= 0 {
		o.TickInterval = def.TickInterval
	}
	if o.CalibrationFrames <= 0 {
		o.CalibrationFrames = def.CalibrationFrames
	}
	if o.CalibrationMargin <= 0 {
		o.CalibrationMargin = def.CalibrationMargin
	}
	if o.MinBadDuration <= 0 {
		o.MinBadDuration = def.MinBadDuration
	}
	if o.SampleGap <= 0 {
		o.SampleGap = def.SampleGap
	}
	if o.AlertInterval <= 0 {
		o.AlertInterval = def.AlertInterval
	}
	if o.AlertScope == "" {
		o.AlertScope = def.AlertScope
	}
	if o.AlertTimeout <= 0 {
		o.AlertTimeout = def.AlertTimeout
	}
	if o.SaveInterval <= 0 {
		o.SaveInterval = def.SaveInterval
	}
	if o.RecordQueueSize <= 0 {
		o.RecordQueueSize = def.RecordQueueSize
	}
	if o.DetectTimeout <= 0 {
		o.DetectTimeout = def.DetectTimeout
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = def.StorageTimeout
	}
	return o
}
