package posture

import (
	"fmt"
	"strings"
	"time"
)

type CameraRole string

const (
	RoleFrontal CameraRole = "frontal"
	RoleLateral CameraRole = "lateral"
)

// Roles lists every camera role in a stable order.
var Roles = []CameraRole{RoleFrontal, RoleLateral}

func ParseRole(s string) (CameraRole, error) {
	switch CameraRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleFrontal:
		return RoleFrontal, nil
	case RoleLateral:
		return RoleLateral, nil
	}
	return "", fmt.Errorf("unknown camera role %q", s)
}

func (r CameraRole) String() string {
	return string(r)
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// KeypointSet holds the landmarks used for the postural angles, in frame pixel space.
type KeypointSet struct {
	LeftShoulder  Point `json:"leftShoulder"`
	RightShoulder Point `json:"rightShoulder"`
	LeftEar       Point `json:"leftEar"`
	RightEar      Point `json:"rightEar"`
}

type AngleSample struct {
	Role       CameraRole `json:"role"`
	Shoulder   *float64   `json:"shoulderAngle,omitempty"`
	Neck       float64    `json:"neckAngle"`
	CapturedAt time.Time  `json:"capturedAt"`
}

type CalibrationProfile struct {
	Role         CameraRole `json:"role"`
	ShoulderMin  float64    `json:"shoulderMin"`
	ShoulderMax  float64    `json:"shoulderMax"`
	NeckMin      float64    `json:"neckMin"`
	NeckMax      float64    `json:"neckMax"`
	Margin       float64    `json:"margin"`
	CalibratedAt time.Time  `json:"calibratedAt"`
}

func (p *CalibrationProfile) Validate() error {
	if _, err := ParseRole(string(p.Role)); err != nil {
		return err
	}
	if p.Margin <= 0 {
		return fmt.Errorf("calibration margin must be positive, got %v", p.Margin)
	}
	if p.ShoulderMin > p.ShoulderMax {
		return fmt.Errorf("shoulder band inverted: [%v, %v]", p.ShoulderMin, p.ShoulderMax)
	}
	if p.NeckMin > p.NeckMax {
		return fmt.Errorf("neck band inverted: [%v, %v]", p.NeckMin, p.NeckMax)
	}
	return nil
}

func (p *CalibrationProfile) ShoulderInBand(angle float64) bool {
	return p.ShoulderMin <= angle && angle <= p.ShoulderMax
}

func (p *CalibrationProfile) NeckInBand(angle float64) bool {
	return p.NeckMin <= angle && angle <= p.NeckMax
}

// OutOfBand reports whether the sample leaves the frozen band. The shoulder
// axis is only tested for the frontal role.
func (p *CalibrationProfile) OutOfBand(s AngleSample) bool {
	if !p.NeckInBand(s.Neck) {
		return true
	}
	if p.Role == RoleFrontal && s.Shoulder != nil && !p.ShoulderInBand(*s.Shoulder) {
		return true
	}
	return false
}

type PostureVerdict struct {
	Role          CameraRole `json:"role"`
	IsPoorPosture bool       `json:"isPoorPosture"`
	BadSince      *time.Time `json:"badSince,omitempty"`
	OutOfBand     bool       `json:"outOfBand"`
	EvaluatedAt   time.Time  `json:"evaluatedAt"`
}

type PostureRecord struct {
	ID            int64      `json:"id"`
	Timestamp     time.Time  `json:"timestamp"`
	ShoulderAngle *float64   `json:"shoulderAngle,omitempty"`
	NeckAngle     float64    `json:"neckAngle"`
	Role          CameraRole `json:"cameraType"`
	IsPoorPosture bool       `json:"isPoorPosture"`
}

// NewRecord snapshots a classified sample into a record ready to be persisted.
func NewRecord(s AngleSample, v PostureVerdict) *PostureRecord {
	rec := &PostureRecord{
		Timestamp:     s.CapturedAt,
		NeckAngle:     s.Neck,
		Role:          s.Role,
		IsPoorPosture: v.IsPoorPosture,
	}
	if s.Shoulder != nil {
		shoulder := *s.Shoulder
		rec.ShoulderAngle = &shoulder
	}
	return rec
}

// TimeRange bounds a record query. A zero Start or End leaves that side open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}
