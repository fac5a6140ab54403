package engine

import (
	"time"

	"postureguard/internal/camera"
	"postureguard/internal/posture"
)

// Status is an immutable snapshot of the engine, rebuilt by the loop after
// every cycle.
type Status struct {
	SessionID   string             `json:"sessionId"`
	StartedAt   time.Time          `json:"startedAt"`
	Running     bool               `json:"running"`
	Calibrated  bool               `json:"calibrated"`
	AlertScope  posture.AlertScope `json:"alertScope"`
	LastAlert   *time.Time         `json:"lastAlert,omitempty"`
	Roles       []RoleStatus       `json:"roles"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

type RoleStatus struct {
	Role              posture.CameraRole          `json:"role"`
	Source            camera.ProducerStats        `json:"source"`
	CalibrationCount  int                         `json:"calibrationCount"`
	CalibrationTarget int                         `json:"calibrationTarget"`
	Profile           *posture.CalibrationProfile `json:"profile,omitempty"`
	LastSample        *posture.AngleSample        `json:"lastSample,omitempty"`
	Verdict           *posture.PostureVerdict     `json:"verdict,omitempty"`
	FramesProcessed   uint64                      `json:"framesProcessed"`
	NoDetection       uint64                      `json:"noDetection"`
}

// Role returns the status of one role, or false when it is not monitored.
func (s *Status) Role(role posture.CameraRole) (RoleStatus, bool) {
	for _, rs := range s.Roles {
		if rs.Role == role {
			return rs, true
		}
	}
	return RoleStatus{}, false
}
