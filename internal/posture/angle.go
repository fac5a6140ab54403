package posture

import (
	"math"
	"time"
)

// Angle returns the unsigned angle at p2 between the rays p2->p1 and p2->p3, in degrees within [0, 180].
func Angle(p1, p2, p3 Point) float64 {
	a := math.Atan2(p3.Y-p2.Y, p3.X-p2.X) - math.Atan2(p1.Y-p2.Y, p1.X-p2.X)
	deg := math.Abs(a * 180.0 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// vertical returns a point on the vertical line through p, towards the top
// edge of the frame (image y grows downwards). Only the direction matters to Angle.
func vertical(p Point) Point {
	return Point{X: p.X, Y: p.Y - 1}
}

func ShoulderAngle(kp *KeypointSet) float64 {
	return Angle(kp.LeftShoulder, kp.RightShoulder, vertical(kp.RightShoulder))
}

func NeckAngle(kp *KeypointSet) float64 {
	return Angle(kp.LeftEar, kp.LeftShoulder, vertical(kp.LeftShoulder))
}

// ExtractAngles turns a keypoint set into an angle sample for the given role.
// A nil keypoint set yields ok=false: nothing was detected and the frame is skipped.
func ExtractAngles(kp *KeypointSet, role CameraRole, capturedAt time.Time) (AngleSample, bool) {
	if kp == nil {
		return AngleSample{}, false
	}
	s := AngleSample{
		Role:       role,
		Neck:       NeckAngle(kp),
		CapturedAt: capturedAt,
	}
	if role == RoleFrontal {
		shoulder := ShoulderAngle(kp)
		s.Shoulder = &shoulder
	}
	return s, true
}
