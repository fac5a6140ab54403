package posture

import "fmt"

const (
	DefaultCalibrationFrames = 30
	DefaultMarginDegrees     = 5.0
)

// Calibrator is the per-role calibration state machine: it collects a fixed
// number of samples, then freezes a mean ± margin band until Reset.
type Calibrator struct {
	role     CameraRole
	target   int
	margin   float64
	shoulder []float64
	neck     []float64
	profile  *CalibrationProfile
}

func NewCalibrator(role CameraRole, target int, margin float64) *Calibrator {
	if target <= 0 {
		target = DefaultCalibrationFrames
	}
	if margin <= 0 {
		margin = DefaultMarginDegrees
	}
	return &Calibrator{
		role:     role,
		target:   target,
		margin:   margin,
		shoulder: make([]float64, 0, target),
		neck:     make([]float64, 0, target),
	}
}

func (c *Calibrator) Role() CameraRole {
	return c.role
}

func (c *Calibrator) Frozen() bool {
	return c.profile != nil
}

// Progress returns how many samples were collected out of the target.
func (c *Calibrator) Progress() (int, int) {
	if c.profile != nil {
		return c.target, c.target
	}
	return len(c.neck), c.target
}

// Profile returns a copy of the frozen band.
func (c *Calibrator) Profile() (CalibrationProfile, bool) {
	if c.profile == nil {
		return CalibrationProfile{}, false
	}
	return *c.profile, true
}

// Add feeds one sample. It returns true exactly once, on the sample that
// completes the calibration. Samples received once frozen are ignored.
func (c *Calibrator) Add(s AngleSample) bool {
	if c.profile != nil {
		return false
	}
	if s.Shoulder != nil {
		c.shoulder = append(c.shoulder, *s.Shoulder)
	}
	c.neck = append(c.neck, s.Neck)
	if len(c.neck) < c.target {
		return false
	}

	shoulderMean := mean(c.shoulder)
	neckMean := mean(c.neck)
	p := &CalibrationProfile{
		Role:         c.role,
		NeckMin:      neckMean - c.margin,
		NeckMax:      neckMean + c.margin,
		Margin:       c.margin,
		CalibratedAt: s.CapturedAt,
	}
	if len(c.shoulder) > 0 {
		p.ShoulderMin = shoulderMean - c.margin
		p.ShoulderMax = shoulderMean + c.margin
	}
	c.profile = p
	return true
}

// Restore freezes the machine with a previously persisted profile.
func (c *Calibrator) Restore(p CalibrationProfile) error {
	if p.Role != c.role {
		return fmt.Errorf("profile for %s cannot restore %s calibration", p.Role, c.role)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	c.profile = &p
	c.shoulder = c.shoulder[:0]
	c.neck = c.neck[:0]
	return nil
}

// Reset drops the band and every buffered angle, back to collecting from zero.
func (c *Calibrator) Reset() {
	c.profile = nil
	c.shoulder = make([]float64, 0, c.target)
	c.neck = make([]float64, 0, c.target)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SystemCalibrated is the AND of the frozen state of every active role.
func SystemCalibrated(calibrators ...*Calibrator) bool {
	if len(calibrators) == 0 {
		return false
	}
	for _, c := range calibrators {
		if c == nil || !c.Frozen() {
			return false
		}
	}
	return true
}
