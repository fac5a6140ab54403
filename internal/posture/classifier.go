package posture

import (
	"fmt"
	"time"
)

const DefaultMinBadDuration = 3 * time.Second

// Classifier debounces the band test: a role is only declared in poor posture
// after it stayed out of band for minBad. Recovery is immediate.
type Classifier struct {
	role     CameraRole
	minBad   time.Duration
	badSince *time.Time
	verdict  PostureVerdict
}

func NewClassifier(role CameraRole, minBad time.Duration) *Classifier {
	if minBad <= 0 {
		minBad = DefaultMinBadDuration
	}
	return &Classifier{
		role:    role,
		minBad:  minBad,
		verdict: PostureVerdict{Role: role},
	}
}

// Classify evaluates one sample against the frozen profile. The sample's
// capture time is the clock for the debounce.
func (c *Classifier) Classify(profile *CalibrationProfile, s AngleSample) (PostureVerdict, error) {
	if profile == nil {
		return PostureVerdict{Role: c.role}, fmt.Errorf("classify %s: %w", c.role, ErrCalibrationNotReady)
	}

	now := s.CapturedAt
	out := profile.OutOfBand(s)
	if !out {
		c.badSince = nil
		c.verdict = PostureVerdict{Role: c.role, EvaluatedAt: now}
		return c.verdict, nil
	}

	if c.badSince == nil {
		since := now
		c.badSince = &since
	}
	since := *c.badSince
	c.verdict = PostureVerdict{
		Role:          c.role,
		IsPoorPosture: now.Sub(since) >= c.minBad,
		BadSince:      &since,
		OutOfBand:     true,
		EvaluatedAt:   now,
	}
	return c.verdict, nil
}

func (c *Classifier) Verdict() PostureVerdict {
	return c.verdict
}

func (c *Classifier) Reset() {
	c.badSince = nil
	c.verdict = PostureVerdict{Role: c.role}
}
