package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postureguard/internal/camera"
	"postureguard/internal/posture"
)

// Event describes one confirmed bad-posture alert.
type Event struct {
	ID      string                 `json:"id"`
	Role    posture.CameraRole     `json:"role"`
	Sample  posture.AngleSample    `json:"sample"`
	Verdict posture.PostureVerdict `json:"verdict"`
	FiredAt time.Time              `json:"firedAt"`
	// Frame is the image that triggered the alert, if still at hand.
	Frame *camera.Frame `json:"-"`
}

func NewEvent(s posture.AngleSample, v posture.PostureVerdict, frame *camera.Frame, firedAt time.Time) Event {
	return Event{
		ID:      uuid.NewString(),
		Role:    s.Role,
		Sample:  s,
		Verdict: v,
		FiredAt: firedAt,
		Frame:   frame,
	}
}

// SnapshotKey is the object path under which the triggering frame is stored.
func (e Event) SnapshotKey() string {
	t := e.FiredAt
	return fmt.Sprintf("alerts/%04d/%02d/%02d/%s/%s.jpg", t.Year(), t.Month(), t.Day(), e.Role, e.ID)
}

type Sink interface {
	PlayAlert(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) PlayAlert(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Multi runs every sink in order and joins their errors.
type Multi []Sink

func (m Multi) PlayAlert(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.PlayAlert(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogSink struct {
	logger *logrus.Entry
}

func NewLogSink(logger *logrus.Entry) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) PlayAlert(ctx context.Context, ev Event) error {
	fields := logrus.Fields{
		"alertId": ev.ID,
		"role":    ev.Role,
		"neck":    fmt.Sprintf("%.1f", ev.Sample.Neck),
	}
	if ev.Sample.Shoulder != nil {
		fields["shoulder"] = fmt.Sprintf("%.1f", *ev.Sample.Shoulder)
	}
	if ev.Verdict.BadSince != nil {
		fields["badFor"] = ev.FiredAt.Sub(*ev.Verdict.BadSince).Round(time.Millisecond)
	}
	s.logger.WithFields(fields).Warn("poor posture detected")
	return nil
}

// BellSink rings the terminal bell.
type BellSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBellSink(w io.Writer) *BellSink {
	return &BellSink{w: w}
}

func (s *BellSink) PlayAlert(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, "\a")
	return err
}

// Dispatcher plays alerts on their own goroutines so the caller never waits
// on a sink. Sink errors and panics are logged and otherwise ignored.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *logrus.Entry
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, timeout time.Duration, logger *logrus.Entry) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{sink: sink, timeout: timeout, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorf("alert sink panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.sink.PlayAlert(ctx, ev); err != nil {
			d.logger.WithError(err).WithField("alertId", ev.ID).Warn("play alert")
		}
	}()
}

// Wait blocks until every dispatched alert has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
