package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postureguard/internal/alert"
	"postureguard/internal/camera"
	"postureguard/internal/landmark"
	"postureguard/internal/posture"
	"postureguard/internal/storage"
	"postureguard/pkg/log"
)

var ErrNotRunning = errors.New("engine is not running")

// FrameSource is a camera producer as seen by the engine.
type FrameSource interface {
	Start(ctx context.Context)
	Stop() error
	TryGetLatestFrame() (*camera.Frame, bool)
	Stats() camera.ProducerStats
}

var _ FrameSource = (*camera.Producer)(nil)

type RoleSource struct {
	Role   posture.CameraRole
	Source FrameSource
}

// roleState is owned by the loop goroutine.
type roleState struct {
	role       posture.CameraRole
	source     FrameSource
	calibrator *posture.Calibrator
	classifier *posture.Classifier

	sample        *posture.AngleSample
	verdict       *posture.PostureVerdict
	processed     uint64
	noDetection   uint64
	detectFailing bool
}

type command struct {
	run  func()
	done chan struct{}
}

type Engine struct {
	opts       Options
	provider   landmark.Provider
	gw         storage.Gateway
	dispatcher *alert.Dispatcher
	gate       *posture.AlertGate
	recorder   *Recorder
	metrics    *Metrics
	logger     *logrus.Entry

	roles     []*roleState
	sessionID string
	startedAt time.Time
	cmds      chan command
	status    atomic.Pointer[Status]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options, sources []RoleSource, provider landmark.Provider, gw storage.Gateway,
	sink alert.Sink, metrics *Metrics, logger *logrus.Entry) (*Engine, error) {
	opts = opts.withDefaults()
	if len(sources) == 0 {
		return nil, errors.New("no camera source configured")
	}
	gate, err := posture.NewAlertGate(opts.AlertScope, opts.AlertInterval)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	e := &Engine{
		opts:       opts,
		provider:   provider,
		gw:         gw,
		dispatcher: alert.NewDispatcher(sink, opts.AlertTimeout, log.WithComponent(logger, "alert")),
		gate:       gate,
		metrics:    metrics,
		logger:     logger,
		sessionID:  uuid.NewString(),
		cmds:       make(chan command),
	}
	e.recorder = NewRecorder(gw, opts.SaveInterval, opts.StorageTimeout, opts.RecordQueueSize, metrics,
		log.WithComponent(logger, "recorder"))

	seen := make(map[posture.CameraRole]bool)
	for _, src := range sources {
		if seen[src.Role] {
			return nil, fmt.Errorf("camera role %s configured twice", src.Role)
		}
		seen[src.Role] = true
		e.roles = append(e.roles, &roleState{
			role:       src.Role,
			source:     src.Source,
			calibrator: posture.NewCalibrator(src.Role, opts.CalibrationFrames, opts.CalibrationMargin),
			classifier: posture.NewClassifier(src.Role, opts.MinBadDuration),
		})
	}
	e.publishStatus(false)
	return e, nil
}

// Start restores saved calibrations, starts every camera and launches the
// monitoring loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}

	if e.opts.RestoreCalibration {
		e.restoreCalibrations(ctx)
	}
	for _, rs := range e.roles {
		rs.classifier.Reset()
		rs.verdict = nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.startedAt = time.Now()

	e.recorder.start()
	for _, rs := range e.roles {
		rs.source.Start(loopCtx)
	}
	e.publishStatus(true)

	go func() {
		defer close(done)
		e.loop(loopCtx)
	}()
	e.logger.WithField("session", e.sessionID).Infof("monitoring %d camera(s)", len(e.roles))
	return nil
}

// Stop ends the loop, stops every camera, flushes pending writes and waits for
// in-flight alerts. A camera that does not stop in time is logged and
// abandoned; the others are still stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	var errs []error
	for _, rs := range e.roles {
		if err := rs.source.Stop(); err != nil {
			log.ForRole(e.logger, rs.role).WithError(err).Warn("stop camera")
			errs = append(errs, fmt.Errorf("%s: %w", rs.role, err))
		}
	}
	e.recorder.close()
	e.dispatcher.Wait()
	e.publishStatus(false)
	e.logger.Info("monitoring stopped")
	return errors.Join(errs...)
}

// Run starts the engine and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

// Status returns the latest snapshot. It never blocks the loop.
func (e *Engine) Status() *Status {
	return e.status.Load()
}

// Recalibrate discards every role's band, deletes the saved profiles and
// starts collecting calibration samples again.
func (e *Engine) Recalibrate(ctx context.Context) error {
	return e.exec(ctx, func() {
		for _, rs := range e.roles {
			rs.calibrator.Reset()
			rs.classifier.Reset()
			rs.sample, rs.verdict = nil, nil
			e.recorder.ResetCadence(rs.role)
			e.recorder.DeleteCalibration(rs.role)
			e.metrics.PoorPosture.WithLabelValues(rs.role.String()).Set(0)
		}
		e.logger.Info("recalibration requested, collecting new samples")
	})
}

// exec runs fn on the loop goroutine and waits for it.
func (e *Engine) exec(ctx context.Context, fn func()) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}

	cmd := command{run: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) restoreCalibrations(ctx context.Context) {
	for _, rs := range e.roles {
		loadCtx, cancel := context.WithTimeout(ctx, e.opts.StorageTimeout)
		p, err := e.gw.LoadCalibration(loadCtx, rs.role)
		cancel()
		logger := log.ForRole(e.logger, rs.role)
		if err != nil {
			logger.WithError(err).Warn("load saved calibration")
			continue
		}
		if p == nil {
			continue
		}
		if err := rs.calibrator.Restore(*p); err != nil {
			logger.WithError(err).Warn("discarding saved calibration")
			continue
		}
		logger.Infof("restored calibration from %s", p.CalibratedAt.Format(time.RFC3339))
	}
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			cmd.run()
			e.publishStatus(true)
			close(cmd.done)
		case <-ticker.C:
			e.tick(ctx)
			e.publishStatus(true)
		}
	}
}

// tick takes at most one frame per role and runs it through the pipeline.
func (e *Engine) tick(ctx context.Context) {
	for _, rs := range e.roles {
		frame, ok := rs.source.TryGetLatestFrame()
		if !ok {
			continue
		}
		e.process(ctx, rs, frame)
	}
}

func (e *Engine) process(ctx context.Context, rs *roleState, frame *camera.Frame) {
	role := rs.role.String()
	logger := log.ForRole(e.logger, rs.role)

	detectCtx, cancel := context.WithTimeout(ctx, e.opts.DetectTimeout)
	kp, err := e.provider.Detect(detectCtx, frame)
	cancel()
	if err != nil {
		e.metrics.DetectErrors.WithLabelValues(role).Inc()
		if !rs.detectFailing {
			logger.WithError(err).Warn("pose estimation failed")
			rs.detectFailing = true
		}
		return
	}
	if rs.detectFailing {
		logger.Info("pose estimation recovered")
		rs.detectFailing = false
	}
	rs.processed++
	e.metrics.FramesProcessed.WithLabelValues(role).Inc()

	sample, ok := posture.ExtractAngles(kp, rs.role, frame.CapturedAt)
	if !ok {
		rs.noDetection++
		e.metrics.FramesNoDetection.WithLabelValues(role).Inc()
		return
	}
	prev := rs.sample
	rs.sample = &sample

	if !rs.calibrator.Frozen() {
		if rs.calibrator.Add(sample) {
			profile, _ := rs.calibrator.Profile()
			logger.WithFields(logrus.Fields{
				"shoulder": fmt.Sprintf("[%.1f, %.1f]", profile.ShoulderMin, profile.ShoulderMax),
				"neck":     fmt.Sprintf("[%.1f, %.1f]", profile.NeckMin, profile.NeckMax),
			}).Info("calibration complete")
			e.recorder.SaveCalibration(profile)
		}
		return
	}

	if prev != nil && sample.CapturedAt.Sub(prev.CapturedAt) > e.opts.SampleGap {
		logger.Debugf("no usable sample for %v, restarting debounce", sample.CapturedAt.Sub(prev.CapturedAt))
		rs.classifier.Reset()
	}
	profile, _ := rs.calibrator.Profile()
	verdict, err := rs.classifier.Classify(&profile, sample)
	if err != nil {
		logger.WithError(err).Debug("no verdict")
		return
	}
	rs.verdict = &verdict
	poor := 0.0
	if verdict.IsPoorPosture {
		poor = 1
	}
	e.metrics.PoorPosture.WithLabelValues(role).Set(poor)

	if verdict.IsPoorPosture && e.gate.ShouldAlert(rs.role, sample.CapturedAt) {
		e.metrics.Alerts.WithLabelValues(role).Inc()
		e.dispatcher.Dispatch(ctx, alert.NewEvent(sample, verdict, frame, sample.CapturedAt))
		e.recorder.SaveNow(sample, verdict)
		return
	}
	e.recorder.Offer(sample, verdict)
}

func (e *Engine) publishStatus(running bool) {
	st := &Status{
		SessionID:   e.sessionID,
		StartedAt:   e.startedAt,
		Running:     running,
		AlertScope:  e.gate.Scope(),
		GeneratedAt: time.Now(),
		Roles:       make([]RoleStatus, 0, len(e.roles)),
	}
	if last, ok := e.gate.LastAlert(); ok {
		st.LastAlert = &last
	}

	calibrators := make([]*posture.Calibrator, 0, len(e.roles))
	for _, rs := range e.roles {
		calibrators = append(calibrators, rs.calibrator)
		n, target := rs.calibrator.Progress()
		src := rs.source.Stats()
		r := RoleStatus{
			Role:              rs.role,
			Source:            src,
			CalibrationCount:  n,
			CalibrationTarget: target,
			FramesProcessed:   rs.processed,
			NoDetection:       rs.noDetection,
		}
		if p, ok := rs.calibrator.Profile(); ok {
			r.Profile = &p
		}
		if rs.sample != nil {
			s := *rs.sample
			r.LastSample = &s
		}
		if rs.verdict != nil {
			v := *rs.verdict
			r.Verdict = &v
		}
		st.Roles = append(st.Roles, r)

		role := rs.role.String()
		e.metrics.CalibrationProgress.WithLabelValues(role).Set(float64(n))
		e.metrics.FramesDropped.WithLabelValues(role).Set(float64(src.Dropped))
		connected := 0.0
		if src.Connected {
			connected = 1
		}
		e.metrics.SourceConnected.WithLabelValues(role).Set(connected)
	}
	st.Calibrated = posture.SystemCalibrated(calibrators...)
	e.status.Store(st)
}
