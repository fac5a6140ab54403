package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"postureguard/internal/posture"
	"postureguard/internal/storage"
)

type writeJob struct {
	what string
	fn   func(ctx context.Context, gw storage.Gateway) error
	// record is set for posture record writes so they are counted.
	record bool
}

// Recorder decides when a classified sample becomes a stored record and
// performs every storage write on a single goroutine. Callers never block:
// when the queue is full the write is dropped and logged.
type Recorder struct {
	gw       storage.Gateway
	interval time.Duration
	timeout  time.Duration
	metrics  *Metrics
	logger   *logrus.Entry

	lastSave  map[posture.CameraRole]time.Time
	queueSize int
	queue     chan writeJob
	wg        sync.WaitGroup
}

func NewRecorder(gw storage.Gateway, interval, timeout time.Duration, queueSize int, metrics *Metrics, logger *logrus.Entry) *Recorder {
	return &Recorder{
		gw:        gw,
		interval:  interval,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
		lastSave:  make(map[posture.CameraRole]time.Time),
		queueSize: queueSize,
	}
}

func (r *Recorder) start() {
	queue := make(chan writeJob, r.queueSize)
	r.queue = queue
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for job := range queue {
			r.write(job)
		}
	}()
}

// close flushes the queued writes and stops the writer.
func (r *Recorder) close() {
	close(r.queue)
	r.wg.Wait()
}

func (r *Recorder) write(job writeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := job.fn(ctx, r.gw); err != nil {
		r.logger.WithError(err).Errorf("%s failed", job.what)
		if job.record {
			r.metrics.RecordsDropped.WithLabelValues("write").Inc()
		}
		return
	}
	if job.record {
		r.metrics.RecordsSaved.Inc()
	}
}

func (r *Recorder) enqueue(job writeJob) bool {
	select {
	case r.queue <- job:
		return true
	default:
		r.logger.Warnf("storage queue full, dropping %s", job.what)
		if job.record {
			r.metrics.RecordsDropped.WithLabelValues("queue_full").Inc()
		}
		return false
	}
}

// Offer persists the sample when the role's save interval has elapsed since
// its last stored record. It reports whether a record was queued.
func (r *Recorder) Offer(s posture.AngleSample, v posture.PostureVerdict) bool {
	last, ok := r.lastSave[s.Role]
	if ok && s.CapturedAt.Sub(last) < r.interval {
		return false
	}
	return r.SaveNow(s, v)
}

// SaveNow persists the sample regardless of the cadence and restarts it.
func (r *Recorder) SaveNow(s posture.AngleSample, v posture.PostureVerdict) bool {
	r.lastSave[s.Role] = s.CapturedAt
	rec := posture.NewRecord(s, v)
	return r.enqueue(writeJob{
		what:   "save " + s.Role.String() + " record",
		record: true,
		fn: func(ctx context.Context, gw storage.Gateway) error {
			return gw.SaveRecord(ctx, rec)
		},
	})
}

func (r *Recorder) SaveCalibration(p posture.CalibrationProfile) bool {
	return r.enqueue(writeJob{
		what: "save " + p.Role.String() + " calibration",
		fn: func(ctx context.Context, gw storage.Gateway) error {
			return gw.SaveCalibration(ctx, p)
		},
	})
}

func (r *Recorder) DeleteCalibration(role posture.CameraRole) bool {
	return r.enqueue(writeJob{
		what: "delete " + role.String() + " calibration",
		fn: func(ctx context.Context, gw storage.Gateway) error {
			return gw.DeleteCalibration(ctx, role)
		},
	})
}

// ResetCadence makes the next offered sample of role save immediately.
func (r *Recorder) ResetCadence(role posture.CameraRole) {
	delete(r.lastSave, role)
}
