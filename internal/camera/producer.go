package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"postureguard/internal/posture"
	"postureguard/pkg/log"
)

var (
	ErrNoFrame     = errors.New("no frame read from source")
	ErrStopTimeout = errors.New("camera producer did not stop in time")
)

// Source is a device or stream handle. Read blocks until a frame is available
// or the read fails; it is only ever called from the producer goroutine.
type Source interface {
	Read(f *Frame) error
	Close() error
}

type Opener func(addr string) (Source, error)

type ProducerOptions struct {
	StopTimeout     time.Duration
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	ReadBackoff     time.Duration
	MaxReadFailures int
}

func DefaultProducerOptions() ProducerOptions {
	return ProducerOptions{
		StopTimeout:     time.Second,
		RetryBaseDelay:  200 * time.Millisecond,
		RetryMaxDelay:   5 * time.Second,
		ReadBackoff:     10 * time.Millisecond,
		MaxReadFailures: 300,
	}
}

type ProducerStats struct {
	Role      posture.CameraRole `json:"role"`
	Address   string             `json:"address"`
	Running   bool               `json:"running"`
	Connected bool               `json:"connected"`
	Pushed    uint64             `json:"pushed"`
	Dropped   uint64             `json:"dropped"`
	Reopens   uint64             `json:"reopens"`
}

// Producer reads one camera source on its own goroutine and feeds a FrameChannel.
type Producer struct {
	role   posture.CameraRole
	addr   string
	open   Opener
	opts   ProducerOptions
	frames *FrameChannel
	logger *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	// done stays set after a timed out Stop until the abandoned reader exits.
	done chan struct{}
	src  Source

	connected atomic.Bool
	reopens   atomic.Uint64
	seq       uint64
}

func NewProducer(role posture.CameraRole, addr string, open Opener, opts ProducerOptions, logger *logrus.Entry) *Producer {
	def := DefaultProducerOptions()
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = def.RetryBaseDelay
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	if opts.ReadBackoff <= 0 {
		opts.ReadBackoff = def.ReadBackoff
	}
	if opts.MaxReadFailures <= 0 {
		opts.MaxReadFailures = def.MaxReadFailures
	}
	return &Producer{
		role:   role,
		addr:   addr,
		open:   open,
		opts:   opts,
		frames: NewFrameChannel(),
		logger: log.ForRole(logger, role).WithField("source", addr),
	}
}

func (p *Producer) Role() posture.CameraRole {
	return p.role
}

// Start launches the read loop. Calling Start on a running producer is a no-op.
// After a timed out Stop the new loop only opens the source once the
// abandoned reader has exited.
func (p *Producer) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	prev := p.done
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				return
			}
		}
		p.run(ctx)
	}()
}

// Stop signals the read loop to exit and waits at most StopTimeout for it.
// On timeout the current source is closed to unblock the reader.
// It is safe to call on a stopped producer.
func (p *Producer) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-time.After(p.opts.StopTimeout):
		p.logger.Warnf("camera producer still blocked after %v, closing its source", p.opts.StopTimeout)
		p.releaseSource(p.currentSource())
		return ErrStopTimeout
	}

	p.mu.Lock()
	if p.done == done {
		p.done = nil
	}
	p.mu.Unlock()
	p.frames.Drain()
	p.logger.Info("camera producer stopped")
	return nil
}

// TryGetLatestFrame never blocks; it returns false when nothing is buffered.
func (p *Producer) TryGetLatestFrame() (*Frame, bool) {
	return p.frames.TryGet()
}

func (p *Producer) Connected() bool {
	return p.connected.Load()
}

func (p *Producer) Stats() ProducerStats {
	p.mu.Lock()
	running := p.cancel != nil
	p.mu.Unlock()
	return ProducerStats{
		Role:      p.role,
		Address:   p.addr,
		Running:   running,
		Connected: p.connected.Load(),
		Pushed:    p.frames.Pushed(),
		Dropped:   p.frames.Drops(),
		Reopens:   p.reopens.Load(),
	}
}

func (p *Producer) run(ctx context.Context) {
	defer p.connected.Store(false)

	for {
		src, err := p.openWithRetry(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.WithError(err).Error("giving up on camera source")
			}
			return
		}
		p.mu.Lock()
		p.src = src
		p.mu.Unlock()
		p.connected.Store(true)
		p.logger.Info("camera source connected")

		p.readLoop(ctx, src)

		p.connected.Store(false)
		p.releaseSource(src)
		if ctx.Err() != nil {
			return
		}
		p.reopens.Add(1)
		p.logger.Warn("camera source stalled, reopening")
	}
}

func (p *Producer) currentSource() Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src
}

// releaseSource closes src unless it was already released.
func (p *Producer) releaseSource(src Source) {
	p.mu.Lock()
	if src == nil || p.src != src {
		p.mu.Unlock()
		return
	}
	p.src = nil
	p.mu.Unlock()

	if err := src.Close(); err != nil {
		p.logger.WithError(err).Warn("close camera source")
	}
}

func (p *Producer) openWithRetry(ctx context.Context) (Source, error) {
	policy := retrypolicy.NewBuilder[Source]().
		WithBackoff(p.opts.RetryBaseDelay, p.opts.RetryMaxDelay).
		WithMaxRetries(-1).
		Build()

	return failsafe.With[Source](policy).WithContext(ctx).Get(func() (Source, error) {
		src, err := p.open(p.addr)
		if err != nil {
			p.logger.WithError(err).Warn("open camera source failed")
			return nil, fmt.Errorf("%w: %v", posture.ErrSourceUnavailable, err)
		}
		return src, nil
	})
}

func (p *Producer) readLoop(ctx context.Context, src Source) {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f := &Frame{}
		if err := src.Read(f); err != nil {
			failures++
			if failures >= p.opts.MaxReadFailures {
				p.logger.WithError(err).Warnf("%d consecutive read failures", failures)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.opts.ReadBackoff):
			}
			continue
		}
		failures = 0

		p.seq++
		f.Seq = p.seq
		if f.CapturedAt.IsZero() {
			f.CapturedAt = time.Now()
		}
		if p.frames.Push(f) {
			p.logger.Tracef("frame %d evicted an unread frame", f.Seq)
		}
	}
}
