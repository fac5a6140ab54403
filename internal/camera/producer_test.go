package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postureguard/internal/posture"
)

type fakeSource struct {
	interval time.Duration
	failing  atomic.Bool
	closed   atomic.Bool
	block    chan struct{}
}

func (s *fakeSource) Read(f *Frame) error {
	if s.block != nil {
		<-s.block
	}
	time.Sleep(s.interval)
	if s.failing.Load() {
		return ErrNoFrame
	}
	f.Width, f.Height = 2, 1
	f.Data = make([]byte, 6)
	return nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func fastOptions() ProducerOptions {
	return ProducerOptions{
		StopTimeout:     time.Second,
		RetryBaseDelay:  5 * time.Millisecond,
		RetryMaxDelay:   20 * time.Millisecond,
		ReadBackoff:     time.Millisecond,
		MaxReadFailures: 5,
	}
}

func TestProducerDeliversFrames(t *testing.T) {
	src := &fakeSource{interval: time.Millisecond}
	p := NewProducer(posture.RoleFrontal, "0", func(string) (Source, error) { return src, nil }, fastOptions(), testLogger())

	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	var last uint64
	require.Eventually(t, func() bool {
		f, ok := p.TryGetLatestFrame()
		if !ok {
			return false
		}
		assert.Greater(t, f.Seq, last)
		assert.False(t, f.CapturedAt.IsZero())
		last = f.Seq
		return last >= 3
	}, 2*time.Second, time.Millisecond)
	assert.True(t, p.Connected())

	require.NoError(t, p.Stop())
	assert.True(t, src.closed.Load(), "stop releases the source handle")
	assert.False(t, p.Connected())
	assert.False(t, p.Stats().Running)
	require.NoError(t, p.Stop(), "stop is idempotent")
}

func TestProducerRetriesUnavailableSource(t *testing.T) {
	var attempts atomic.Int32
	src := &fakeSource{interval: time.Millisecond}
	open := func(string) (Source, error) {
		if attempts.Add(1) < 4 {
			return nil, errors.New("device busy")
		}
		return src, nil
	}
	p := NewProducer(posture.RoleLateral, "http://10.0.0.2:4747/video", open, fastOptions(), testLogger())
	p.Start(context.Background())
	defer p.Stop()

	_, ok := p.TryGetLatestFrame()
	assert.False(t, ok, "no frames while the source is down")

	require.Eventually(t, p.Connected, 2*time.Second, 2*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(4))
	require.Eventually(t, func() bool {
		_, ok := p.TryGetLatestFrame()
		return ok
	}, 2*time.Second, time.Millisecond)
}

func TestProducerNeverConnectsStillStops(t *testing.T) {
	p := NewProducer(posture.RoleLateral, "bogus", func(string) (Source, error) {
		return nil, errors.New("no such device")
	}, fastOptions(), testLogger())
	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	_, ok := p.TryGetLatestFrame()
	assert.False(t, ok)
	assert.False(t, p.Connected())
	assert.NoError(t, p.Stop())
}

func TestProducerReopensAfterReadFailures(t *testing.T) {
	var mu sync.Mutex
	var sources []*fakeSource
	open := func(string) (Source, error) {
		mu.Lock()
		defer mu.Unlock()
		s := &fakeSource{}
		if len(sources) == 0 {
			s.failing.Store(true)
		}
		sources = append(sources, s)
		return s, nil
	}
	p := NewProducer(posture.RoleFrontal, "0", open, fastOptions(), testLogger())
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		_, ok := p.TryGetLatestFrame()
		return ok
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(sources), 2)
	assert.True(t, sources[0].closed.Load())
	assert.GreaterOrEqual(t, p.Stats().Reopens, uint64(1))
}

func TestProducerStopTimesOutOnHungSource(t *testing.T) {
	src := &fakeSource{interval: time.Millisecond, block: make(chan struct{})}
	var opens atomic.Int32
	opener := func(string) (Source, error) {
		opens.Add(1)
		return src, nil
	}

	opts := fastOptions()
	opts.StopTimeout = 20 * time.Millisecond
	p := NewProducer(posture.RoleFrontal, "0", opener, opts, testLogger())
	p.Start(context.Background())
	require.Eventually(t, p.Connected, time.Second, time.Millisecond)

	start := time.Now()
	err := p.Stop()
	assert.ErrorIs(t, err, ErrStopTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, src.closed.Load(), "the blocked source is closed")
	assert.NoError(t, p.Stop())

	// the old reader is still stuck in Read, a restart must not open a second source
	p.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), opens.Load())

	close(src.block)
	require.Eventually(t, func() bool { return opens.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, p.Connected, time.Second, time.Millisecond)
	assert.NoError(t, p.Stop())
}
