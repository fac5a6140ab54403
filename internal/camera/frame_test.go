package camera

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameChannelEvictsOldest(t *testing.T) {
	c := NewFrameChannel()

	assert.False(t, c.Push(&Frame{Seq: 1}))
	assert.False(t, c.Push(&Frame{Seq: 2}))
	assert.True(t, c.Push(&Frame{Seq: 3}), "third push on a full channel evicts")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Drops())
	assert.Equal(t, uint64(3), c.Pushed())

	f, ok := c.TryGet()
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.Seq)
	f, ok = c.TryGet()
	require.True(t, ok)
	assert.Equal(t, uint64(3), f.Seq)

	_, ok = c.TryGet()
	assert.False(t, ok)
}

func TestFrameChannelTryGetNeverBlocks(t *testing.T) {
	c := NewFrameChannel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			c.TryGet()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryGet blocked on an empty channel")
	}
}

func TestFrameChannelConcurrentProducerConsumer(t *testing.T) {
	c := NewFrameChannel()
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= n; i++ {
			c.Push(&Frame{Seq: i})
		}
	}()

	var last uint64
	var got uint64
	deadline := time.After(5 * time.Second)
	for last < n {
		select {
		case <-deadline:
			t.Fatalf("consumer stalled at seq %d", last)
		default:
		}
		f, ok := c.TryGet()
		if !ok {
			continue
		}
		require.Greater(t, f.Seq, last, "frames must come out in capture order")
		last = f.Seq
		got++
	}
	wg.Wait()

	assert.Equal(t, uint64(n), got+c.Drops()+uint64(c.Len()))
}

func TestFrameChannelDrain(t *testing.T) {
	c := NewFrameChannel()
	c.Push(&Frame{Seq: 1})
	c.Push(&Frame{Seq: 2})
	c.Drain()
	assert.Equal(t, 0, c.Len())
}
