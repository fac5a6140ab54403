package camera

import (
	"sync/atomic"
	"time"
)

// Frame is a captured image owned by whoever holds it; nobody mutates Data after capture.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	// Data holds Height*Width*3 bytes of BGR pixels.
	Data []byte
}

// FrameChannelCapacity is fixed: a live preview wants recency, not completeness.
const FrameChannelCapacity = 2

// FrameChannel is a single-producer/single-consumer bounded buffer. When full,
// Push evicts the oldest buffered frame. TryGet never blocks.
type FrameChannel struct {
	ch     chan *Frame
	drops  atomic.Uint64
	pushed atomic.Uint64
}

func NewFrameChannel() *FrameChannel {
	return &FrameChannel{ch: make(chan *Frame, FrameChannelCapacity)}
}

// Push inserts f and reports whether an older frame had to be evicted for it.
func (c *FrameChannel) Push(f *Frame) bool {
	c.pushed.Add(1)
	select {
	case c.ch <- f:
		return false
	default:
	}

	evicted := false
	select {
	case <-c.ch:
		evicted = true
		c.drops.Add(1)
	default:
	}

	select {
	case c.ch <- f:
	default:
		// only the producer pushes, so space freed above is still ours
		c.drops.Add(1)
	}
	return evicted
}

// TryGet returns the oldest buffered frame, or false when the channel is empty.
func (c *FrameChannel) TryGet() (*Frame, bool) {
	select {
	case f := <-c.ch:
		return f, true
	default:
		return nil, false
	}
}

func (c *FrameChannel) Len() int {
	return len(c.ch)
}

func (c *FrameChannel) Drops() uint64 {
	return c.drops.Load()
}

func (c *FrameChannel) Pushed() uint64 {
	return c.pushed.Load()
}

// Drain discards every buffered frame.
func (c *FrameChannel) Drain() {
	for {
		if _, ok := c.TryGet(); !ok {
			return
		}
	}
}
