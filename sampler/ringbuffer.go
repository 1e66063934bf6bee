package sampler

import (
	"fmt"
	"sync/atomic"
)

// RingBuffer is a single-producer single-consumer frame queue.
//
// Cursors count frames since the last Reset and never wrap; the storage index
// is cursor & mask. The producer owns write, the consumer owns read, and each
// publishes its cursor with an atomic store after touching the frames it covers.
// Occupancy write-read stays within [0, capacity].
type RingBuffer struct {
	data     []float32
	channels int
	capacity int64
	mask     int64

	read  atomic.Int64
	write atomic.Int64
}

// NewRingBuffer creates a ring of capacityFrames frames (a power of two).
func NewRingBuffer(capacityFrames, channels int) (*RingBuffer, error) {
	if !isPowerOfTwo(capacityFrames) {
		return nil, fmt.Errorf("ring capacity must be a power of two, got %d", capacityFrames)
	}
	if channels < 1 {
		return nil, fmt.Errorf("ring channels must be >= 1, got %d", channels)
	}
	return &RingBuffer{
		data:     make([]float32, capacityFrames*channels),
		channels: channels,
		capacity: int64(capacityFrames),
		mask:     int64(capacityFrames - 1),
	}, nil
}

// Capacity returns the size in frames.
func (r *RingBuffer) Capacity() int { return int(r.capacity) }

// Channels returns the frame width.
func (r *RingBuffer) Channels() int { return r.channels }

// ReadCursor returns the consumer cursor.
func (r *RingBuffer) ReadCursor() int64 { return r.read.Load() }

// WriteCursor returns the producer cursor. Frames below it are readable.
func (r *RingBuffer) WriteCursor() int64 { return r.write.Load() }

// Available returns the number of readable frames.
func (r *RingBuffer) Available() int {
	return int(r.write.Load() - r.read.Load())
}

// Frame returns channel ch of the frame at cursor pos.
// Callers must keep ReadCursor() <= pos < WriteCursor().
func (r *RingBuffer) Frame(pos int64, ch int) float32 {
	return r.data[int(pos&r.mask)*r.channels+ch]
}

// Consume advances the read cursor to pos, releasing frames below it.
// pos is clamped to the write cursor; the cursor never moves backwards.
func (r *RingBuffer) Consume(pos int64) {
	if w := r.write.Load(); pos > w {
		pos = w
	}
	if pos > r.read.Load() {
		r.read.Store(pos)
	}
}

// Space returns the number of writable frames.
func (r *RingBuffer) Space() int {
	return int(r.capacity - (r.write.Load() - r.read.Load()))
}

// Write copies up to len(src)/srcChannels frames and returns how many were
// written. Mono sources are duplicated to every channel; extra source channels
// are dropped. The write cursor is published once the batch is copied.
func (r *RingBuffer) Write(src []float32, srcChannels int) int {
	if srcChannels < 1 {
		return 0
	}
	w := r.write.Load()
	space := r.capacity - (w - r.read.Load())
	frames := int64(len(src) / srcChannels)
	if frames > space {
		frames = space
	}
	for i := int64(0); i < frames; i++ {
		dst := int((w+i)&r.mask) * r.channels
		s := int(i) * srcChannels
		for ch := 0; ch < r.channels; ch++ {
			sc := ch
			if sc >= srcChannels {
				sc = srcChannels - 1
			}
			r.data[dst+ch] = src[s+sc]
		}
	}
	r.write.Store(w + frames)
	return int(frames)
}

// Reset empties the ring. Only valid while no other goroutine touches it.
func (r *RingBuffer) Reset() {
	r.read.Store(0)
	r.write.Store(0)
}
