// Package audio buffers APU samples between the emulation goroutine and
// the platform audio callback goroutine, and smooths the result with a
// one-pole low-pass filter before handoff.
package audio

import (
	"math"
	"sync/atomic"
)

// defaultCapacity holds nearly three frames at 44.1kHz/60fps
// (~735 samples/frame), enough headroom to absorb normal frame jitter
// without a caller having to size the buffer themselves.
const defaultCapacity = 2048

// RingBuffer is a single-producer/single-consumer lock-free sample queue.
// The emulation goroutine calls Write; the platform audio callback
// goroutine calls Read. Only one goroutine may call each method.
type RingBuffer struct {
	buf  []float32
	mask uint32

	writeIndex atomic.Uint32
	readIndex  atomic.Uint32

	lastSample atomic.Uint32 // float32 bits of the last sample Read returned, for underrun hold
}

// NewRingBuffer creates a ring buffer sized to the next power of two at or
// above capacity (0 selects the default).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &RingBuffer{
		buf:  make([]float32, size),
		mask: uint32(size - 1),
	}
}

// Write appends samples, overwriting the oldest unread samples on overrun.
// Dropping the oldest data (rather than the newest) keeps output latency
// from growing unbounded when the producer runs ahead of the consumer.
func (r *RingBuffer) Write(samples []float32) {
	w := r.writeIndex.Load()
	for _, s := range samples {
		r.buf[w&r.mask] = s
		w++
	}
	r.writeIndex.Store(w)

	capacity := r.mask + 1
	read := r.readIndex.Load()
	if w-read > capacity {
		r.readIndex.Store(w - capacity)
	}
}

// Read fills out with buffered samples and returns how many were
// available. On underrun the remainder of out is filled with the last
// sample produced, fading toward silence, rather than a hard discontinuity.
func (r *RingBuffer) Read(out []float32) int {
	w := r.writeIndex.Load()
	read := r.readIndex.Load()

	available := int(w - read)
	if available > len(out) {
		available = len(out)
	}

	for i := 0; i < available; i++ {
		out[i] = r.buf[read&r.mask]
		read++
	}
	r.readIndex.Store(read)

	if available > 0 {
		r.lastSample.Store(math.Float32bits(out[available-1]))
	}

	if available < len(out) {
		last := math.Float32frombits(r.lastSample.Load())
		for i := available; i < len(out); i++ {
			last *= underrunDecay
			out[i] = last
		}
		r.lastSample.Store(math.Float32bits(last))
	}

	return available
}

// underrunDecay fades held samples toward silence at roughly -0.01dB per
// sample (audible clicks come from a hard stop, not from a quick fade).
const underrunDecay = 0.999

// Available reports how many unread samples are currently buffered.
func (r *RingBuffer) Available() int {
	return int(r.writeIndex.Load() - r.readIndex.Load())
}
