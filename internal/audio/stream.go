package audio

import "math"

// Stream adapts a RingBuffer of mono float32 samples in [-1, 1] into the
// interleaved 16-bit stereo PCM byte stream ebiten's audio.Player expects,
// applying the low-pass filter on the way in.
type Stream struct {
	ring   *RingBuffer
	filter *LowPassFilter
	mono   []float32
}

// NewStream creates a Stream backed by a fresh ring buffer and a low-pass
// filter tuned to roll off just above the audible range a 44.1kHz NES
// signal actually carries.
func NewStream(sampleRate int) *Stream {
	return &Stream{
		ring:   NewRingBuffer(0),
		filter: NewLowPassFilter(float64(sampleRate), 14000),
	}
}

// Push filters and enqueues samples produced by the APU this frame. Called
// from the emulation goroutine.
func (s *Stream) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	s.filter.ProcessBatch(samples)
	s.ring.Write(samples)
}

// Read implements io.Reader, filling p with interleaved little-endian
// int16 stereo frames decoded from the mono ring buffer. Called from
// ebiten's audio callback goroutine. Read never blocks and never returns
// an error: an underrun is filled by the ring buffer's own fade-to-silence
// policy rather than starving the audio callback.
func (s *Stream) Read(p []byte) (int, error) {
	frames := len(p) / 4 // 2 bytes/sample * 2 channels
	if frames == 0 {
		return 0, nil
	}
	if cap(s.mono) < frames {
		s.mono = make([]float32, frames)
	}
	mono := s.mono[:frames]
	s.ring.Read(mono)

	for i, v := range mono {
		sample := int16(clamp(v) * math.MaxInt16)
		off := i * 4
		p[off] = byte(sample)
		p[off+1] = byte(sample >> 8)
		p[off+2] = byte(sample)
		p[off+3] = byte(sample >> 8)
	}
	return frames * 4, nil
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
