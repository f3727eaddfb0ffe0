package audio

import "testing"

func TestRingBufferRoundTripsWrittenSamples(t *testing.T) {
	r := NewRingBuffer(8)
	r.Write([]float32{0.1, 0.2, 0.3})

	out := make([]float32, 3)
	n := r.Read(out)
	if n != 3 {
		t.Fatalf("Read returned %d, want 3", n)
	}
	for i, want := range []float32{0.1, 0.2, 0.3} {
		if out[i] != want {
			t.Fatalf("out[%d] = %f, want %f", i, out[i], want)
		}
	}
}

func TestRingBufferSizesUpToPowerOfTwo(t *testing.T) {
	r := NewRingBuffer(10)
	if r.mask+1 != 16 {
		t.Fatalf("capacity = %d, want 16 (next power of two above 10)", r.mask+1)
	}
}

func TestRingBufferOverrunDropsOldestSamples(t *testing.T) {
	r := NewRingBuffer(4) // capacity rounds to 4
	r.Write([]float32{1, 2, 3, 4, 5, 6})

	out := make([]float32, 4)
	n := r.Read(out)
	if n != 4 {
		t.Fatalf("Read returned %d, want 4", n)
	}
	// Only the most recent 4 writes (3,4,5,6) should have survived the
	// overrun; the oldest two (1,2) were dropped to bound latency.
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %f, want %f (overrun should drop oldest, not newest)", i, out[i], want[i])
		}
	}
}

func TestRingBufferUnderrunFadesTowardSilence(t *testing.T) {
	r := NewRingBuffer(8)
	r.Write([]float32{1.0})

	out := make([]float32, 4)
	n := r.Read(out)
	if n != 1 {
		t.Fatalf("Read returned %d, want 1 (only one sample was written)", n)
	}
	if out[0] != 1.0 {
		t.Fatalf("out[0] = %f, want 1.0", out[0])
	}
	// The held tail should fade monotonically toward zero, never hold flat
	// or jump back up, and never overshoot past the original sample.
	prev := out[0]
	for i := 1; i < len(out); i++ {
		if out[i] >= prev || out[i] < 0 {
			t.Fatalf("out[%d] = %f did not decay monotonically from %f toward 0", i, out[i], prev)
		}
		prev = out[i]
	}
}

func TestRingBufferAvailableTracksUnreadSamples(t *testing.T) {
	r := NewRingBuffer(8)
	if r.Available() != 0 {
		t.Fatalf("Available() on an empty buffer = %d, want 0", r.Available())
	}
	r.Write([]float32{1, 2, 3})
	if r.Available() != 3 {
		t.Fatalf("Available() = %d, want 3", r.Available())
	}
	r.Read(make([]float32, 2))
	if r.Available() != 1 {
		t.Fatalf("Available() after partial read = %d, want 1", r.Available())
	}
}

func TestLowPassFilterSmoothsAStep(t *testing.T) {
	f := NewLowPassFilter(44100, 14000)
	first := f.Process(1.0)
	if first <= 0 || first >= 1.0 {
		t.Fatalf("first output of a step response = %f, want strictly between 0 and 1", first)
	}
	// Subsequent samples of a sustained step should keep climbing toward it.
	second := f.Process(1.0)
	if second <= first || second >= 1.0 {
		t.Fatalf("second output = %f, want between %f and 1.0", second, first)
	}
}

func TestLowPassFilterResetClearsState(t *testing.T) {
	f := NewLowPassFilter(44100, 14000)
	f.Process(1.0)
	f.Process(1.0)
	f.Reset()
	if f.prev != 0 {
		t.Fatalf("prev after Reset = %f, want 0", f.prev)
	}
}

func TestLowPassFilterProcessBatchMatchesSequentialProcess(t *testing.T) {
	a := NewLowPassFilter(44100, 14000)
	b := NewLowPassFilter(44100, 14000)

	samples := []float32{0.5, -0.3, 0.8, 0.1, -0.9}
	batch := make([]float32, len(samples))
	copy(batch, samples)
	a.ProcessBatch(batch)

	for i, s := range samples {
		want := b.Process(s)
		if batch[i] != want {
			t.Fatalf("ProcessBatch[%d] = %f, want %f to match sequential Process", i, batch[i], want)
		}
	}
}

func TestStreamReadProducesInterleavedStereoFrames(t *testing.T) {
	s := NewStream(44100)
	s.Push([]float32{0.5, 0.5, 0.5, 0.5})

	p := make([]byte, 16) // 4 frames * 4 bytes/frame
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if n != 16 {
		t.Fatalf("Read returned %d bytes, want 16", n)
	}
	for i := 0; i < 4; i++ {
		off := i * 4
		if p[off] != p[off+2] || p[off+1] != p[off+3] {
			t.Fatalf("frame %d left/right bytes differ: %v", i, p[off:off+4])
		}
	}
}

func TestStreamReadNeverErrorsOnUnderrun(t *testing.T) {
	s := NewStream(44100)
	p := make([]byte, 64)
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read on an empty stream returned error: %v", err)
	}
	if n != 64 {
		t.Fatalf("Read returned %d bytes, want 64 (underrun is filled, not short)", n)
	}
}

func TestClampBoundsToUnitRange(t *testing.T) {
	if clamp(2.0) != 1.0 {
		t.Fatalf("clamp(2.0) = %f, want 1.0", clamp(2.0))
	}
	if clamp(-2.0) != -1.0 {
		t.Fatalf("clamp(-2.0) = %f, want -1.0", clamp(-2.0))
	}
	if clamp(0.3) != 0.3 {
		t.Fatalf("clamp(0.3) = %f, want 0.3 (in-range values pass through)", clamp(0.3))
	}
}
