package apu

import "testing"

func TestNoiseLFSRSeedsToOneAndNeverZero(t *testing.T) {
	a := New()
	if a.noise.shiftRegister != 1 {
		t.Fatalf("noise LFSR seed = %d, want 1", a.noise.shiftRegister)
	}
	a.channelEnable[3] = true
	for i := 0; i < 100000; i++ {
		a.stepNoiseTimer(&a.noise)
		if a.noise.shiftRegister == 0 {
			t.Fatal("noise LFSR reached 0, which the real hardware's recurrence cannot produce")
		}
	}
}

func TestMixerOutputSpansFullRange(t *testing.T) {
	a := New()
	silent := a.mixChannels(0, 0, 0, 0, 0)
	if silent != -1 {
		t.Fatalf("mixChannels(all zero) = %f, want -1", silent)
	}
	loud := a.mixChannels(15, 15, 15, 15, 127)
	if loud <= 0.5 || loud > 1.01 {
		t.Fatalf("mixChannels(max inputs) = %f, want a value near the top of [-1, 1]", loud)
	}
}

func TestPulseAndNoiseTimersClockAtHalfRate(t *testing.T) {
	a := New()
	a.channelEnable[0] = true
	a.pulse1.timer = 1
	a.pulse1.lengthCounter = 10

	before := a.pulse1.sequencerPos
	for i := 0; i < 2; i++ {
		a.Step()
	}
	// Two full APU.Step calls = one pulse-timer clock (half rate), so the
	// sequencer should have advanced by at most one position, never two.
	advanced := (a.pulse1.sequencerPos - before) & 0x07
	if advanced > 1 {
		t.Fatalf("pulse sequencer advanced %d positions in 2 CPU cycles, want at most 1 (half-rate clocking)", advanced)
	}
}

func TestPulseSweepMutesBelowMinimumPeriod(t *testing.T) {
	a := New()
	pulse := &a.pulse1
	pulse.timer = 5 // below the 8-period mute floor
	pulse.sweepEnable = true
	pulse.sweepShift = 1
	pulse.sweepCounter = 0

	a.clockPulseSweep(pulse, true)
	if pulse.timer != 5 {
		t.Fatalf("sweep wrote back to a muted (period<8) channel: timer = %d, want unchanged 5", pulse.timer)
	}
}

func TestPulseSweepWritesBackWhenUnmuted(t *testing.T) {
	a := New()
	pulse := &a.pulse1
	pulse.timer = 100
	pulse.sweepEnable = true
	pulse.sweepShift = 1
	pulse.sweepNegate = false
	pulse.sweepCounter = 0

	a.clockPulseSweep(pulse, true)
	want := uint16(100 + 100>>1)
	if pulse.timer != want {
		t.Fatalf("sweep timer = %d, want %d", pulse.timer, want)
	}
}

func TestDMCStallRequestsFourCycles(t *testing.T) {
	a := New()
	mem := make([]uint8, 0x10000)
	mem[0x8000] = 0xAA
	a.SetDMCReader(func(addr uint16) uint8 { return mem[addr] })

	a.dmc.rateIndex = 0
	a.dmc.currentAddress = 0x8000
	a.dmc.bytesRemaining = 2
	a.dmc.sampleBufferEmpty = true
	a.channelEnable[4] = true

	a.stepDMCTimer(&a.dmc) // timerCounter starts at 0, so this call fetches immediately

	if a.TakeDMCStall() != 4 {
		t.Fatal("a completed DMC sample fetch should request a 4-cycle CPU stall")
	}
	if a.dmc.sampleBufferEmpty {
		t.Fatal("DMC sample buffer should have been loaded from the CPU bus")
	}
	if a.dmc.currentAddress != 0x8001 {
		t.Fatalf("DMC current address after one fetch = %#04x, want 0x8001", a.dmc.currentAddress)
	}
}

func TestDMCAddressWrapsFromFFFFToAddr8000(t *testing.T) {
	a := New()
	a.SetDMCReader(func(addr uint16) uint8 { return 0 })
	a.dmc.rateIndex = 0
	a.dmc.currentAddress = 0xFFFF
	a.dmc.bytesRemaining = 1
	a.dmc.sampleBufferEmpty = true
	a.channelEnable[4] = true

	a.stepDMCTimer(&a.dmc)
	if a.dmc.currentAddress != 0x8000 {
		t.Fatalf("DMC address after fetch at $FFFF = %#04x, want 0x8000", a.dmc.currentAddress)
	}
}

func TestFrameSequencer4StepAssertsIRQ(t *testing.T) {
	a := New()
	a.frameMode = false
	a.frameIRQEnable = true
	for i := 0; i < 29830; i++ {
		a.stepFrameCounter()
	}
	if !a.GetFrameIRQ() {
		t.Fatal("4-step frame sequencer should assert IRQ on its last step")
	}
}

func TestFrameSequencer5StepNeverAssertsIRQ(t *testing.T) {
	a := New()
	a.frameMode = true
	a.frameIRQEnable = true
	for i := 0; i < 37281*2; i++ {
		a.stepFrameCounter()
	}
	if a.GetFrameIRQ() {
		t.Fatal("5-step frame sequencer must never assert frame IRQ")
	}
}

func TestChannelEnableClearsLengthCounters(t *testing.T) {
	a := New()
	a.pulse1.lengthCounter = 20
	a.writeChannelEnable(0x00)
	if a.pulse1.lengthCounter != 0 {
		t.Fatalf("clearing a channel's enable bit should zero its length counter, got %d", a.pulse1.lengthCounter)
	}
}
