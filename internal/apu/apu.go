// Package apu implements the NES Audio Processing Unit (2A03): two pulse
// channels, a triangle, noise, the DMC sample player, the 240Hz frame
// sequencer, and the nonlinear mixer that combines them into one sample.
package apu

// APU is the 2A03's five audio channels plus frame sequencer, clocked once
// per CPU cycle by Step.
type APU struct {
	pulse1   PulseChannel
	pulse2   PulseChannel
	triangle TriangleChannel
	noise    NoiseChannel
	dmc      DMCChannel

	frameCounter     uint16
	frameMode        bool // false = 4-step, true = 5-step
	frameIRQEnable   bool
	frameCounterStep uint8
	frameIRQFlag     bool

	channelEnable [5]bool // pulse1, pulse2, triangle, noise, dmc

	halfClockToggle bool // pulse/noise timers clock on alternate CPU cycles

	sampleBuffer     []float32
	sampleRate       int
	cpuFrequency     float64
	cycleAccumulator float64

	// dmcRead performs a CPU-bus read for DMC sample fetches; wired by the
	// bus to its Memory.Read. dmcStallPending is the coarse CPU stall (in
	// CPU cycles) the bus must apply after a fetch — §4.3 permits modeling
	// the real 1-4 cycle stall as a flat worst-case figure.
	dmcRead         func(addr uint16) uint8
	dmcStallPending uint8

	cycles uint64
}

// PulseChannel is one of the 2A03's two square-wave channels: duty
// sequencer, length counter, envelope, and sweep unit.
type PulseChannel struct {
	dutyCycle       uint8
	envelopeLoop    bool
	envelopeDisable bool
	volume          uint8

	sweepEnable  bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepReload  bool
	sweepCounter uint8

	timer        uint16
	timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	dutyIndex    uint8
	sequencerPos uint8
}

// TriangleChannel is the 32-step triangle wave channel.
type TriangleChannel struct {
	lengthCounterHalt bool
	linearCounterLoad uint8

	timer        uint16
	timerCounter uint16

	lengthCounter uint8

	linearCounter       uint8
	linearCounterReload bool

	sequencerPos uint8
}

// NoiseChannel is the pseudo-random noise channel driven by a 15-bit LFSR.
type NoiseChannel struct {
	envelopeLoop    bool
	envelopeDisable bool
	volume          uint8

	mode        bool // false = mode 0 (bit-1 tap, long sequence), true = mode 1 (bit-6 tap, 93-step sequence)
	periodIndex uint8

	timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	shiftRegister uint16
}

// DMCChannel plays delta-modulated PCM samples fetched directly from the
// CPU bus, independent of the length-counter/envelope machinery the other
// channels share.
type DMCChannel struct {
	irqEnable bool
	loop      bool
	rateIndex uint8

	outputLevel uint8

	sampleAddress uint16
	sampleLength  uint16

	timerCounter      uint16
	sampleBuffer      uint8
	sampleBufferBits  uint8
	sampleBufferEmpty bool
	bytesRemaining    uint16
	currentAddress    uint16

	irqFlag bool
}

// New creates an APU with the noise LFSR seeded to 1 (its documented
// power-on value — it must never reach 0) and the frame sequencer in
// 4-step mode with IRQ enabled.
func New() *APU {
	apu := &APU{
		sampleBuffer:   make([]float32, 0, 4096),
		sampleRate:     44100,
		cpuFrequency:   1789773.0, // NTSC 2A03 clock
		frameIRQEnable: true,
	}
	apu.noise.shiftRegister = 1
	return apu
}

// SetDMCReader wires the DMC channel's sample fetch to the CPU bus.
func (apu *APU) SetDMCReader(read func(addr uint16) uint8) {
	apu.dmcRead = read
}

// TakeDMCStall returns and clears the CPU stall (in cycles) requested by
// the most recent DMC sample fetch, for the bus to apply to the CPU.
func (apu *APU) TakeDMCStall() uint8 {
	s := apu.dmcStallPending
	apu.dmcStallPending = 0
	return s
}

// Reset returns every channel, the frame sequencer, and the sample buffer
// to power-on state.
func (apu *APU) Reset() {
	apu.pulse1 = PulseChannel{}
	apu.pulse2 = PulseChannel{}
	apu.triangle = TriangleChannel{}
	apu.noise = NoiseChannel{shiftRegister: 1}
	apu.dmc = DMCChannel{sampleBufferEmpty: true}

	apu.frameCounter = 0
	apu.frameCounterStep = 0
	apu.frameMode = false
	apu.frameIRQEnable = true
	apu.frameIRQFlag = false
	apu.halfClockToggle = false

	for i := range apu.channelEnable {
		apu.channelEnable[i] = false
	}

	apu.cycles = 0
	apu.cycleAccumulator = 0
	apu.dmcStallPending = 0
	apu.sampleBuffer = apu.sampleBuffer[:0]
}

// Step advances every enabled channel's timer by one CPU cycle, clocks the
// frame sequencer, and appends a mixed sample whenever the fractional
// sample-rate accumulator rolls over.
func (apu *APU) Step() {
	apu.cycles++

	apu.stepFrameCounter()
	apu.stepChannelTimers()
	apu.halfClockToggle = !apu.halfClockToggle

	apu.generateSample()
}

// stepFrameCounter runs the 240Hz sequence in CPU-cycle units (§4.3): the
// 4-step mode asserts frame IRQ on its last step unless inhibited, the
// 5-step mode never does and has no half-frame clock on step 4.
func (apu *APU) stepFrameCounter() {
	apu.frameCounter++

	if apu.frameMode {
		switch apu.frameCounter {
		case 7457:
			apu.clockEnvelopeAndLinear()
		case 14913:
			apu.clockEnvelopeAndLinear()
			apu.clockLengthAndSweep()
		case 22371:
			apu.clockEnvelopeAndLinear()
		case 37281:
			apu.clockEnvelopeAndLinear()
			apu.clockLengthAndSweep()
			apu.frameCounter = 0
			apu.frameCounterStep = 0
		}
		return
	}

	switch apu.frameCounter {
	case 7457:
		apu.clockEnvelopeAndLinear()
	case 14913:
		apu.clockEnvelopeAndLinear()
		apu.clockLengthAndSweep()
	case 22371:
		apu.clockEnvelopeAndLinear()
	case 29829:
		apu.clockEnvelopeAndLinear()
		apu.clockLengthAndSweep()
	case 29830:
		if apu.frameIRQEnable {
			apu.frameIRQFlag = true
		}
		apu.frameCounter = 0
		apu.frameCounterStep = 0
	}
}

func (apu *APU) clockEnvelopeAndLinear() {
	apu.clockPulseEnvelope(&apu.pulse1)
	apu.clockPulseEnvelope(&apu.pulse2)
	apu.clockNoiseEnvelope(&apu.noise)
	apu.clockTriangleLinear(&apu.triangle)
}

func (apu *APU) clockLengthAndSweep() {
	apu.clockPulseLength(&apu.pulse1)
	apu.clockPulseSweep(&apu.pulse1, true)
	apu.clockPulseLength(&apu.pulse2)
	apu.clockPulseSweep(&apu.pulse2, false)
	apu.clockTriangleLength(&apu.triangle)
	apu.clockNoiseLength(&apu.noise)
}

// stepChannelTimers clocks the triangle and DMC every CPU cycle, and the
// pulse/noise timers on alternate cycles per §4.3.
func (apu *APU) stepChannelTimers() {
	if apu.channelEnable[2] {
		apu.stepTriangleTimer(&apu.triangle)
	}
	if apu.channelEnable[4] {
		apu.stepDMCTimer(&apu.dmc)
	}
	if !apu.halfClockToggle {
		return
	}
	if apu.channelEnable[0] {
		apu.stepPulseTimer(&apu.pulse1)
	}
	if apu.channelEnable[1] {
		apu.stepPulseTimer(&apu.pulse2)
	}
	if apu.channelEnable[3] {
		apu.stepNoiseTimer(&apu.noise)
	}
}

// generateSample converts from the CPU clock to the configured output
// sample rate via a fractional accumulator, mixing and appending one
// sample whenever it rolls over.
func (apu *APU) generateSample() {
	apu.cycleAccumulator += float64(apu.sampleRate) / apu.cpuFrequency
	if apu.cycleAccumulator < 1.0 {
		return
	}
	apu.cycleAccumulator -= 1.0

	p1 := apu.getPulseOutput(&apu.pulse1)
	p2 := apu.getPulseOutput(&apu.pulse2)
	tri := apu.getTriangleOutput(&apu.triangle)
	noise := apu.getNoiseOutput(&apu.noise)
	dmc := apu.getDMCOutput(&apu.dmc)

	apu.sampleBuffer = append(apu.sampleBuffer, apu.mixChannels(p1, p2, tri, noise, dmc))
}

// WriteRegister dispatches a CPU write to one of $4000-$4013/$4015/$4017.
func (apu *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000:
		apu.writePulseControl(&apu.pulse1, value)
	case 0x4001:
		apu.writePulseSweep(&apu.pulse1, value)
	case 0x4002:
		apu.writePulseTimerLow(&apu.pulse1, value)
	case 0x4003:
		apu.writePulseTimerHigh(&apu.pulse1, value)
	case 0x4004:
		apu.writePulseControl(&apu.pulse2, value)
	case 0x4005:
		apu.writePulseSweep(&apu.pulse2, value)
	case 0x4006:
		apu.writePulseTimerLow(&apu.pulse2, value)
	case 0x4007:
		apu.writePulseTimerHigh(&apu.pulse2, value)
	case 0x4008:
		apu.writeTriangleControl(value)
	case 0x400A:
		apu.writeTriangleTimerLow(value)
	case 0x400B:
		apu.writeTriangleTimerHigh(value)
	case 0x400C:
		apu.writeNoiseControl(value)
	case 0x400E:
		apu.writeNoisePeriod(value)
	case 0x400F:
		apu.writeNoiseLength(value)
	case 0x4010:
		apu.writeDMCControl(value)
	case 0x4011:
		apu.writeDMCDirectLoad(value)
	case 0x4012:
		apu.writeDMCSampleAddress(value)
	case 0x4013:
		apu.writeDMCSampleLength(value)
	case 0x4015:
		apu.writeChannelEnable(value)
	case 0x4017:
		apu.writeFrameCounter(value)
	}
}

// GetSamples drains and returns every sample produced since the last call.
func (apu *APU) GetSamples() []float32 {
	samples := make([]float32, len(apu.sampleBuffer))
	copy(samples, apu.sampleBuffer)
	apu.sampleBuffer = apu.sampleBuffer[:0]
	return samples
}

// ReadStatus services a CPU read of $4015: per-channel length-counter-
// nonzero bits plus both IRQ flags. Reading clears the frame IRQ flag.
func (apu *APU) ReadStatus() uint8 {
	var status uint8
	if apu.pulse1.lengthCounter > 0 {
		status |= 0x01
	}
	if apu.pulse2.lengthCounter > 0 {
		status |= 0x02
	}
	if apu.triangle.lengthCounter > 0 {
		status |= 0x04
	}
	if apu.noise.lengthCounter > 0 {
		status |= 0x08
	}
	if apu.dmc.bytesRemaining > 0 {
		status |= 0x10
	}
	if apu.frameIRQFlag {
		status |= 0x40
	}
	if apu.dmc.irqFlag {
		status |= 0x80
	}

	apu.frameIRQFlag = false
	return status
}

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6,
	160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 8, 48, 6, 96, 4,
	192, 2, 72, 16, 28, 32, 52, 2,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160,
	202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214,
	190, 160, 142, 128, 106, 84, 72, 54,
}

func (apu *APU) writePulseControl(pulse *PulseChannel, value uint8) {
	pulse.dutyCycle = (value >> 6) & 0x03
	pulse.envelopeLoop = value&0x20 != 0
	pulse.lengthHalt = pulse.envelopeLoop
	pulse.envelopeDisable = value&0x10 != 0
	pulse.volume = value & 0x0F
	pulse.envelopeStart = true
}

func (apu *APU) writePulseSweep(pulse *PulseChannel, value uint8) {
	pulse.sweepEnable = value&0x80 != 0
	pulse.sweepPeriod = (value >> 4) & 0x07
	pulse.sweepNegate = value&0x08 != 0
	pulse.sweepShift = value & 0x07
	pulse.sweepReload = true
}

func (apu *APU) writePulseTimerLow(pulse *PulseChannel, value uint8) {
	pulse.timer = (pulse.timer & 0xFF00) | uint16(value)
}

func (apu *APU) writePulseTimerHigh(pulse *PulseChannel, value uint8) {
	pulse.timer = (pulse.timer & 0x00FF) | (uint16(value&0x07) << 8)
	pulse.lengthCounter = lengthTable[(value>>3)&0x1F]
	pulse.envelopeStart = true
	pulse.dutyIndex = 0
}

func (apu *APU) stepPulseTimer(pulse *PulseChannel) {
	if pulse.timerCounter == 0 {
		pulse.timerCounter = pulse.timer
		pulse.sequencerPos = (pulse.sequencerPos + 1) & 0x07
	} else {
		pulse.timerCounter--
	}
}

func (apu *APU) clockPulseEnvelope(pulse *PulseChannel) {
	if pulse.envelopeStart {
		pulse.envelopeStart = false
		pulse.envelopeCounter = 15
		pulse.envelopeDivider = pulse.volume
	} else if pulse.envelopeDivider == 0 {
		pulse.envelopeDivider = pulse.volume
		if pulse.envelopeCounter > 0 {
			pulse.envelopeCounter--
		} else if pulse.envelopeLoop {
			pulse.envelopeCounter = 15
		}
	} else {
		pulse.envelopeDivider--
	}
}

func (apu *APU) clockPulseLength(pulse *PulseChannel) {
	if !pulse.lengthHalt && pulse.lengthCounter > 0 {
		pulse.lengthCounter--
	}
}

// pulseSweepTarget computes the swept target period per §4.3: pulse 1
// negates with one's complement (an extra -1), pulse 2 with two's
// complement.
func pulseSweepTarget(pulse *PulseChannel, isPulse1 bool) uint16 {
	change := pulse.timer >> pulse.sweepShift
	if !pulse.sweepNegate {
		return pulse.timer + change
	}
	if isPulse1 {
		if change+1 > pulse.timer {
			return 0
		}
		return pulse.timer - change - 1
	}
	if change > pulse.timer {
		return 0
	}
	return pulse.timer - change
}

func pulseSweepMuted(pulse *PulseChannel, target uint16) bool {
	return pulse.timer < 8 || target > 0x7FF
}

// clockPulseSweep clocks the sweep divider; the target period is only
// written back when the channel isn't muted and the shift is nonzero.
func (apu *APU) clockPulseSweep(pulse *PulseChannel, isPulse1 bool) {
	target := pulseSweepTarget(pulse, isPulse1)
	if pulse.sweepCounter == 0 && pulse.sweepEnable && pulse.sweepShift > 0 && !pulseSweepMuted(pulse, target) {
		pulse.timer = target
	}

	if pulse.sweepCounter == 0 || pulse.sweepReload {
		pulse.sweepCounter = pulse.sweepPeriod
		pulse.sweepReload = false
	} else {
		pulse.sweepCounter--
	}
}

func (apu *APU) getPulseOutput(pulse *PulseChannel) uint8 {
	if pulse.lengthCounter == 0 || pulse.timer < 8 || pulse.timer > 0x7FF {
		return 0
	}
	if dutyTable[pulse.dutyCycle][pulse.sequencerPos] == 0 {
		return 0
	}
	if pulse.envelopeDisable {
		return pulse.volume
	}
	return pulse.envelopeCounter
}

func (apu *APU) writeTriangleControl(value uint8) {
	apu.triangle.lengthCounterHalt = value&0x80 != 0
	apu.triangle.linearCounterLoad = value & 0x7F
}

func (apu *APU) writeTriangleTimerLow(value uint8) {
	apu.triangle.timer = (apu.triangle.timer & 0xFF00) | uint16(value)
}

func (apu *APU) writeTriangleTimerHigh(value uint8) {
	apu.triangle.timer = (apu.triangle.timer & 0x00FF) | (uint16(value&0x07) << 8)
	apu.triangle.lengthCounter = lengthTable[(value>>3)&0x1F]
	apu.triangle.linearCounterReload = true
}

func (apu *APU) stepTriangleTimer(triangle *TriangleChannel) {
	if triangle.timerCounter == 0 {
		triangle.timerCounter = triangle.timer
		if triangle.lengthCounter > 0 && triangle.linearCounter > 0 {
			triangle.sequencerPos = (triangle.sequencerPos + 1) & 0x1F
		}
	} else {
		triangle.timerCounter--
	}
}

func (apu *APU) clockTriangleLinear(triangle *TriangleChannel) {
	if triangle.linearCounterReload {
		triangle.linearCounter = triangle.linearCounterLoad
	} else if triangle.linearCounter > 0 {
		triangle.linearCounter--
	}
	if !triangle.lengthCounterHalt {
		triangle.linearCounterReload = false
	}
}

func (apu *APU) clockTriangleLength(triangle *TriangleChannel) {
	if !triangle.lengthCounterHalt && triangle.lengthCounter > 0 {
		triangle.lengthCounter--
	}
}

func (apu *APU) getTriangleOutput(triangle *TriangleChannel) uint8 {
	if triangle.lengthCounter == 0 || triangle.linearCounter == 0 {
		return 0
	}
	return triangleTable[triangle.sequencerPos]
}

func (apu *APU) writeNoiseControl(value uint8) {
	apu.noise.envelopeLoop = value&0x20 != 0
	apu.noise.lengthHalt = apu.noise.envelopeLoop
	apu.noise.envelopeDisable = value&0x10 != 0
	apu.noise.volume = value & 0x0F
	apu.noise.envelopeStart = true
}

func (apu *APU) writeNoisePeriod(value uint8) {
	apu.noise.mode = value&0x80 != 0
	apu.noise.periodIndex = value & 0x0F
}

func (apu *APU) writeNoiseLength(value uint8) {
	apu.noise.lengthCounter = lengthTable[(value>>3)&0x1F]
	apu.noise.envelopeStart = true
}

// stepNoiseTimer shifts the 15-bit LFSR right on timer expiry; the
// feedback tap is bit0^bit1 in mode 0 and bit0^bit6 in mode 1, written
// into bit 14. The register is seeded to 1 and this recurrence can never
// produce an all-zero state.
func (apu *APU) stepNoiseTimer(noise *NoiseChannel) {
	if noise.timerCounter != 0 {
		noise.timerCounter--
		return
	}
	noise.timerCounter = noisePeriodTable[noise.periodIndex]

	feedback := noise.shiftRegister & 0x01
	if noise.mode {
		feedback ^= (noise.shiftRegister >> 6) & 0x01
	} else {
		feedback ^= (noise.shiftRegister >> 1) & 0x01
	}
	noise.shiftRegister = (noise.shiftRegister >> 1) | (feedback << 14)
}

func (apu *APU) clockNoiseEnvelope(noise *NoiseChannel) {
	if noise.envelopeStart {
		noise.envelopeStart = false
		noise.envelopeCounter = 15
		noise.envelopeDivider = noise.volume
	} else if noise.envelopeDivider == 0 {
		noise.envelopeDivider = noise.volume
		if noise.envelopeCounter > 0 {
			noise.envelopeCounter--
		} else if noise.envelopeLoop {
			noise.envelopeCounter = 15
		}
	} else {
		noise.envelopeDivider--
	}
}

func (apu *APU) clockNoiseLength(noise *NoiseChannel) {
	if !noise.lengthHalt && noise.lengthCounter > 0 {
		noise.lengthCounter--
	}
}

func (apu *APU) getNoiseOutput(noise *NoiseChannel) uint8 {
	if noise.lengthCounter == 0 || noise.shiftRegister&0x01 != 0 {
		return 0
	}
	if noise.envelopeDisable {
		return noise.volume
	}
	return noise.envelopeCounter
}

func (apu *APU) writeDMCControl(value uint8) {
	apu.dmc.irqEnable = value&0x80 != 0
	apu.dmc.loop = value&0x40 != 0
	apu.dmc.rateIndex = value & 0x0F
	if !apu.dmc.irqEnable {
		apu.dmc.irqFlag = false
	}
}

func (apu *APU) writeDMCDirectLoad(value uint8) {
	apu.dmc.outputLevel = value & 0x7F
}

func (apu *APU) writeDMCSampleAddress(value uint8) {
	apu.dmc.sampleAddress = 0xC000 + uint16(value)<<6
}

func (apu *APU) writeDMCSampleLength(value uint8) {
	apu.dmc.sampleLength = uint16(value)<<4 + 1
}

// stepDMCTimer clocks the output unit and, when the sample buffer has run
// dry, performs the CPU-bus fetch described in §4.3: address wraps from
// $FFFF to $8000, and a 4-cycle CPU stall is requested for the bus to
// apply (modeling the real 1-4 cycle stall as the documented worst case).
func (apu *APU) stepDMCTimer(dmc *DMCChannel) {
	if dmc.timerCounter != 0 {
		dmc.timerCounter--
		return
	}
	dmc.timerCounter = dmcRateTable[dmc.rateIndex]

	if dmc.sampleBufferEmpty && dmc.bytesRemaining > 0 && apu.dmcRead != nil {
		apu.dmcStallPending = 4
		dmc.sampleBuffer = apu.dmcRead(dmc.currentAddress)
		dmc.sampleBufferBits = 8
		dmc.sampleBufferEmpty = false
		dmc.bytesRemaining--
		if dmc.currentAddress == 0xFFFF {
			dmc.currentAddress = 0x8000
		} else {
			dmc.currentAddress++
		}

		if dmc.bytesRemaining == 0 {
			if dmc.loop {
				dmc.currentAddress = dmc.sampleAddress
				dmc.bytesRemaining = dmc.sampleLength
			} else if dmc.irqEnable {
				dmc.irqFlag = true
			}
		}
	}

	if dmc.sampleBufferEmpty {
		return
	}

	if dmc.sampleBuffer&0x01 != 0 {
		if dmc.outputLevel <= 125 {
			dmc.outputLevel += 2
		}
	} else if dmc.outputLevel >= 2 {
		dmc.outputLevel -= 2
	}

	dmc.sampleBuffer >>= 1
	dmc.sampleBufferBits--
	if dmc.sampleBufferBits == 0 {
		dmc.sampleBufferEmpty = true
	}
}

func (apu *APU) getDMCOutput(dmc *DMCChannel) uint8 {
	return dmc.outputLevel
}

// writeChannelEnable services $4015 writes: each bit enables one channel,
// and clearing a bit force-zeroes that channel's length counter (DMC's
// byte counter restarts from its sample registers when (re)enabled).
func (apu *APU) writeChannelEnable(value uint8) {
	apu.channelEnable[0] = value&0x01 != 0
	apu.channelEnable[1] = value&0x02 != 0
	apu.channelEnable[2] = value&0x04 != 0
	apu.channelEnable[3] = value&0x08 != 0
	apu.channelEnable[4] = value&0x10 != 0

	if !apu.channelEnable[0] {
		apu.pulse1.lengthCounter = 0
	}
	if !apu.channelEnable[1] {
		apu.pulse2.lengthCounter = 0
	}
	if !apu.channelEnable[2] {
		apu.triangle.lengthCounter = 0
	}
	if !apu.channelEnable[3] {
		apu.noise.lengthCounter = 0
	}
	if !apu.channelEnable[4] {
		apu.dmc.bytesRemaining = 0
	} else if apu.dmc.bytesRemaining == 0 {
		apu.dmc.currentAddress = apu.dmc.sampleAddress
		apu.dmc.bytesRemaining = apu.dmc.sampleLength
	}

	apu.dmc.irqFlag = false
}

// writeFrameCounter services $4017: the sequence restarts immediately,
// and mode 1 (5-step) performs an immediate quarter+half clock.
func (apu *APU) writeFrameCounter(value uint8) {
	apu.frameMode = value&0x80 != 0
	apu.frameIRQEnable = value&0x40 == 0
	if !apu.frameIRQEnable {
		apu.frameIRQFlag = false
	}

	apu.frameCounter = 0
	apu.frameCounterStep = 0

	if apu.frameMode {
		apu.clockEnvelopeAndLinear()
		apu.clockLengthAndSweep()
	}
}

// mixChannels applies the documented nonlinear mixer (§4.3) and maps its
// [0, ~1.0] output range onto [-1, 1].
func (apu *APU) mixChannels(pulse1, pulse2, triangle, noise, dmc uint8) float32 {
	var pulseOut float64
	if pulseSum := float64(pulse1) + float64(pulse2); pulseSum != 0 {
		pulseOut = 95.88 / (8128.0/pulseSum + 100.0)
	}

	var tndOut float64
	if tndSum := float64(triangle)/8227.0 + float64(noise)/12241.0 + float64(dmc)/22638.0; tndSum != 0 {
		tndOut = 159.79 / (1.0/tndSum + 100.0)
	}

	return float32((pulseOut+tndOut)*2.0 - 1.0)
}

func (apu *APU) GetFrameIRQ() bool { return apu.frameIRQFlag }
func (apu *APU) GetDMCIRQ() bool   { return apu.dmc.irqFlag }

// SetSampleRate changes the target output sample rate, resetting the
// fractional accumulator so the next sample isn't skewed by the old rate.
func (apu *APU) SetSampleRate(rate int) {
	apu.sampleRate = rate
	apu.cycleAccumulator = 0
}

func (apu *APU) GetSampleRate() int { return apu.sampleRate }

// GetChannelOutput returns one channel's current output level, for VU
// meters or per-channel mute front ends.
func (apu *APU) GetChannelOutput(channel int) uint8 {
	if !apu.channelEnable[channel] {
		return 0
	}
	switch channel {
	case 0:
		return apu.getPulseOutput(&apu.pulse1)
	case 1:
		return apu.getPulseOutput(&apu.pulse2)
	case 2:
		return apu.getTriangleOutput(&apu.triangle)
	case 3:
		return apu.getNoiseOutput(&apu.noise)
	case 4:
		return apu.getDMCOutput(&apu.dmc)
	default:
		return 0
	}
}

func (apu *APU) IsChannelEnabled(channel int) bool {
	if channel < 0 || channel >= len(apu.channelEnable) {
		return false
	}
	return apu.channelEnable[channel]
}
