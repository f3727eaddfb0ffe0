// Package bus wires the CPU, PPU, APU, cartridge and input system together
// and drives them at the NES's true tri-clock rate: one CPU cycle for every
// three PPU cycles, with the APU clocked alongside the CPU.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// oamDMA models the 2A03's OAM DMA stall: one halt cycle, one more if DMA
// starts on an odd CPU cycle, then 256 read/write pairs (512 cycles).
type oamDMA struct {
	active    bool
	page      uint8
	byteIndex uint8
	readPhase bool
	buffer    uint8

	haltRemaining  uint8
	alignRemaining uint8
}

// Bus connects every NES component and owns the master clock.
type Bus struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Input     *input.InputState
	Cartridge *cartridge.Cartridge

	cpuCycles  uint64
	frameCount uint64
	ppuPhase   uint8

	dma      oamDMA
	dmcStall uint8
}

// New creates a bus with no cartridge loaded. LoadCartridge must be called
// before Clock/Run/Frame are used.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(b.CPU.NMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.PPU.SetScanlineCallback(b.handleScanlineIRQ)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.APU.SetDMCReader(b.Memory.Read)

	b.Reset()
	return b
}

// Reset resets every component and the master clock.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	if b.Cartridge != nil {
		b.Cartridge.Reset()
	}

	b.cpuCycles = 0
	b.frameCount = 0
	b.ppuPhase = 0
	b.dma = oamDMA{}
	b.dmcStall = 0
	b.PPU.SetFrameCount(0)
}

func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// handleScanlineIRQ forwards the PPU's once-per-visible-scanline signal to
// the cartridge's scanline-counting IRQ mappers (MMC3, MMC5).
func (b *Bus) handleScanlineIRQ() {
	if b.Cartridge != nil {
		b.Cartridge.OnScanline()
	}
}

// LoadCartridge installs cart and rebuilds the memory decoders and CPU
// around it, then resets the system.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.Cartridge = cart

	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU = cpu.New(b.Memory)
	b.PPU.SetNMICallback(b.CPU.NMI)
	b.PPU.SetScanlineCallback(b.handleScanlineIRQ)
	b.APU.SetDMCReader(b.Memory.Read)

	ppuMemory := memory.NewPPUMemory(cart)
	b.PPU.SetMemory(ppuMemory)

	b.Reset()
}

// Clock advances the system by one master (PPU) cycle: the PPU runs on
// every call, while the CPU, APU, OAM DMA and mapper cycle hook only run on
// every third call, matching the NES's 3:1 PPU:CPU clock ratio.
func (b *Bus) Clock() {
	b.PPU.Step()

	b.ppuPhase++
	if b.ppuPhase < 3 {
		return
	}
	b.ppuPhase = 0

	b.APU.Step()
	if s := b.APU.TakeDMCStall(); s > b.dmcStall {
		b.dmcStall = s
	}

	switch {
	case b.dma.active:
		b.stepDMA()
	case b.dmcStall > 0:
		b.dmcStall--
	default:
		b.CPU.Clock()
	}

	if b.Cartridge != nil {
		b.Cartridge.OnCPUCycle()
		b.CPU.SetIRQLine(b.Cartridge.IRQState() || b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ())
	} else {
		b.CPU.SetIRQLine(b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ())
	}

	b.cpuCycles++
}

func (b *Bus) stepDMA() {
	d := &b.dma
	switch {
	case d.haltRemaining > 0:
		d.haltRemaining--
	case d.alignRemaining > 0:
		d.alignRemaining--
	case d.readPhase:
		addr := uint16(d.page)<<8 | uint16(d.byteIndex)
		d.buffer = b.Memory.Read(addr)
		d.readPhase = false
	default:
		b.PPU.WriteOAM(d.byteIndex, d.buffer)
		d.readPhase = true
		d.byteIndex++
		if d.byteIndex == 0 {
			d.active = false
		}
	}
}

// TriggerOAMDMA starts a 513/514-cycle OAM DMA transfer from the given CPU
// page. A transfer already in flight is left to finish untouched.
func (b *Bus) TriggerOAMDMA(page uint8) {
	if b.dma.active {
		return
	}
	b.dma.active = true
	b.dma.page = page
	b.dma.byteIndex = 0
	b.dma.readPhase = true
	b.dma.haltRemaining = 1
	if b.cpuCycles%2 == 1 {
		b.dma.alignRemaining = 1
	} else {
		b.dma.alignRemaining = 0
	}
}

// Frame runs the bus until one more frame has completed.
func (b *Bus) Frame() {
	target := b.frameCount + 1
	for b.frameCount < target {
		b.Clock()
	}
}

// Run runs the bus for the given number of frames.
func (b *Bus) Run(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Clock()
	}
}

// RunCycles runs the bus for the given number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		b.Clock()
	}
}

// GetFrameBuffer returns the current PPU frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	fb := b.PPU.GetFrameBuffer()
	return fb[:]
}

// GetAudioSamples returns and drains the APU's pending sample buffer.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the APU's output sample rate.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

func (b *Bus) GetCycleCount() uint64 { return b.cpuCycles }
func (b *Bus) GetFrameCount() uint64 { return b.frameCount }
func (b *Bus) IsDMAInProgress() bool { return b.dma.active }

// SetControllerButton sets a single button's state on the given controller.
// Controller 1 accepts both 0 and 1 (historical call sites use either).
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states on the given controller
// at once. Controller 1 accepts both 0 and 1.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the input state for direct access.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// EnableInputDebug toggles verbose logging of controller button edges.
func (b *Bus) EnableInputDebug(enable bool) {
	b.Input.EnableDebug(enable)
}

// CPUState is a snapshot of CPU registers and flags, used by tests and
// debug front ends.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

type CPUFlags struct {
	N, V, D, I, Z, C bool
}

func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// PPUState is a snapshot of PPU timing state used by tests and debug front
// ends.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.PPU.IsRenderingEnabled(),
	}
}
