// Package cpu implements the 2A03's 6502-family core: a cycle-accurate
// Clock() driven by an internal cycles-remaining countdown, full official
// opcode coverage, and undocumented opcodes folded to 1-byte, 2-cycle NOPs.
package cpu

// Bus is the memory collaborator the CPU reads and writes through. The NES
// Bus implements this by dispatching to RAM, PPU/APU registers, and the
// cartridge.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// AddressingMode names one of the 6502's addressing modes.
type AddressingMode uint8

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect
	IndirectIndexed
)

const (
	flagC uint8 = 1 << 0
	flagZ uint8 = 1 << 1
	flagI uint8 = 1 << 2
	flagD uint8 = 1 << 3
	flagB uint8 = 1 << 4
	flagU uint8 = 1 << 5 // unused, always pushed as 1
	flagV uint8 = 1 << 6
	flagN uint8 = 1 << 7
)

const (
	stackBase    = 0x0100
	nmiVector    = 0xFFFA
	resetVector  = 0xFFFC
	irqVector    = 0xFFFE
)

type instruction struct {
	name    string
	mode    AddressingMode
	cycles  uint8
	execute func(c *CPU)
}

// CPU is a 6502-family core without decimal-mode arithmetic (the 2A03
// omits the BCD adjust hardware but keeps the D flag as inert state).
type CPU struct {
	A, X, Y, SP uint8
	PC          uint16

	C, Z, I, D, V, N bool

	bus Bus

	instructions [256]instruction

	cyclesRemaining uint8
	totalCycles     uint64

	// Decode scratch, valid only while executing the current instruction.
	opcode      uint8
	addr        uint16
	pageCrossed bool
	extraCycles uint8

	nmiPending  bool
	irqLine     bool
	nmiPrevious bool

	halted bool
}

// New constructs a CPU wired to bus. Call Reset before the first Clock.
func New(bus Bus) *CPU {
	c := &CPU{bus: bus}
	c.buildInstructionTable()
	return c
}

func (c *CPU) ConnectBus(bus Bus) { c.bus = bus }

// Reset performs the documented power-on/reset sequence: load PC from the
// reset vector, set I, SP -= 3 (matching the real 6502's three dummy stack
// reads during reset), and burn the 7-cycle reset budget on the first
// Clock calls that follow.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.C, c.Z, c.I, c.D, c.V, c.N = false, false, true, false, false, false
	lo := uint16(c.bus.Read(resetVector))
	hi := uint16(c.bus.Read(resetVector + 1))
	c.PC = (hi << 8) | lo
	c.cyclesRemaining = 7
	c.nmiPending = false
	c.irqLine = false
	c.halted = false
}

// NMI latches a non-maskable interrupt; it is serviced at the next
// instruction boundary and the latch is cleared on service.
func (c *CPU) NMI() { c.nmiPending = true }

// SetIRQLine sets the level-triggered IRQ line. The asserting device is
// responsible for deasserting it (via SetIRQLine(false)) once serviced.
func (c *CPU) SetIRQLine(asserted bool) { c.irqLine = asserted }

// Clock advances the CPU by one master CPU cycle. A new instruction is
// only decoded when the internal countdown reaches zero; every other call
// just burns down that countdown, which is what gives this model its
// per-instruction (not sub-cycle) accuracy.
func (c *CPU) Clock() {
	if c.cyclesRemaining == 0 {
		if !c.serviceInterrupts() {
			c.stepInstruction()
		}
	}
	if c.cyclesRemaining > 0 {
		c.cyclesRemaining--
	}
	c.totalCycles++
}

// serviceInterrupts takes a pending NMI or an enabled IRQ and reports
// whether it did; the interrupt sequence then occupies this boundary.
func (c *CPU) serviceInterrupts() bool {
	if c.nmiPending {
		c.nmiPending = false
		c.interrupt(nmiVector, false)
		return true
	}
	if c.irqLine && !c.I {
		c.interrupt(irqVector, false)
		return true
	}
	return false
}

// interrupt pushes PC and P, sets I, and vectors through addr. brk marks a
// software BRK: the pushed P has B set; hardware NMI/IRQ push B clear.
func (c *CPU) interrupt(vector uint16, brk bool) {
	c.push16(c.PC)
	p := c.statusByte(brk)
	c.push(p)
	c.I = true
	lo := uint16(c.bus.Read(vector))
	hi := uint16(c.bus.Read(vector + 1))
	c.PC = (hi << 8) | lo
	c.cyclesRemaining = 7
}

func (c *CPU) stepInstruction() {
	c.opcode = c.bus.Read(c.PC)
	c.PC++

	inst := c.instructions[c.opcode]
	c.addr, c.pageCrossed = c.resolveAddress(inst.mode)
	cycles := inst.cycles
	if c.pageCrossed && pageCrossPenalty[c.opcode] {
		cycles++
	}
	c.extraCycles = 0
	inst.execute(c)
	c.cyclesRemaining = cycles + c.extraCycles
}

// TotalCycles returns the number of CPU cycles clocked since construction
// (or the last Reset, which does not reset the counter).
func (c *CPU) TotalCycles() uint64 { return c.totalCycles }

// Halted reports whether the CPU hit an opcode it cannot safely continue
// from. No opcode in this implementation sets it (undocumented opcodes are
// folded to NOPs); kept as an escape hatch for test harnesses.
func (c *CPU) Halted() bool { return c.halted }

func (c *CPU) statusByte(brk bool) uint8 {
	var p uint8
	if c.C {
		p |= flagC
	}
	if c.Z {
		p |= flagZ
	}
	if c.I {
		p |= flagI
	}
	if c.D {
		p |= flagD
	}
	if c.V {
		p |= flagV
	}
	if c.N {
		p |= flagN
	}
	p |= flagU
	if brk {
		p |= flagB
	}
	return p
}

func (c *CPU) setStatusByte(p uint8) {
	c.C = p&flagC != 0
	c.Z = p&flagZ != 0
	c.I = p&flagI != 0
	c.D = p&flagD != 0
	c.V = p&flagV != 0
	c.N = p&flagN != 0
}

func (c *CPU) push(v uint8) {
	c.bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return (hi << 8) | lo
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&0x80 != 0
}

// resolveAddress computes the effective address for mode, consuming
// operand bytes from PC as it goes, and reports whether a page boundary
// was crossed for the indexed modes that matter for the read-class cycle
// penalty.
func (c *CPU) resolveAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		return 0, false
	case Immediate:
		addr := c.PC
		c.PC++
		return addr, false
	case ZeroPage:
		addr := uint16(c.bus.Read(c.PC))
		c.PC++
		return addr, false
	case ZeroPageX:
		addr := uint16(c.bus.Read(c.PC) + c.X)
		c.PC++
		return addr, false
	case ZeroPageY:
		addr := uint16(c.bus.Read(c.PC) + c.Y)
		c.PC++
		return addr, false
	case Relative:
		offset := int8(c.bus.Read(c.PC))
		c.PC++
		addr := uint16(int32(c.PC) + int32(offset))
		return addr, (addr & 0xFF00) != (c.PC & 0xFF00)
	case Absolute:
		addr := c.read16(c.PC)
		c.PC += 2
		return addr, false
	case AbsoluteX:
		base := c.read16(c.PC)
		c.PC += 2
		addr := base + uint16(c.X)
		return addr, (addr & 0xFF00) != (base & 0xFF00)
	case AbsoluteY:
		base := c.read16(c.PC)
		c.PC += 2
		addr := base + uint16(c.Y)
		return addr, (addr & 0xFF00) != (base & 0xFF00)
	case Indirect:
		ptr := c.read16(c.PC)
		c.PC += 2
		// Reproduce the $xxFF page-wrap bug: the high byte is fetched
		// from $xx00, not $(xx+1)00.
		var addr uint16
		if ptr&0x00FF == 0x00FF {
			lo := uint16(c.bus.Read(ptr))
			hi := uint16(c.bus.Read(ptr & 0xFF00))
			addr = (hi << 8) | lo
		} else {
			addr = c.read16(ptr)
		}
		return addr, false
	case IndexedIndirect:
		zp := c.bus.Read(c.PC) + c.X
		c.PC++
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		return (hi << 8) | lo, false
	case IndirectIndexed:
		zp := c.bus.Read(c.PC)
		c.PC++
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		base := (hi << 8) | lo
		addr := base + uint16(c.Y)
		return addr, (addr & 0xFF00) != (base & 0xFF00)
	}
	return 0, false
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.bus.Read(addr))
	hi := uint16(c.bus.Read(addr + 1))
	return (hi << 8) | lo
}

// operand loads the operand byte for the current instruction, reading the
// accumulator for Accumulator mode.
func (c *CPU) operand(mode AddressingMode) uint8 {
	if mode == Accumulator {
		return c.A
	}
	return c.bus.Read(c.addr)
}

func (c *CPU) storeResult(mode AddressingMode, v uint8) {
	if mode == Accumulator {
		c.A = v
		return
	}
	c.bus.Write(c.addr, v)
}
