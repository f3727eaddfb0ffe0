package cpu

// pageCrossPenalty marks opcodes that take an extra cycle when their
// indexed/indirect-indexed addressing crosses a page boundary. Write-class
// instructions (STA, STX, STY, and read-modify-write ops) always pay the
// full indexed cycle count regardless of crossing, so they are left false.
var pageCrossPenalty [256]bool

func init() {
	for _, op := range []uint8{
		0x7D, 0x79, 0x71, // ADC absX/absY/(ind),Y
		0x3D, 0x39, 0x31, // AND
		0xDD, 0xD9, 0xD1, // CMP
		0x5D, 0x59, 0x51, // EOR
		0xBD, 0xB9, 0xB1, 0xBC, 0xBE, // LDA/LDY absX/LDX absY
		0x1D, 0x19, 0x11, // ORA
		0xFD, 0xF9, 0xF1, // SBC
	} {
		pageCrossPenalty[op] = true
	}
	// Branch taken/page-cross cycles are both accounted for in the branch()
	// helper via c.extraCycles, not through this table.
}

// buildInstructionTable populates c.instructions for every official 6502
// opcode. Unassigned slots default to a 1-byte, 2-cycle NOP, folding
// undocumented opcodes to no-ops rather than emulating their side effects;
// the operand bytes of a multi-byte undocumented opcode are not skipped.
func (c *CPU) buildInstructionTable() {
	for i := range c.instructions {
		c.instructions[i] = instruction{name: "NOP", mode: Implied, cycles: 2, execute: opNOP}
	}

	set := func(op uint8, name string, mode AddressingMode, cycles uint8, fn func(c *CPU)) {
		c.instructions[op] = instruction{name: name, mode: mode, cycles: cycles, execute: fn}
	}

	// Load/store.
	set(0xA9, "LDA", Immediate, 2, opLDA)
	set(0xA5, "LDA", ZeroPage, 3, opLDA)
	set(0xB5, "LDA", ZeroPageX, 4, opLDA)
	set(0xAD, "LDA", Absolute, 4, opLDA)
	set(0xBD, "LDA", AbsoluteX, 4, opLDA)
	set(0xB9, "LDA", AbsoluteY, 4, opLDA)
	set(0xA1, "LDA", IndexedIndirect, 6, opLDA)
	set(0xB1, "LDA", IndirectIndexed, 5, opLDA)

	set(0xA2, "LDX", Immediate, 2, opLDX)
	set(0xA6, "LDX", ZeroPage, 3, opLDX)
	set(0xB6, "LDX", ZeroPageY, 4, opLDX)
	set(0xAE, "LDX", Absolute, 4, opLDX)
	set(0xBE, "LDX", AbsoluteY, 4, opLDX)

	set(0xA0, "LDY", Immediate, 2, opLDY)
	set(0xA4, "LDY", ZeroPage, 3, opLDY)
	set(0xB4, "LDY", ZeroPageX, 4, opLDY)
	set(0xAC, "LDY", Absolute, 4, opLDY)
	set(0xBC, "LDY", AbsoluteX, 4, opLDY)

	set(0x85, "STA", ZeroPage, 3, opSTA)
	set(0x95, "STA", ZeroPageX, 4, opSTA)
	set(0x8D, "STA", Absolute, 4, opSTA)
	set(0x9D, "STA", AbsoluteX, 5, opSTA)
	set(0x99, "STA", AbsoluteY, 5, opSTA)
	set(0x81, "STA", IndexedIndirect, 6, opSTA)
	set(0x91, "STA", IndirectIndexed, 6, opSTA)

	set(0x86, "STX", ZeroPage, 3, opSTX)
	set(0x96, "STX", ZeroPageY, 4, opSTX)
	set(0x8E, "STX", Absolute, 4, opSTX)

	set(0x84, "STY", ZeroPage, 3, opSTY)
	set(0x94, "STY", ZeroPageX, 4, opSTY)
	set(0x8C, "STY", Absolute, 4, opSTY)

	// Transfers / stack.
	set(0xAA, "TAX", Implied, 2, opTAX)
	set(0x8A, "TXA", Implied, 2, opTXA)
	set(0xA8, "TAY", Implied, 2, opTAY)
	set(0x98, "TYA", Implied, 2, opTYA)
	set(0xBA, "TSX", Implied, 2, opTSX)
	set(0x9A, "TXS", Implied, 2, opTXS)
	set(0x48, "PHA", Implied, 3, opPHA)
	set(0x68, "PLA", Implied, 4, opPLA)
	set(0x08, "PHP", Implied, 3, opPHP)
	set(0x28, "PLP", Implied, 4, opPLP)

	// Arithmetic.
	set(0x69, "ADC", Immediate, 2, opADC)
	set(0x65, "ADC", ZeroPage, 3, opADC)
	set(0x75, "ADC", ZeroPageX, 4, opADC)
	set(0x6D, "ADC", Absolute, 4, opADC)
	set(0x7D, "ADC", AbsoluteX, 4, opADC)
	set(0x79, "ADC", AbsoluteY, 4, opADC)
	set(0x61, "ADC", IndexedIndirect, 6, opADC)
	set(0x71, "ADC", IndirectIndexed, 5, opADC)

	set(0xE9, "SBC", Immediate, 2, opSBC)
	set(0xE5, "SBC", ZeroPage, 3, opSBC)
	set(0xF5, "SBC", ZeroPageX, 4, opSBC)
	set(0xED, "SBC", Absolute, 4, opSBC)
	set(0xFD, "SBC", AbsoluteX, 4, opSBC)
	set(0xF9, "SBC", AbsoluteY, 4, opSBC)
	set(0xE1, "SBC", IndexedIndirect, 6, opSBC)
	set(0xF1, "SBC", IndirectIndexed, 5, opSBC)

	// Logic.
	set(0x29, "AND", Immediate, 2, opAND)
	set(0x25, "AND", ZeroPage, 3, opAND)
	set(0x35, "AND", ZeroPageX, 4, opAND)
	set(0x2D, "AND", Absolute, 4, opAND)
	set(0x3D, "AND", AbsoluteX, 4, opAND)
	set(0x39, "AND", AbsoluteY, 4, opAND)
	set(0x21, "AND", IndexedIndirect, 6, opAND)
	set(0x31, "AND", IndirectIndexed, 5, opAND)

	set(0x09, "ORA", Immediate, 2, opORA)
	set(0x05, "ORA", ZeroPage, 3, opORA)
	set(0x15, "ORA", ZeroPageX, 4, opORA)
	set(0x0D, "ORA", Absolute, 4, opORA)
	set(0x1D, "ORA", AbsoluteX, 4, opORA)
	set(0x19, "ORA", AbsoluteY, 4, opORA)
	set(0x01, "ORA", IndexedIndirect, 6, opORA)
	set(0x11, "ORA", IndirectIndexed, 5, opORA)

	set(0x49, "EOR", Immediate, 2, opEOR)
	set(0x45, "EOR", ZeroPage, 3, opEOR)
	set(0x55, "EOR", ZeroPageX, 4, opEOR)
	set(0x4D, "EOR", Absolute, 4, opEOR)
	set(0x5D, "EOR", AbsoluteX, 4, opEOR)
	set(0x59, "EOR", AbsoluteY, 4, opEOR)
	set(0x41, "EOR", IndexedIndirect, 6, opEOR)
	set(0x51, "EOR", IndirectIndexed, 5, opEOR)

	// Compare.
	set(0xC9, "CMP", Immediate, 2, opCMP)
	set(0xC5, "CMP", ZeroPage, 3, opCMP)
	set(0xD5, "CMP", ZeroPageX, 4, opCMP)
	set(0xCD, "CMP", Absolute, 4, opCMP)
	set(0xDD, "CMP", AbsoluteX, 4, opCMP)
	set(0xD9, "CMP", AbsoluteY, 4, opCMP)
	set(0xC1, "CMP", IndexedIndirect, 6, opCMP)
	set(0xD1, "CMP", IndirectIndexed, 5, opCMP)

	set(0xE0, "CPX", Immediate, 2, opCPX)
	set(0xE4, "CPX", ZeroPage, 3, opCPX)
	set(0xEC, "CPX", Absolute, 4, opCPX)

	set(0xC0, "CPY", Immediate, 2, opCPY)
	set(0xC4, "CPY", ZeroPage, 3, opCPY)
	set(0xCC, "CPY", Absolute, 4, opCPY)

	// Increment/decrement.
	set(0xE6, "INC", ZeroPage, 5, opINC)
	set(0xF6, "INC", ZeroPageX, 6, opINC)
	set(0xEE, "INC", Absolute, 6, opINC)
	set(0xFE, "INC", AbsoluteX, 7, opINC)
	set(0xC6, "DEC", ZeroPage, 5, opDEC)
	set(0xD6, "DEC", ZeroPageX, 6, opDEC)
	set(0xCE, "DEC", Absolute, 6, opDEC)
	set(0xDE, "DEC", AbsoluteX, 7, opDEC)
	set(0xE8, "INX", Implied, 2, opINX)
	set(0xCA, "DEX", Implied, 2, opDEX)
	set(0xC8, "INY", Implied, 2, opINY)
	set(0x88, "DEY", Implied, 2, opDEY)

	// Shifts/rotates.
	set(0x0A, "ASL", Accumulator, 2, opASL)
	set(0x06, "ASL", ZeroPage, 5, opASL)
	set(0x16, "ASL", ZeroPageX, 6, opASL)
	set(0x0E, "ASL", Absolute, 6, opASL)
	set(0x1E, "ASL", AbsoluteX, 7, opASL)

	set(0x4A, "LSR", Accumulator, 2, opLSR)
	set(0x46, "LSR", ZeroPage, 5, opLSR)
	set(0x56, "LSR", ZeroPageX, 6, opLSR)
	set(0x4E, "LSR", Absolute, 6, opLSR)
	set(0x5E, "LSR", AbsoluteX, 7, opLSR)

	set(0x2A, "ROL", Accumulator, 2, opROL)
	set(0x26, "ROL", ZeroPage, 5, opROL)
	set(0x36, "ROL", ZeroPageX, 6, opROL)
	set(0x2E, "ROL", Absolute, 6, opROL)
	set(0x3E, "ROL", AbsoluteX, 7, opROL)

	set(0x6A, "ROR", Accumulator, 2, opROR)
	set(0x66, "ROR", ZeroPage, 5, opROR)
	set(0x76, "ROR", ZeroPageX, 6, opROR)
	set(0x6E, "ROR", Absolute, 6, opROR)
	set(0x7E, "ROR", AbsoluteX, 7, opROR)

	// Bit test.
	set(0x24, "BIT", ZeroPage, 3, opBIT)
	set(0x2C, "BIT", Absolute, 4, opBIT)

	// Flags.
	set(0x18, "CLC", Implied, 2, func(c *CPU) { c.C = false })
	set(0x38, "SEC", Implied, 2, func(c *CPU) { c.C = true })
	set(0x58, "CLI", Implied, 2, func(c *CPU) { c.I = false })
	set(0x78, "SEI", Implied, 2, func(c *CPU) { c.I = true })
	set(0xB8, "CLV", Implied, 2, func(c *CPU) { c.V = false })
	set(0xD8, "CLD", Implied, 2, func(c *CPU) { c.D = false })
	set(0xF8, "SED", Implied, 2, func(c *CPU) { c.D = true })

	// Branches.
	set(0x10, "BPL", Relative, 2, branch(func(c *CPU) bool { return !c.N }))
	set(0x30, "BMI", Relative, 2, branch(func(c *CPU) bool { return c.N }))
	set(0x50, "BVC", Relative, 2, branch(func(c *CPU) bool { return !c.V }))
	set(0x70, "BVS", Relative, 2, branch(func(c *CPU) bool { return c.V }))
	set(0x90, "BCC", Relative, 2, branch(func(c *CPU) bool { return !c.C }))
	set(0xB0, "BCS", Relative, 2, branch(func(c *CPU) bool { return c.C }))
	set(0xD0, "BNE", Relative, 2, branch(func(c *CPU) bool { return !c.Z }))
	set(0xF0, "BEQ", Relative, 2, branch(func(c *CPU) bool { return c.Z }))

	// Jumps/calls/returns.
	set(0x4C, "JMP", Absolute, 3, opJMP)
	set(0x6C, "JMP", Indirect, 5, opJMP)
	set(0x20, "JSR", Absolute, 6, opJSR)
	set(0x60, "RTS", Implied, 6, opRTS)
	set(0x00, "BRK", Implied, 7, opBRK)
	set(0x40, "RTI", Implied, 6, opRTI)

	// NOP variants (official single-byte NOP only; illegal NOPs fold to the
	// default table entry above).
	set(0xEA, "NOP", Implied, 2, opNOP)
}

// branch wraps a condition into a Relative-mode execute function. Taking a
// branch costs one extra cycle, and a further cycle if it crosses a page;
// both land in c.extraCycles since stepInstruction overwrites cyclesRemaining
// with the base count immediately after execute returns.
func branch(cond func(c *CPU) bool) func(c *CPU) {
	return func(c *CPU) {
		if !cond(c) {
			return
		}
		c.extraCycles++
		if c.pageCrossed {
			c.extraCycles++
		}
		c.PC = c.addr
	}
}

func opNOP(c *CPU) {}

func opLDA(c *CPU) { c.A = c.bus.Read(c.addr); c.setZN(c.A) }
func opLDX(c *CPU) { c.X = c.bus.Read(c.addr); c.setZN(c.X) }
func opLDY(c *CPU) { c.Y = c.bus.Read(c.addr); c.setZN(c.Y) }

func opSTA(c *CPU) { c.bus.Write(c.addr, c.A) }
func opSTX(c *CPU) { c.bus.Write(c.addr, c.X) }
func opSTY(c *CPU) { c.bus.Write(c.addr, c.Y) }

func opTAX(c *CPU) { c.X = c.A; c.setZN(c.X) }
func opTXA(c *CPU) { c.A = c.X; c.setZN(c.A) }
func opTAY(c *CPU) { c.Y = c.A; c.setZN(c.Y) }
func opTYA(c *CPU) { c.A = c.Y; c.setZN(c.A) }
func opTSX(c *CPU) { c.X = c.SP; c.setZN(c.X) }
func opTXS(c *CPU) { c.SP = c.X }

func opPHA(c *CPU) { c.push(c.A) }
func opPLA(c *CPU) { c.A = c.pop(); c.setZN(c.A) }
func opPHP(c *CPU) { c.push(c.statusByte(true)) }
func opPLP(c *CPU) { c.setStatusByte(c.pop()) }

func opADC(c *CPU) {
	operand := c.bus.Read(c.addr)
	sum := uint16(c.A) + uint16(operand)
	if c.C {
		sum++
	}
	result := uint8(sum)
	c.V = (c.A^operand)&0x80 == 0 && (c.A^result)&0x80 != 0
	c.C = sum > 0xFF
	c.A = result
	c.setZN(c.A)
}

func opSBC(c *CPU) {
	operand := c.bus.Read(c.addr) ^ 0xFF
	sum := uint16(c.A) + uint16(operand)
	if c.C {
		sum++
	}
	result := uint8(sum)
	c.V = (c.A^operand)&0x80 == 0 && (c.A^result)&0x80 != 0
	c.C = sum > 0xFF
	c.A = result
	c.setZN(c.A)
}

func opAND(c *CPU) { c.A &= c.bus.Read(c.addr); c.setZN(c.A) }
func opORA(c *CPU) { c.A |= c.bus.Read(c.addr); c.setZN(c.A) }
func opEOR(c *CPU) { c.A ^= c.bus.Read(c.addr); c.setZN(c.A) }

func compare(c *CPU, reg uint8) {
	operand := c.bus.Read(c.addr)
	result := reg - operand
	c.C = reg >= operand
	c.setZN(result)
}

func opCMP(c *CPU) { compare(c, c.A) }
func opCPX(c *CPU) { compare(c, c.X) }
func opCPY(c *CPU) { compare(c, c.Y) }

func opINC(c *CPU) { v := c.bus.Read(c.addr) + 1; c.bus.Write(c.addr, v); c.setZN(v) }
func opDEC(c *CPU) { v := c.bus.Read(c.addr) - 1; c.bus.Write(c.addr, v); c.setZN(v) }
func opINX(c *CPU) { c.X++; c.setZN(c.X) }
func opDEX(c *CPU) { c.X--; c.setZN(c.X) }
func opINY(c *CPU) { c.Y++; c.setZN(c.Y) }
func opDEY(c *CPU) { c.Y--; c.setZN(c.Y) }

func opASL(c *CPU) {
	mode := c.instructions[c.opcode].mode
	v := c.operand(mode)
	c.C = v&0x80 != 0
	v <<= 1
	c.storeResult(mode, v)
	c.setZN(v)
}

func opLSR(c *CPU) {
	mode := c.instructions[c.opcode].mode
	v := c.operand(mode)
	c.C = v&0x01 != 0
	v >>= 1
	c.storeResult(mode, v)
	c.setZN(v)
}

func opROL(c *CPU) {
	mode := c.instructions[c.opcode].mode
	v := c.operand(mode)
	oldC := c.C
	c.C = v&0x80 != 0
	v <<= 1
	if oldC {
		v |= 0x01
	}
	c.storeResult(mode, v)
	c.setZN(v)
}

func opROR(c *CPU) {
	mode := c.instructions[c.opcode].mode
	v := c.operand(mode)
	oldC := c.C
	c.C = v&0x01 != 0
	v >>= 1
	if oldC {
		v |= 0x80
	}
	c.storeResult(mode, v)
	c.setZN(v)
}

func opBIT(c *CPU) {
	v := c.bus.Read(c.addr)
	c.Z = (c.A & v) == 0
	c.N = v&0x80 != 0
	c.V = v&0x40 != 0
}

func opJMP(c *CPU) { c.PC = c.addr }

func opJSR(c *CPU) {
	c.push16(c.PC - 1)
	c.PC = c.addr
}

func opRTS(c *CPU) { c.PC = c.pop16() + 1 }

func opBRK(c *CPU) {
	c.PC++ // BRK is followed by a padding byte the return address skips
	c.push16(c.PC)
	c.push(c.statusByte(true))
	c.I = true
	c.PC = c.read16(irqVector)
}

func opRTI(c *CPU) {
	c.setStatusByte(c.pop())
	c.PC = c.pop16()
}
