package cartridge

// Mapper004 implements MMC3 (mapper 4): eight bank-select registers R0-R7
// written through a bank-select/bank-data port pair at $8000-$9FFF, a
// mirroring latch at $A000-$BFFF, and a scanline-counted IRQ driven by
// OnScanline (spec.md §9 notes the source drives this from the PPU's
// scanline boundary rather than PPU A12 rising edges, which misbehaves for
// games that toggle A12 mid-scanline; that limitation is carried here too,
// see DESIGN.md).
type Mapper004 struct {
	prgBanks uint8
	chrBanks uint8

	targetRegister uint8
	prgBankMode    bool
	chrInversion   bool
	registers      [8]uint8

	prgBank [4]uint32
	chrBank [8]uint32

	mirror MirrorMode

	irqActive bool
	irqEnable bool
	irqUpdate bool
	irqCount  uint8
	irqReload uint8

	prgRAM [0x2000]uint8
}

func NewMapper004(prgBanks, chrBanks uint8) *Mapper004 {
	m := &Mapper004{prgBanks: prgBanks, chrBanks: chrBanks}
	m.Reset()
	return m
}

func (m *Mapper004) Reset() {
	m.targetRegister = 0
	m.prgBankMode = false
	m.chrInversion = false
	m.mirror = MirrorHorizontal
	m.irqActive, m.irqEnable, m.irqUpdate = false, false, false
	m.irqCount, m.irqReload = 0, 0
	for i := range m.registers {
		m.registers[i] = 0
	}
	for i := range m.chrBank {
		m.chrBank[i] = 0
	}
	m.prgBank[0] = 0
	m.prgBank[1] = 1 * 0x2000
	m.prgBank[2] = uint32(m.prgBanks)*2*0x2000 - 2*0x2000
	m.prgBank[3] = uint32(m.prgBanks)*2*0x2000 - 1*0x2000
}

func (m *Mapper004) CPUMapRead(addr uint16) Hit {
	switch {
	case addr >= 0x6000 && addr <= 0x7FFF:
		return RamHit(uint32(addr - 0x6000))
	case addr >= 0x8000 && addr <= 0x9FFF:
		return RomHit(m.prgBank[0] + uint32(addr&0x1FFF))
	case addr >= 0xA000 && addr <= 0xBFFF:
		return RomHit(m.prgBank[1] + uint32(addr&0x1FFF))
	case addr >= 0xC000 && addr <= 0xDFFF:
		return RomHit(m.prgBank[2] + uint32(addr&0x1FFF))
	case addr >= 0xE000:
		return RomHit(m.prgBank[3] + uint32(addr&0x1FFF))
	}
	return MissHit()
}

func (m *Mapper004) CPUMapWrite(addr uint16, data uint8) Hit {
	if addr >= 0x6000 && addr <= 0x7FFF {
		return RamHit(uint32(addr - 0x6000))
	}
	if addr < 0x8000 {
		return MissHit()
	}

	switch {
	case addr <= 0x9FFF:
		if addr&1 == 0 {
			m.targetRegister = data & 0x07
			m.prgBankMode = data&0x40 != 0
			m.chrInversion = data&0x80 != 0
		} else {
			m.registers[m.targetRegister] = data
			m.updateCHRBanks()
			m.updatePRGBanks()
		}
	case addr <= 0xBFFF:
		if addr&1 == 0 {
			if data&1 != 0 {
				m.mirror = MirrorHorizontal
			} else {
				m.mirror = MirrorVertical
			}
		}
		// Odd address ($A001) is PRG-RAM protect on some MMC3 boards;
		// not modelled, matching the grounding source.
	case addr <= 0xDFFF:
		if addr&1 == 0 {
			m.irqReload = data
		} else {
			m.irqCount = 0
			m.irqUpdate = true
		}
	default:
		if addr&1 == 0 {
			m.irqEnable = false
			m.irqActive = false
		} else {
			m.irqEnable = true
		}
	}
	return RegisterHit()
}

func (m *Mapper004) updateCHRBanks() {
	r := &m.registers
	if m.chrInversion {
		m.chrBank[0] = uint32(r[2]) * 0x400
		m.chrBank[1] = uint32(r[3]) * 0x400
		m.chrBank[2] = uint32(r[4]) * 0x400
		m.chrBank[3] = uint32(r[5]) * 0x400
		m.chrBank[4] = uint32(r[0]&0xFE) * 0x400
		m.chrBank[5] = uint32((r[0]&0xFE)+1) * 0x400
		m.chrBank[6] = uint32(r[1]&0xFE) * 0x400
		m.chrBank[7] = uint32((r[1]&0xFE)+1) * 0x400
	} else {
		m.chrBank[0] = uint32(r[0]&0xFE) * 0x400
		m.chrBank[1] = uint32(r[0]&0xFE+1) * 0x400
		m.chrBank[2] = uint32(r[1]&0xFE) * 0x400
		m.chrBank[3] = uint32(r[1]&0xFE+1) * 0x400
		m.chrBank[4] = uint32(r[2]) * 0x400
		m.chrBank[5] = uint32(r[3]) * 0x400
		m.chrBank[6] = uint32(r[4]) * 0x400
		m.chrBank[7] = uint32(r[5]) * 0x400
	}
}

func (m *Mapper004) updatePRGBanks() {
	lastBank := uint32(m.prgBanks)*2*0x2000 - 2*0x2000
	if m.prgBankMode {
		m.prgBank[2] = uint32(m.registers[6]&0x3F) * 0x2000
		m.prgBank[0] = lastBank
	} else {
		m.prgBank[0] = uint32(m.registers[6]&0x3F) * 0x2000
		m.prgBank[2] = lastBank
	}
	m.prgBank[1] = uint32(m.registers[7]&0x3F) * 0x2000
	m.prgBank[3] = uint32(m.prgBanks)*2*0x2000 - 1*0x2000
}

func (m *Mapper004) ReadRAM(offset uint32) uint8        { return m.prgRAM[offset%uint32(len(m.prgRAM))] }
func (m *Mapper004) WriteRAM(offset uint32, data uint8) { m.prgRAM[offset%uint32(len(m.prgRAM))] = data }

func (m *Mapper004) PPUMapRead(addr uint16) PPUHit {
	if addr < 0x2000 {
		return PPUChrHit(m.chrBank[(addr>>10)&0x07] + uint32(addr&0x03FF))
	}
	return PPUMissHit()
}

func (m *Mapper004) PPUMapWrite(addr uint16, data uint8) PPUHit {
	return PPUMissHit()
}

func (m *Mapper004) Mirror() MirrorMode { return m.mirror }
func (m *Mapper004) IRQState() bool     { return m.irqActive }
func (m *Mapper004) IRQClear()          { m.irqActive = false }

// OnScanline drives the IRQ counter. Called once per rendered scanline by
// the PPU (approximating the PPU A12-toggle events this hardware actually
// counts; see the type doc comment and DESIGN.md).
func (m *Mapper004) OnScanline() {
	if m.irqCount == 0 || m.irqUpdate {
		m.irqCount = m.irqReload
		m.irqUpdate = false
	} else {
		m.irqCount--
		if m.irqCount == 0 && m.irqEnable {
			m.irqActive = true
		}
	}
}
