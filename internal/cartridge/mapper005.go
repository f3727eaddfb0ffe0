package cartridge

// Mapper005 implements MMC5 (mapper 5), the most complex of the six
// variants: four PRG banking modes and four CHR banking modes selected by
// $5100/$5101, an ExRAM block that can serve as extra nametable storage or
// general RAM, a nametable-shadowing scheme driven by $5105 that bypasses
// the coarse Mirror() model entirely, a hardware multiplier, and a
// scanline-counted IRQ.
//
// Fetch-type discrimination (spec.md §4.5) is heuristic: the mapper cannot
// see PPU internal state, so it infers "the next two pattern-table fetches
// are for background" from having just observed a nametable read landing
// in the attribute region ($3C0-$3FF of a 1 KiB page). This misclassifies
// during sprite-evaluation reads of the attribute area; documented as a
// known limitation, same as the grounding source (original_source/src/Mapper_005.cpp).
type Mapper005 struct {
	prgBanks uint8
	chrBanks uint8

	prgMode        uint8 // $5100
	chrMode        uint8 // $5101
	prgRAMProtect1 uint8 // $5102
	prgRAMProtect2 uint8 // $5103
	exRAMMode      uint8 // $5104
	ntMapping      uint8 // $5105
	fillTile       uint8 // $5106
	fillColor      uint8 // $5107

	prgBankReg [5]uint8  // $5113-$5117
	chrBankReg [12]uint16 // $5120-$512B
	chrUpperBits uint8     // $5130

	multiplierA uint8 // $5205
	multiplierB uint8 // $5206

	irqScanline uint8 // $5203
	irqEnable   bool  // $5204 bit 7
	irqActive   bool
	inFrame     bool
	scanlineCount uint8

	bgFetchesRemaining int

	mirror MirrorMode

	prgRAM           [64 * 1024]uint8
	exRAM            [1024]uint8
	internalNametable [2048]uint8
}

func NewMapper005(prgBanks, chrBanks uint8) *Mapper005 {
	m := &Mapper005{prgBanks: prgBanks, chrBanks: chrBanks}
	m.Reset()
	return m
}

func (m *Mapper005) Reset() {
	m.prgMode = 3
	m.chrMode = 3
	m.prgRAMProtect1, m.prgRAMProtect2 = 0, 0
	m.exRAMMode = 0
	m.ntMapping = 0
	m.fillTile, m.fillColor = 0, 0
	m.chrUpperBits = 0
	m.multiplierA, m.multiplierB = 0xFF, 0xFF

	m.irqScanline = 0
	m.irqEnable, m.irqActive, m.inFrame = false, false, false
	m.scanlineCount = 0

	m.mirror = MirrorVertical

	// $5117 powers on selecting the last 8 KiB ROM bank, per nesdev; the
	// other PRG registers default to ROM bank 0.
	m.prgBankReg = [5]uint8{0x00, 0x80, 0x80, 0x80, 0xFF}
	for i := range m.chrBankReg {
		m.chrBankReg[i] = uint16(i)
	}
}

func (m *Mapper005) isPRGRAMEnabled() bool {
	return m.prgRAMProtect1 == 0x02 && m.prgRAMProtect2 == 0x01
}

func (m *Mapper005) prgRomSize() uint32 { return uint32(m.prgBanks) * 16384 }

func (m *Mapper005) romBank(offset uint32) Hit {
	romSize := m.prgRomSize()
	if romSize == 0 {
		return RomHit(0)
	}
	return RomHit(offset % romSize)
}

// ramBankOffset resolves the 8 KiB PRG-RAM bank selected by a PRG bank
// register's low 3 bits (the upper bits select ROM banks; this applies
// only when that region is in RAM mode).
func (m *Mapper005) ramBankOffset(reg uint8, addr uint16) uint32 {
	bank := uint32(reg & 0x07)
	return (bank*8192 + uint32(addr&0x1FFF)) % uint32(len(m.prgRAM))
}

func (m *Mapper005) CPUMapRead(addr uint16) Hit {
	switch {
	case addr >= 0x5000 && addr <= 0x5FFF:
		return RegisterHit()
	case addr >= 0x6000 && addr <= 0x7FFF:
		return RamHit(m.ramBankOffset(m.prgBankReg[0], addr))
	case addr < 0x8000:
		return MissHit()
	}

	romSize := m.prgRomSize()
	switch m.prgMode {
	case 0:
		bank := uint32((m.prgBankReg[4]>>2)&0x1F) * 32768
		return m.romBank(bank + uint32(addr&0x7FFF))
	case 1:
		if addr < 0xC000 {
			if m.prgBankReg[2]&0x80 == 0 {
				return RamHit(m.ramBankOffset(m.prgBankReg[2], addr))
			}
			bank := uint32((m.prgBankReg[2]>>1)&0x3F) * 16384
			return m.romBank(bank + uint32(addr&0x3FFF))
		}
		bank := uint32((m.prgBankReg[4]>>1)&0x3F) * 16384
		return m.romBank(bank + uint32(addr&0x3FFF))
	case 2:
		switch {
		case addr < 0xC000:
			if m.prgBankReg[2]&0x80 == 0 {
				return RamHit(m.ramBankOffset(m.prgBankReg[2], addr))
			}
			bank := uint32((m.prgBankReg[2]>>1)&0x3F) * 16384
			return m.romBank(bank + uint32(addr&0x3FFF))
		case addr < 0xE000:
			if m.prgBankReg[3]&0x80 == 0 {
				return RamHit(m.ramBankOffset(m.prgBankReg[3], addr))
			}
			bank := uint32(m.prgBankReg[3]&0x7F) * 8192
			return m.romBank(bank + uint32(addr&0x1FFF))
		default:
			bank := uint32(m.prgBankReg[4]&0x7F) * 8192
			return m.romBank(bank + uint32(addr&0x1FFF))
		}
	default: // 3
		var reg uint8
		switch {
		case addr < 0xA000:
			reg = m.prgBankReg[1]
		case addr < 0xC000:
			reg = m.prgBankReg[2]
		case addr < 0xE000:
			reg = m.prgBankReg[3]
		default:
			reg = m.prgBankReg[4]
		}
		if addr < 0xE000 && reg&0x80 == 0 {
			return RamHit(m.ramBankOffset(reg, addr))
		}
		bank := uint32(reg&0x7F) * 8192
		if romSize == 0 {
			return RomHit(0)
		}
		return RomHit((bank + uint32(addr&0x1FFF)) % romSize)
	}
}

func (m *Mapper005) CPUMapWrite(addr uint16, data uint8) Hit {
	switch {
	case addr >= 0x5000 && addr <= 0x5FFF:
		m.writeRegister(addr, data)
		return RegisterHit()
	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.isPRGRAMEnabled() {
			return RamHit(m.ramBankOffset(m.prgBankReg[0], addr))
		}
		return RegisterHit()
	case addr >= 0x8000 && addr < 0xE000:
		if !m.isPRGRAMEnabled() {
			return RegisterHit()
		}
		var reg uint8
		switch {
		case m.prgMode == 2 && addr >= 0xC000:
			reg = m.prgBankReg[3]
		case m.prgMode == 3 && addr < 0xA000:
			reg = m.prgBankReg[1]
		case m.prgMode == 3 && addr < 0xC000:
			reg = m.prgBankReg[2]
		case m.prgMode == 3 && addr < 0xE000:
			reg = m.prgBankReg[3]
		default:
			return RegisterHit()
		}
		if reg&0x80 != 0 {
			return RegisterHit()
		}
		return RamHit(m.ramBankOffset(reg, addr))
	}
	return MissHit()
}

func (m *Mapper005) writeRegister(addr uint16, data uint8) {
	switch {
	case addr == 0x5100:
		m.prgMode = data & 0x03
	case addr == 0x5101:
		m.chrMode = data & 0x03
	case addr == 0x5102:
		m.prgRAMProtect1 = data & 0x03
	case addr == 0x5103:
		m.prgRAMProtect2 = data & 0x03
	case addr == 0x5104:
		m.exRAMMode = data & 0x03
	case addr == 0x5105:
		m.ntMapping = data
		nt0, nt1, nt2, nt3 := data&0x03, (data>>2)&0x03, (data>>4)&0x03, (data>>6)&0x03
		switch {
		case nt0 == 0 && nt1 == 0 && nt2 == 1 && nt3 == 1:
			m.mirror = MirrorHorizontal
		case nt0 == 0 && nt1 == 1 && nt2 == 0 && nt3 == 1:
			m.mirror = MirrorVertical
		case nt0 == nt1 && nt1 == nt2 && nt2 == nt3:
			if nt0 == 0 {
				m.mirror = MirrorSingleScreen0
			} else {
				m.mirror = MirrorSingleScreen1
			}
		}
	case addr == 0x5106:
		m.fillTile = data
	case addr == 0x5107:
		m.fillColor = data & 0x03
	case addr >= 0x5113 && addr <= 0x5117:
		m.prgBankReg[addr-0x5113] = data
	case addr >= 0x5120 && addr <= 0x512B:
		m.chrBankReg[addr-0x5120] = uint16(data) | uint16(m.chrUpperBits)<<8
	case addr == 0x5130:
		m.chrUpperBits = data & 0x03
	case addr == 0x5203:
		m.irqScanline = data
	case addr == 0x5204:
		m.irqEnable = data&0x80 != 0
	case addr == 0x5205:
		m.multiplierA = data
	case addr == 0x5206:
		m.multiplierB = data
	case addr >= 0x5C00 && addr <= 0x5FFF:
		if m.exRAMMode <= 2 {
			m.exRAM[addr&0x03FF] = data
		}
		// Mode 3 is read-only.
	}
}

func (m *Mapper005) ReadRegister(addr uint16) uint8 {
	switch {
	case addr == 0x5204:
		status := uint8(0)
		if m.inFrame {
			status |= 0x40
		}
		if m.irqActive {
			status |= 0x80
		}
		m.irqActive = false
		return status
	case addr == 0x5205:
		return uint8((uint16(m.multiplierA) * uint16(m.multiplierB)) & 0xFF)
	case addr == 0x5206:
		return uint8(((uint16(m.multiplierA) * uint16(m.multiplierB)) >> 8) & 0xFF)
	case addr >= 0x5C00 && addr <= 0x5FFF:
		if m.exRAMMode >= 2 {
			return m.exRAM[addr&0x03FF]
		}
	}
	return 0
}

func (m *Mapper005) ReadRAM(offset uint32) uint8 {
	return m.prgRAM[offset%uint32(len(m.prgRAM))]
}

func (m *Mapper005) WriteRAM(offset uint32, data uint8) {
	m.prgRAM[offset%uint32(len(m.prgRAM))] = data
}

func (m *Mapper005) chrRomSize() uint32 {
	size := uint32(m.chrBanks) * 8192
	if size == 0 {
		return 8192
	}
	return size
}

func (m *Mapper005) PPUMapRead(addr uint16) PPUHit {
	if addr >= 0x2000 && addr <= 0x3FFF && addr&0x03FF >= 0x03C0 {
		m.bgFetchesRemaining = 2
	}
	if addr >= 0x2000 {
		return PPUMissHit()
	}

	romSize := m.chrRomSize()
	var bank uint32
	switch m.chrMode {
	case 0:
		bank = uint32(m.chrBankReg[7])
		return PPUChrHit((bank*8192 + uint32(addr)) % romSize)
	case 1:
		if addr < 0x1000 {
			bank = uint32(m.chrBankReg[3])
		} else {
			bank = uint32(m.chrBankReg[7])
		}
		return PPUChrHit((bank*4096 + uint32(addr&0x0FFF)) % romSize)
	case 2:
		switch {
		case addr < 0x0800:
			bank = uint32(m.chrBankReg[1])
		case addr < 0x1000:
			bank = uint32(m.chrBankReg[3])
		case addr < 0x1800:
			bank = uint32(m.chrBankReg[5])
		default:
			bank = uint32(m.chrBankReg[7])
		}
		return PPUChrHit((bank*2048 + uint32(addr&0x07FF)) % romSize)
	default:
		bankIndex := (addr >> 10) & 0x03
		if m.bgFetchesRemaining > 0 {
			bank = uint32(m.chrBankReg[8+bankIndex])
			m.bgFetchesRemaining--
		} else {
			wideIndex := (addr >> 10) & 0x07
			bank = uint32(m.chrBankReg[wideIndex])
		}
		return PPUChrHit((bank*1024 + uint32(addr&0x03FF)) % romSize)
	}
}

func (m *Mapper005) PPUMapWrite(addr uint16, data uint8) PPUHit {
	if addr < 0x2000 && m.chrBanks == 0 {
		return PPUChrHit(uint32(addr))
	}
	return PPUMissHit()
}

// PPUReadNametable implements NametableMapper: MMC5 fully replaces the
// coarse mirror-mode decode with a per-quadrant map ($5105) pointing at
// CIRAM page 0, CIRAM page 1, ExRAM, or synthesized Fill-mode bytes.
func (m *Mapper005) PPUReadNametable(addr uint16) (uint8, bool) {
	if addr < 0x2000 || addr > 0x3EFF {
		return 0, false
	}
	if addr&0x03FF >= 0x03C0 {
		m.bgFetchesRemaining = 2
	}
	tempAddr := addr & 0x0FFF
	quadrant := (tempAddr >> 10) & 0x03
	mode := (m.ntMapping >> (quadrant * 2)) & 0x03
	offset := tempAddr & 0x03FF

	switch mode {
	case 0:
		return m.internalNametable[offset], true
	case 1:
		return m.internalNametable[1024+offset], true
	case 2:
		return m.exRAM[offset], true
	default: // 3: fill mode
		if offset >= 0x03C0 {
			// An attribute byte packs the same 2-bit palette select into
			// all four quadrant fields.
			return m.fillColor * 0x55, true
		}
		return m.fillTile, true
	}
}

func (m *Mapper005) PPUWriteNametable(addr uint16, data uint8) bool {
	if addr < 0x2000 || addr > 0x3EFF {
		return false
	}
	tempAddr := addr & 0x0FFF
	quadrant := (tempAddr >> 10) & 0x03
	mode := (m.ntMapping >> (quadrant * 2)) & 0x03
	offset := tempAddr & 0x03FF

	switch mode {
	case 0:
		m.internalNametable[offset] = data
	case 1:
		m.internalNametable[1024+offset] = data
	case 2:
		m.exRAM[offset] = data
	}
	return true
}

func (m *Mapper005) Mirror() MirrorMode { return m.mirror }
func (m *Mapper005) IRQState() bool     { return m.irqActive && m.irqEnable }
func (m *Mapper005) IRQClear()          { m.irqActive = false }

func (m *Mapper005) OnScanline() {
	if !m.inFrame {
		m.inFrame = true
		m.scanlineCount = 0
	} else {
		m.scanlineCount++
	}
	if m.scanlineCount == m.irqScanline && m.irqScanline > 0 {
		m.irqActive = true
	}
	if m.scanlineCount >= 240 {
		m.inFrame = false
		m.scanlineCount = 0
	}
}
