package memory

import "testing"

type stubPPU struct {
	regs [8]uint8
}

func (p *stubPPU) ReadRegister(addr uint16) uint8       { return p.regs[addr&7] }
func (p *stubPPU) WriteRegister(addr uint16, v uint8)   { p.regs[addr&7] = v }

type stubAPU struct {
	lastWrite uint16
	status    uint8
}

func (a *stubAPU) WriteRegister(addr uint16, v uint8) { a.lastWrite = addr }
func (a *stubAPU) ReadStatus() uint8                  { return a.status }

type stubCartridge struct {
	prg     [0x10000]uint8
	chr     [0x2000]uint8
	overNT  bool
	ntValue uint8
	mirror  MirrorMode
}

func (c *stubCartridge) ReadPRG(addr uint16) uint8     { return c.prg[addr] }
func (c *stubCartridge) WritePRG(addr uint16, v uint8)  { c.prg[addr] = v }
func (c *stubCartridge) ReadCHR(addr uint16) uint8     { return c.chr[addr] }
func (c *stubCartridge) WriteCHR(addr uint16, v uint8)  { c.chr[addr] = v }
func (c *stubCartridge) PPUReadNametable(addr uint16) (uint8, bool) {
	if c.overNT {
		return c.ntValue, true
	}
	return 0, false
}
func (c *stubCartridge) PPUWriteNametable(addr uint16, v uint8) bool { return c.overNT }
func (c *stubCartridge) Mirror() MirrorMode                          { return c.mirror }

func TestRAMMirroring(t *testing.T) {
	cart := &stubCartridge{}
	m := New(&stubPPU{}, &stubAPU{}, cart)
	m.Write(0x0010, 0x42)
	if v := m.Read(0x0810); v != 0x42 {
		t.Fatalf("RAM mirror at $0810 = %#02x, want 0x42", v)
	}
	if v := m.Read(0x1810); v != 0x42 {
		t.Fatalf("RAM mirror at $1810 = %#02x, want 0x42", v)
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	ppu := &stubPPU{}
	m := New(ppu, &stubAPU{}, &stubCartridge{})
	m.Write(0x2000, 0x80)
	if ppu.regs[0] != 0x80 {
		t.Fatalf("PPUCTRL not written: %#02x", ppu.regs[0])
	}
	m.Write(0x2008, 0x11) // mirrors to $2000
	if ppu.regs[0] != 0x11 {
		t.Fatalf("PPU register mirroring failed: %#02x", ppu.regs[0])
	}
}

func TestCartridgeRegionRouting(t *testing.T) {
	cart := &stubCartridge{}
	m := New(&stubPPU{}, &stubAPU{}, cart)
	m.Write(0x8000, 0x55)
	if cart.prg[0x8000] != 0x55 {
		t.Fatal("PRG-ROM region write not routed to cartridge")
	}
	cart.prg[0x6000] = 0x99
	if v := m.Read(0x6000); v != 0x99 {
		t.Fatalf("PRG-RAM read = %#02x, want 0x99", v)
	}
}

func TestOAMDMAFallback(t *testing.T) {
	ppu := &stubPPU{}
	m := New(ppu, &stubAPU{}, &stubCartridge{})
	m.Write(0x00FF, 0xAB) // last byte of page 0, the final value DMA writes to OAMDATA
	m.Write(0x4014, 0x00) // DMA from page 0
	if ppu.regs[4] != 0xAB {
		t.Fatalf("OAM DMA fallback didn't write OAMDATA: %#02x", ppu.regs[4])
	}
}

func TestPPUMemoryHorizontalMirroring(t *testing.T) {
	cart := &stubCartridge{mirror: MirrorHorizontal}
	pm := NewPPUMemory(cart)
	pm.Write(0x2000, 0x11)
	if v := pm.Read(0x2400); v != 0x11 {
		t.Fatalf("horizontal mirror $2000->$2400 = %#02x", v)
	}
	pm.Write(0x2800, 0x22)
	if v := pm.Read(0x2C00); v != 0x22 {
		t.Fatalf("horizontal mirror $2800->$2C00 = %#02x", v)
	}
}

func TestPPUMemoryNametableOverrideTakesPriority(t *testing.T) {
	cart := &stubCartridge{overNT: true, ntValue: 0x7E, mirror: MirrorVertical}
	pm := NewPPUMemory(cart)
	if v := pm.Read(0x2000); v != 0x7E {
		t.Fatalf("nametable override not consulted: got %#02x", v)
	}
}

func TestPaletteBackgroundMirroring(t *testing.T) {
	pm := NewPPUMemory(&stubCartridge{mirror: MirrorVertical})
	pm.Write(0x3F00, 0x0A)
	if v := pm.Read(0x3F10); v != 0x0A {
		t.Fatalf("palette $3F10 should mirror $3F00, got %#02x", v)
	}
}
