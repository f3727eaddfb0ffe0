package cartridge

import (
	"bytes"
	"testing"
)

func buildINES(prgBanks, chrBanks, mapperID, flags6 uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1a")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	buf.WriteByte(flags6 | (mapperID&0x0F)<<4)
	buf.WriteByte(mapperID & 0xF0)
	buf.Write(make([]byte, 8)) // bytes 8-15

	prg := make([]byte, int(prgBanks)*16384)
	for i := range prg {
		prg[i] = uint8(i)
	}
	buf.Write(prg)

	if chrBanks > 0 {
		chr := make([]byte, int(chrBanks)*8192)
		for i := range chr {
			chr[i] = uint8(i + 1)
		}
		buf.Write(chr)
	}
	return buf.Bytes()
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0)
	data[0] = 'X'
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected InvalidRom for bad magic")
	}
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	data := buildINES(1, 1, 200, 0)
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected InvalidRom for unsupported mapper")
	}
}

func TestLoadNROMMirrorsHalfBank(t *testing.T) {
	data := buildINES(1, 1, 0, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lo, ok := cart.CPURead(0x8000)
	if !ok {
		t.Fatal("expected hit at 0x8000")
	}
	hi, ok := cart.CPURead(0xC000)
	if !ok {
		t.Fatal("expected hit at 0xC000")
	}
	if lo != hi {
		t.Fatalf("16KB NROM should mirror: got %d vs %d", lo, hi)
	}
}

func TestNROMPRGRAMRoundTrip(t *testing.T) {
	data := buildINES(1, 1, 0, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cart.CPUWrite(0x6123, 0x42)
	v, ok := cart.CPURead(0x6123)
	if !ok || v != 0x42 {
		t.Fatalf("PRG-RAM round trip failed: got %d ok=%v", v, ok)
	}
}

func TestMMC1ShiftRegisterCommit(t *testing.T) {
	data := buildINES(4, 0, 1, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Commit control=0x0C (bit0-1 = 0b00 -> one-screen-lo, bits2-3 = 0b11
	// -> PRG mode 3: switch $8000, fix last at $C000), then PRG bank=3.
	writeSerial(cart, 0x8000, 0x0C)
	writeSerial(cart, 0xE000, 0x03)

	lo, ok := cart.CPURead(0x8000)
	if !ok {
		t.Fatal("expected hit")
	}
	hi, _ := cart.CPURead(0xC000)

	prgROM := cart.prgROM
	wantLo := prgROM[3*0x4000]
	wantHi := prgROM[3*0x4000] // last bank (4 banks, index 3) fixed at $C000
	if lo != wantLo {
		t.Errorf("lo bank mismatch: got %d want %d", lo, wantLo)
	}
	if hi != wantHi {
		t.Errorf("hi bank mismatch: got %d want %d", hi, wantHi)
	}
}

// writeSerial performs the 5-bit serial write sequence MMC1 expects: one
// bit per write, LSB first, into the register selected by addr.
func writeSerial(cart *Cartridge, addr uint16, value uint8) {
	for i := 0; i < 5; i++ {
		bit := (value >> i) & 0x01
		cart.CPUWrite(addr, bit)
	}
}

func TestMMC1ResetBitAbortsWithoutCommit(t *testing.T) {
	data := buildINES(2, 0, 1, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	before, _ := cart.CPURead(0x8000)
	cart.CPUWrite(0x8000, 1)
	cart.CPUWrite(0x8000, 1)
	cart.CPUWrite(0x8000, 0x80) // reset bit, no commit
	after, _ := cart.CPURead(0x8000)
	if before != after {
		t.Fatalf("reset-bit write must not commit a bank change: before=%d after=%d", before, after)
	}
}

func TestUxROMFixedLastBank(t *testing.T) {
	data := buildINES(4, 0, 2, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cart.CPUWrite(0x8000, 2)
	lo, _ := cart.CPURead(0x8000)
	hi, _ := cart.CPURead(0xC000)
	if lo != cart.prgROM[2*0x4000] {
		t.Errorf("switchable bank wrong: got %d", lo)
	}
	if hi != cart.prgROM[3*0x4000] {
		t.Errorf("fixed last bank wrong: got %d", hi)
	}
}

func TestMMC3IRQCounterReload(t *testing.T) {
	data := buildINES(4, 2, 4, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cart.CPUWrite(0xC000, 4) // IRQ latch = 4
	cart.CPUWrite(0xC001, 0) // force reload on next scanline
	cart.CPUWrite(0xE001, 0) // enable IRQ

	for i := 0; i < 5; i++ {
		cart.OnScanline()
	}
	if !cart.IRQState() {
		t.Fatal("expected MMC3 IRQ to assert after counter reaches zero")
	}
	cart.IRQClear()
	if cart.IRQState() {
		t.Fatal("IRQClear should deassert")
	}
}

func TestFME7CycleIRQUnderflow(t *testing.T) {
	data := buildINES(4, 2, 69, 0)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cart.CPUWrite(0x8000, 0x0E) // select IRQ counter low
	cart.CPUWrite(0xA000, 0x02)
	cart.CPUWrite(0x8000, 0x0F) // select IRQ counter high
	cart.CPUWrite(0xA000, 0x00)
	cart.CPUWrite(0x8000, 0x0D) // IRQ control
	cart.CPUWrite(0xA000, 0x81) // enable + counter-enable

	for i := 0; i < 3; i++ {
		cart.OnCPUCycle()
	}
	if !cart.IRQState() {
		t.Fatal("expected FME-7 IRQ after counter underflow")
	}
}

func TestPaletteIndependentMapperMirror(t *testing.T) {
	data := buildINES(1, 1, 0, 0x01) // vertical mirror bit set
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cart.Mirror() != MirrorVertical {
		t.Fatalf("expected vertical mirror from header, got %v", cart.Mirror())
	}
}
