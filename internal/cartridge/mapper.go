// Package cartridge implements iNES/NES 2.0 ROM loading and the mapper
// capability set that decodes CPU/PPU bus traffic for a loaded cartridge.
package cartridge

// MirrorMode is the nametable mirroring mode exposed by a mapper. A mapper
// may change its mirror mode at runtime (MMC1, MMC3, MMC5, FME-7).
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// HitKind tags the result of a mapper address decode.
type HitKind uint8

const (
	// Miss means the mapper did not claim this address; the caller falls
	// back to open-bus behaviour.
	Miss HitKind = iota
	// Rom means the address resolves to an offset into the cartridge's
	// PRG-ROM or CHR-ROM/RAM backing array.
	Rom
	// Ram means the address resolves to an offset into RAM owned by the
	// mapper itself (PRG-RAM, ExRAM, ...).
	Ram
	// Register means the mapper consumed the access as a control-register
	// poke; there is no backing memory cell to read or write through it.
	Register
)

// Hit replaces the "$FFFFFFFF sentinel + dynamic_cast" pattern used to
// signal "this access hit RAM, not ROM" with a proper tagged sum type.
type Hit struct {
	Kind   HitKind
	Offset uint32
}

func RomHit(offset uint32) Hit { return Hit{Kind: Rom, Offset: offset} }
func RamHit(offset uint32) Hit { return Hit{Kind: Ram, Offset: offset} }
func RegisterHit() Hit         { return Hit{Kind: Register} }
func MissHit() Hit             { return Hit{Kind: Miss} }

// PPUHitKind tags the result of a mapper PPU-bus decode.
type PPUHitKind uint8

const (
	PPUMiss PPUHitKind = iota
	PPUChr
	PPUSynthetic
)

// PPUHit is the PPU-side counterpart of Hit. Synthetic carries a literal
// byte the mapper produced without backing storage (unused by the six
// mappers implemented here, but part of the capability set §4.5 specifies).
type PPUHit struct {
	Kind   PPUHitKind
	Offset uint32
	Byte   uint8
}

func PPUChrHit(offset uint32) PPUHit        { return PPUHit{Kind: PPUChr, Offset: offset} }
func PPUSyntheticHit(b uint8) PPUHit        { return PPUHit{Kind: PPUSynthetic, Byte: b} }
func PPUMissHit() PPUHit                    { return PPUHit{Kind: PPUMiss} }

// Mapper is the capability set every cartridge variant implements: CPU/PPU
// address decode, mirroring, and an optional IRQ source. Cartridge-resident
// RAM lives inside the mapper implementing it, never in a shared sentinel
// offset space.
type Mapper interface {
	Reset()

	CPUMapRead(addr uint16) Hit
	CPUMapWrite(addr uint16, data uint8) Hit
	ReadRAM(offset uint32) uint8
	WriteRAM(offset uint32, data uint8)

	PPUMapRead(addr uint16) PPUHit
	PPUMapWrite(addr uint16, data uint8) PPUHit

	Mirror() MirrorMode
	IRQState() bool
	IRQClear()
	OnScanline()
}

// RegisterReader is implemented by mappers with CPU-readable control
// registers beyond plain ROM/RAM (MMC5's $5000-$5FFF block: IRQ status,
// multiplier results, ExRAM).
type RegisterReader interface {
	ReadRegister(addr uint16) uint8
}

// NametableMapper lets a mapper intercept PPU nametable traffic directly
// instead of routing it through the coarse Mirror() mode. Only MMC5 needs
// this; the PPU checks for it before falling back to Mirror()-based
// decoding of $2000-$3EFF.
type NametableMapper interface {
	PPUReadNametable(addr uint16) (data uint8, ok bool)
	PPUWriteNametable(addr uint16, data uint8) (ok bool)
}

// CycleMapper is implemented by mappers whose IRQ counts CPU cycles rather
// than PPU scanlines (FME-7). The Bus calls OnCPUCycle once per CPU clock.
type CycleMapper interface {
	OnCPUCycle()
}
