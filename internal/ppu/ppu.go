// Package ppu implements the NES Picture Processing Unit (2C02): the
// per-dot rendering pipeline, OAM/secondary OAM, nametable/palette access
// through the cartridge, and vertical-blank/NMI generation.
package ppu

import "gones/internal/memory"

// PPU drives a 256x240 frame at 341 dots per scanline, 262 scanlines per
// frame, three PPU dots per CPU cycle.
type PPU struct {
	// CPU-visible registers ($2000-$2007)
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	// Scroll/address latches
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle, shared by $2005/$2006

	memory *memory.PPUMemory

	scanline    int // -1 (pre-render) .. 260
	cycle       int // 0 .. 340
	frameCount  uint64
	oddFrame    bool
	readBuffer  uint8 // buffered byte for non-palette $2007 reads

	oam              [256]uint8
	secondaryOAM     [32]uint8
	spriteIndexes    [8]uint8 // original OAM index of each secondary-OAM sprite
	spriteCount      uint8
	sprite0OnScanline bool
	sprite0Hit       bool
	spriteOverflow   bool
	lastEvalScanline int

	frameBuffer [256 * 240]uint32

	nmiCallback           func()
	frameCompleteCallback func()
	scanlineCallback      func()

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	cycleCount uint64
}

// New creates a PPU parked at the pre-render scanline, matching power-on.
func New() *PPU {
	return &PPU{scanline: -1}
}

// Reset returns the PPU to documented power-on state: vblank and sprite
// overflow set (status 0xA0), sprite-0-hit clear, scroll latches and OAM
// zeroed.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0
	p.oamAddr = 0

	p.v, p.t, p.x, p.w = 0, 0, 0, false

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.readBuffer = 0

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false
	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false
	p.cycleCount = 0
	p.lastEvalScanline = -999

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

func (p *PPU) SetMemory(mem *memory.PPUMemory)        { p.memory = mem }
func (p *PPU) SetNMICallback(callback func())         { p.nmiCallback = callback }
func (p *PPU) SetFrameCompleteCallback(cb func())     { p.frameCompleteCallback = cb }

// SetScanlineCallback installs the mapper's scanline-counting IRQ hook
// (MMC3/MMC5, see §4.5). It fires once per visible scanline, at dot 260,
// while rendering is enabled — the documented simplification of the real
// hardware's A12-rising-edge trigger (see DESIGN.md).
func (p *PPU) SetScanlineCallback(cb func()) { p.scanlineCallback = cb }

// ReadRegister services a CPU read of $2000-$2007. Write-only registers
// return PPU open bus (the low 5 bits of the last value driven onto the
// bus, approximated here by PPUSTATUS's low bits).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &= 0x3F // clear vblank (bit7) and sprite-0-hit (bit6)
		p.sprite0Hit = false
		p.w = false
		return status
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return p.ppuStatus & 0x1F
	}
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002:
		// read-only
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes OAM directly, bypassing $2003/$2004 — used by OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// Step advances the PPU by one dot, handling the scanline/frame wraparound
// (dropping the final pre-render dot on odd frames while rendering is
// enabled), vblank/NMI edges, and per-dot rendering.
func (p *PPU) Step() {
	p.cycleCount++

	p.cycle++
	if p.scanline == -1 && p.cycle == 340 && p.oddFrame && p.renderingEnabled {
		p.cycle = 341 // skip the last pre-render dot of odd frames
	}
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++

		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame

			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		p.ppuStatus &= 0x9F // clear sprite-0-hit and sprite-overflow at vblank start
		p.sprite0Hit = false
		p.spriteOverflow = false

		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}

	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &= 0x7F
	}

	if p.scanline == 0 && p.cycle == 0 && p.renderingEnabled {
		p.v = p.t
	}

	if p.scanline >= -1 && p.scanline < 240 {
		p.renderCycle()
	}

	if p.cycle == 260 && p.scanline >= 0 && p.scanline < 240 && p.renderingEnabled && p.scanlineCallback != nil {
		p.scanlineCallback()
	}
}

func (p *PPU) renderCycle() {
	if p.scanline < -1 || p.scanline >= 240 {
		return
	}

	if p.spritesEnabled && p.scanline >= 0 && p.scanline < 240 && p.cycle == 1 {
		if p.lastEvalScanline != p.scanline {
			p.evaluateSprites()
		}
	}

	// Sprite-0 hit detection starts one dot after the background pipeline's
	// first visible pixel (cycle 2 == pixel 0).
	if p.scanline < 0 || p.scanline >= 240 || p.cycle < 2 || p.cycle > 257 {
		return
	}
	if p.memory == nil || (!p.backgroundEnabled && !p.spritesEnabled) {
		return
	}

	pixelX := p.cycle - 2
	pixelY := p.scanline

	background := SpritePixel{transparent: true}
	sprite := SpritePixel{transparent: true}

	if p.backgroundEnabled {
		background = p.renderBackgroundPixel(pixelX, pixelY)
	}
	if p.spritesEnabled {
		sprite = p.renderSpritePixel(pixelX, pixelY)
	}

	p.frameBuffer[pixelY*256+pixelX] = p.compositeFinalPixel(background, sprite)
}

// SpritePixel is the result of resolving one background or sprite pixel:
// its color index, which palette it came from, the already-resolved RGB
// value, and (for sprites) origin/priority needed for sprite-0 hit and
// front/back compositing.
type SpritePixel struct {
	colorIndex   uint8
	paletteIndex uint8
	rgbColor     uint32
	spriteIndex  int8
	priority     bool // true = behind background
	transparent  bool
}

// evaluateSprites scans all 64 OAM entries once per visible scanline,
// copying up to 8 into secondary OAM and flagging overflow on a 9th hit.
// The real 2C02 evaluates this incrementally across dots 65..256 and has a
// documented diagonal-read quirk when overflow detection walks off a
// sprite's Y byte into its other bytes; this implementation does the
// equivalent work in one shot at dot 1 and omits that quirk (see
// DESIGN.md).
func (p *PPU) evaluateSprites() {
	p.lastEvalScanline = p.scanline

	p.spriteCount = 0
	p.spriteOverflow = false
	p.sprite0OnScanline = false

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	found := 0
	for spriteIndex := 0; spriteIndex < 64; spriteIndex++ {
		oamIndex := spriteIndex * 4
		sY := int(p.oam[oamIndex])
		tileIndex := p.oam[oamIndex+1]
		attributes := p.oam[oamIndex+2]
		sX := p.oam[oamIndex+3]

		if p.scanline < sY+1 || p.scanline >= sY+1+spriteHeight {
			continue
		}

		if found < 8 {
			secondary := found * 4
			p.secondaryOAM[secondary] = uint8(sY)
			p.secondaryOAM[secondary+1] = tileIndex
			p.secondaryOAM[secondary+2] = attributes
			p.secondaryOAM[secondary+3] = sX
			p.spriteIndexes[found] = uint8(spriteIndex)
			if spriteIndex == 0 {
				p.sprite0OnScanline = true
			}
			found++
		} else {
			p.spriteOverflow = true
			p.ppuStatus |= 0x20
			break
		}
	}

	p.spriteCount = uint8(found)
}

// renderBackgroundPixel resolves a background pixel by computing its
// scrolled world position directly from v/t/x rather than shifting a
// pattern register each dot (the 2C02's actual pipeline keeps two 16-bit
// shift registers; this computes the same per-pixel result directly —
// documented as an accepted simplification in DESIGN.md).
func (p *PPU) renderBackgroundPixel(pixelX, pixelY int) SpritePixel {
	scrollX := int(p.t&0x001F)<<3 + int(p.x)
	scrollY := int((p.t>>5)&0x001F)<<3 + int((p.t>>12)&0x0007)
	nametable := int((p.t >> 10) & 0x0003)

	worldX := pixelX + scrollX
	worldY := pixelY + scrollY

	if worldX < 0 {
		nametable ^= 1
		worldX += 256
	} else if worldX >= 256 {
		nametable ^= 1
		worldX -= 256
	}
	if worldY < 0 {
		nametable ^= 2
		worldY += 240
	} else if worldY >= 240 {
		nametable ^= 2
		worldY -= 240
	}

	tileX := worldX >> 3
	tileY := worldY >> 3
	pixelInTileX := worldX & 7
	pixelInTileY := worldY & 7
	if tileX < 0 || tileX >= 32 || tileY < 0 || tileY >= 30 {
		return SpritePixel{transparent: true}
	}

	nametableAddr := 0x2000 | (uint16(nametable&3) << 10) | uint16(tileY*32+tileX)
	tileID := p.memory.Read(nametableAddr)

	attributeAddr := 0x23C0 | (uint16(nametable&3) << 10) | uint16((tileY>>2)*8+(tileX>>2))
	attributeByte := p.memory.Read(attributeAddr)
	blockID := ((tileX & 3) >> 1) + ((tileY&3)>>1)*2
	paletteIndex := (attributeByte >> (blockID << 1)) & 0x03

	var patternTableBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}
	patternAddr := patternTableBase + uint16(tileID)*16 + uint16(pixelInTileY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 8)

	bitShift := 7 - pixelInTileX
	colorIndex := ((patternHigh >> bitShift) & 1 << 1) | ((patternLow >> bitShift) & 1)

	var paletteAddr uint16 = 0x3F00
	if colorIndex != 0 {
		paletteAddr = 0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex)
	}
	rgbColor := p.NESColorToRGB(p.memory.Read(paletteAddr))

	return SpritePixel{
		colorIndex:   colorIndex,
		paletteIndex: paletteIndex,
		rgbColor:     rgbColor,
		spriteIndex:  -1,
		transparent:  colorIndex == 0,
	}
}

// renderSpritePixel walks secondary OAM in priority order (lowest index
// wins) and returns the first sprite whose box contains this pixel with a
// non-transparent color.
func (p *PPU) renderSpritePixel(pixelX, pixelY int) SpritePixel {
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	for i := 0; i < int(p.spriteCount); i++ {
		secondary := i * 4
		sY := int(p.secondaryOAM[secondary])
		tileIndex := p.secondaryOAM[secondary+1]
		attributes := p.secondaryOAM[secondary+2]
		sX := int(p.secondaryOAM[secondary+3])

		if pixelX < sX || pixelX >= sX+8 || pixelY < sY+1 || pixelY >= sY+1+spriteHeight {
			continue
		}

		spriteX := pixelX - sX
		spriteY := pixelY - (sY + 1)
		if attributes&0x40 != 0 {
			spriteX = 7 - spriteX
		}
		if attributes&0x80 != 0 {
			spriteY = spriteHeight - 1 - spriteY
		}

		colorIndex := p.spritePatternColor(tileIndex, spriteX, spriteY)
		if colorIndex == 0 {
			continue
		}

		if p.isOriginalSprite0(i) && !p.sprite0Hit {
			p.checkSprite0Hit(pixelX, pixelY, colorIndex)
		}

		paletteIndex := attributes & 0x03
		paletteAddr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
		rgbColor := p.NESColorToRGB(p.memory.Read(paletteAddr))

		return SpritePixel{
			colorIndex:   colorIndex,
			paletteIndex: paletteIndex,
			rgbColor:     rgbColor,
			spriteIndex:  int8(i),
			priority:     attributes&0x20 != 0,
		}
	}

	return SpritePixel{spriteIndex: -1, transparent: true}
}

// spritePatternColor resolves one pixel of a sprite's pattern data,
// handling the 8x16 tile-index-bit-0-selects-table / bit-cleared-for-
// addressing convention.
func (p *PPU) spritePatternColor(tileIndex uint8, pixelX, pixelY int) uint8 {
	if pixelX < 0 || pixelX >= 8 || pixelY < 0 || pixelY >= 16 {
		return 0
	}

	var patternTableBase uint16
	if p.ppuCtrl&0x20 == 0 {
		if p.ppuCtrl&0x08 != 0 {
			patternTableBase = 0x1000
		}
	} else {
		if tileIndex&0x01 != 0 {
			patternTableBase = 0x1000
		}
		tileIndex &= 0xFE
		if pixelY >= 8 {
			tileIndex++
			pixelY -= 8
		}
	}

	patternAddr := patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 8)

	bitShift := 7 - pixelX
	return ((patternHigh >> bitShift) & 1 << 1) | ((patternLow >> bitShift) & 1)
}

func (p *PPU) isOriginalSprite0(secondaryIndex int) bool {
	if secondaryIndex >= int(p.spriteCount) {
		return false
	}
	return p.spriteIndexes[secondaryIndex] == 0
}

// checkSprite0Hit implements §4.2's sprite-0 hit contract: both layers
// must be opaque, x=255 is excluded, and the left-edge clip masks (PPUMASK
// bits 1/2) suppress detection in the first 8 pixels.
func (p *PPU) checkSprite0Hit(pixelX, pixelY int, spriteColorIndex uint8) {
	if p.sprite0Hit || !p.backgroundEnabled || !p.spritesEnabled {
		return
	}
	if pixelX < 0 || pixelX >= 255 || pixelY < 0 || pixelY >= 240 {
		return
	}
	if pixelX < 8 && (p.ppuMask&0x02 == 0 || p.ppuMask&0x04 == 0) {
		return
	}
	if spriteColorIndex == 0 {
		return
	}

	background := p.renderBackgroundPixel(pixelX, pixelY)
	if !background.transparent && background.colorIndex != 0 {
		p.sprite0Hit = true
		p.ppuStatus |= 0x40
	}
}

// compositeFinalPixel applies the documented sprite-front/sprite-back
// priority rule, falling back to the backdrop color ($3F00) when both
// layers are transparent.
func (p *PPU) compositeFinalPixel(background, sprite SpritePixel) uint32 {
	if sprite.transparent {
		if background.transparent {
			return p.NESColorToRGB(p.memory.Read(0x3F00))
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}
	if sprite.priority && p.backgroundEnabled {
		return background.rgbColor
	}
	return sprite.rgbColor
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = p.ppuMask&0x08 != 0
	p.spritesEnabled = p.ppuMask&0x10 != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

func (p *PPU) checkNMI() {
	if p.ppuCtrl&0x80 != 0 && p.ppuStatus&0x80 != 0 && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

// writePPUScroll implements the documented t/x/w update rule for $2005:
// first write loads coarse X and fine X, second write loads fine/coarse Y.
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | uint16(value)>>3
		p.x = value & 0x07
	} else {
		p.t = (p.t & 0x8FFF) | (uint16(value)&0x07)<<12
		p.t = (p.t & 0xFC1F) | (uint16(value)&0xF8)<<2
	}
	p.w = !p.w
}

// writePPUAddr implements the documented t/v/w update rule for $2006:
// first write loads the high 6 bits of t, second write loads the low 8 and
// commits t to v.
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | (uint16(value)&0x3F)<<8
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// readPPUData implements $2007's buffered-read quirk: palette reads return
// the current byte immediately, everything else returns the previous
// buffered byte while the buffer refills from the underlying nametable.
func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}
	p.advanceVRAMAddress()
	return data
}

func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

func (p *PPU) GetFrameBuffer() [256 * 240]uint32 { return p.frameBuffer }
func (p *PPU) GetFrameCount() uint64             { return p.frameCount }
func (p *PPU) SetFrameCount(count uint64)        { p.frameCount = count }
func (p *PPU) GetScanline() int                  { return p.scanline }
func (p *PPU) GetCycle() int                     { return p.cycle }
func (p *PPU) IsRenderingEnabled() bool          { return p.renderingEnabled }
func (p *PPU) IsVBlank() bool                    { return p.ppuStatus&0x80 != 0 }
func (p *PPU) GetCycleCount() uint64             { return p.cycleCount }

// ClearFrameBuffer fills the entire frame buffer with color.
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

// nesColorPalette is the fixed 64-entry 2C02 NTSC palette (0xFFRRGGBB;
// NESColorToRGB strips the alpha byte).
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB maps a 2C02 palette index (0-63) to 0x00RRGGBB.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 { return NESColorToRGB(colorIndex) }
