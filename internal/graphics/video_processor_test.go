package graphics

import "testing"

func TestProcessFrameIsNoOpAtDefaults(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 1.0)
	in := []uint32{0x112233, 0xAABBCC}
	out := vp.ProcessFrame(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %#06x, want unchanged %#06x", i, out[i], in[i])
		}
	}
}

func TestProcessFrameBrightnessScalesChannels(t *testing.T) {
	vp := NewVideoProcessor(0.5, 1.0, 1.0)
	out := vp.ProcessFrame([]uint32{0x808080})
	r := (out[0] >> 16) & 0xFF
	if r >= 0x80 {
		t.Fatalf("halving brightness on 0x80 should darken it, got %#02x", r)
	}
}

func TestProcessFrameSaturationZeroDesaturates(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 0.0)
	out := vp.ProcessFrame([]uint32{0xFF0000}) // pure red
	r := (out[0] >> 16) & 0xFF
	g := (out[0] >> 8) & 0xFF
	b := out[0] & 0xFF
	if r != g || g != b {
		t.Fatalf("zero saturation should leave a gray pixel, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestSetBrightnessContrastSaturationUpdateState(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 1.0)
	vp.SetBrightness(0.8)
	vp.SetContrast(1.2)
	vp.SetSaturation(0.5)
	if vp.brightness != 0.8 || vp.contrast != 1.2 || vp.saturation != 0.5 {
		t.Fatalf("setters did not update state: %+v", vp)
	}
}
