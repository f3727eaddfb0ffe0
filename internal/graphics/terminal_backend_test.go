package graphics

import "testing"

func TestTerminalBackendLifecycle(t *testing.T) {
	b := NewTerminalBackend()
	if err := b.Initialize(Config{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := b.Initialize(Config{}); err == nil {
		t.Fatal("double Initialize should fail")
	}
	win, err := b.CreateWindow("nes", 256, 240)
	if err != nil {
		t.Fatalf("CreateWindow failed: %v", err)
	}
	if w, h := win.GetSize(); w != 256 || h != 240 {
		t.Fatalf("GetSize() = %d,%d, want 256,240", w, h)
	}
	if win.ShouldClose() {
		t.Fatal("freshly created window should not request close")
	}
	if err := win.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if !win.ShouldClose() {
		t.Fatal("window should request close after Cleanup")
	}
}

func TestTerminalWindowRenderFrameAcceptsBlackAndWhiteFrames(t *testing.T) {
	win := &TerminalWindow{width: 256, height: 240, running: true}

	var black, white [256 * 240]uint32
	for i := range white {
		white[i] = 0xFFFFFF
	}

	if err := win.RenderFrame(black); err != nil {
		t.Fatalf("RenderFrame(black) failed: %v", err)
	}
	if err := win.RenderFrame(white); err != nil {
		t.Fatalf("RenderFrame(white) failed: %v", err)
	}
}
