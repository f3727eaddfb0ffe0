package graphics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeadlessBackendRequiresInitializeBeforeCreateWindow(t *testing.T) {
	b := NewHeadlessBackend()
	if _, err := b.CreateWindow("test", 256, 240); err == nil {
		t.Fatal("CreateWindow before Initialize should fail")
	}
	if err := b.Initialize(Config{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := b.CreateWindow("test", 256, 240); err != nil {
		t.Fatalf("CreateWindow after Initialize failed: %v", err)
	}
	if !b.IsHeadless() {
		t.Fatal("HeadlessBackend.IsHeadless() = false, want true")
	}
}

func TestHeadlessWindowDumpFramesWritesOnlyRequestedFrames(t *testing.T) {
	dir := t.TempDir()
	b := NewHeadlessBackend()
	if err := b.Initialize(Config{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	win, err := b.CreateWindow("test", 256, 240)
	if err != nil {
		t.Fatalf("CreateWindow failed: %v", err)
	}
	hw := win.(*HeadlessWindow)
	hw.SetOutputPath(filepath.Join(dir, "frame"))
	hw.DumpFrames(2)

	var frame [256 * 240]uint32
	for i := 0; i < 3; i++ {
		if err := hw.RenderFrame(frame); err != nil {
			t.Fatalf("RenderFrame failed: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "frame_002.ppm")); err != nil {
		t.Fatalf("expected frame_002.ppm to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_001.ppm")); err == nil {
		t.Fatal("frame_001.ppm should not have been dumped")
	}
	if hw.GetFrameCount() != 3 {
		t.Fatalf("GetFrameCount() = %d, want 3", hw.GetFrameCount())
	}
}
