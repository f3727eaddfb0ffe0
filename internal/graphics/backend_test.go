package graphics

import "testing"

func TestCreateBackendSelectsByType(t *testing.T) {
	if _, ok := mustBackend(t, BackendHeadless).(*HeadlessBackend); !ok {
		t.Fatal("BackendHeadless should create a *HeadlessBackend")
	}
	if _, ok := mustBackend(t, BackendTerminal).(*TerminalBackend); !ok {
		t.Fatal("BackendTerminal should create a *TerminalBackend")
	}
	if _, ok := mustBackend(t, BackendEbitengine).(*EbitengineBackend); !ok {
		t.Fatal("BackendEbitengine should create an *EbitengineBackend")
	}
}

func mustBackend(t *testing.T, bt BackendType) Backend {
	t.Helper()
	b, err := CreateBackend(bt)
	if err != nil {
		t.Fatalf("CreateBackend(%s) failed: %v", bt, err)
	}
	return b
}

func TestAsEbitengineWindowRejectsOtherWindowTypes(t *testing.T) {
	hw := &HeadlessWindow{}
	if _, ok := AsEbitengineWindow(hw); ok {
		t.Fatal("AsEbitengineWindow should reject a *HeadlessWindow")
	}
}
