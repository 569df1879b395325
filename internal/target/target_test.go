package target

import "testing"

func TestLookup(t *testing.T) {
	cfg, ok := Lookup("cortex-m")
	if !ok {
		t.Fatal("cortex-m should be registered")
	}
	if cfg.InstructionSet != "arm" {
		t.Errorf("Expected arm, got %s", cfg.InstructionSet)
	}
	if cfg.StackSize != 8192 || cfg.HeapSize != 16384 {
		t.Errorf("Unexpected memory limits: stack=%d heap=%d", cfg.StackSize, cfg.HeapSize)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("z80"); ok {
		t.Error("z80 should not be registered")
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	cfg, _ := Lookup("riscv")
	cfg.StackSize = 1

	again, _ := Lookup("riscv")
	if again.StackSize != 4096 {
		t.Errorf("Registry mutated: stack=%d", again.StackSize)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Name != "generic" {
		t.Errorf("Expected generic, got %s", cfg.Name)
	}
	if cfg.Alignment != 8 {
		t.Errorf("Expected alignment 8, got %d", cfg.Alignment)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 4 {
		t.Fatalf("Expected 4 targets, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted: %v", names)
		}
	}
}

func TestHasVectorSupport(t *testing.T) {
	for _, name := range Names() {
		cfg, _ := Lookup(name)
		if !cfg.HasVectorSupport() {
			t.Errorf("%s should report vector support", name)
		}
	}
}
