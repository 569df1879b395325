// Package target holds the backend profiles the code generator knows
// how to emit for: instruction set, alignment, memory limits, and the
// headers and preprocessor defines each platform's toolchain expects.
package target

import "sort"

// Config describes one embedded target platform.
type Config struct {
	Name           string
	InstructionSet string
	Architecture   string

	// VectorWidth is the SIMD register width in bits, 0 when the
	// target has no vector unit.
	VectorWidth int

	// Alignment is the buffer alignment in bytes required by the
	// target's load instructions.
	Alignment int

	WordSize     int
	LittleEndian bool
	HasFPU       bool
	HasDSP       bool

	// MemoryModel is "harvard" or "von_neumann".
	MemoryModel string

	// StackSize and HeapSize bound the generated runtime's static
	// allocations, in bytes.
	StackSize int
	HeapSize  int

	CompilerFlags []string
	Defines       []string
	Includes      []string
}

var configs = map[string]Config{
	"cortex-m": {
		Name:           "cortex-m",
		InstructionSet: "arm",
		Architecture:   "cortex-m",
		VectorWidth:    128,
		Alignment:      4,
		WordSize:       32,
		LittleEndian:   true,
		HasFPU:         true,
		HasDSP:         true,
		MemoryModel:    "harvard",
		StackSize:      8192,
		HeapSize:       16384,
		CompilerFlags:  []string{"-mcpu=cortex-m4", "-mthumb", "-mfpu=fpv4-sp-d16"},
		Defines:        []string{"ARM_MATH_CM4", "CORTEX_M"},
		Includes:       []string{"arm_math.h", "cmsis_os.h"},
	},
	"riscv": {
		Name:           "riscv",
		InstructionSet: "riscv",
		Architecture:   "rv32i",
		VectorWidth:    256,
		Alignment:      4,
		WordSize:       32,
		LittleEndian:   true,
		HasFPU:         true,
		HasDSP:         false,
		MemoryModel:    "von_neumann",
		StackSize:      4096,
		HeapSize:       8192,
		CompilerFlags:  []string{"-march=rv32imf", "-mabi=ilp32f"},
		Defines:        []string{"RISCV", "RV32I"},
		Includes:       []string{"riscv_vector.h"},
	},
	"xtensa": {
		Name:           "xtensa",
		InstructionSet: "xtensa",
		Architecture:   "lx6",
		VectorWidth:    128,
		Alignment:      4,
		WordSize:       32,
		LittleEndian:   true,
		HasFPU:         true,
		HasDSP:         true,
		MemoryModel:    "harvard",
		StackSize:      8192,
		HeapSize:       32768,
		CompilerFlags:  []string{"-mlongcalls"},
		Defines:        []string{"XTENSA", "ESP32"},
		Includes:       []string{"esp_system.h", "xtensa/hal.h"},
	},
	"generic": {
		Name:           "generic",
		InstructionSet: "generic",
		Architecture:   "generic",
		VectorWidth:    128,
		Alignment:      8,
		WordSize:       32,
		LittleEndian:   true,
		HasFPU:         true,
		HasDSP:         false,
		MemoryModel:    "von_neumann",
		StackSize:      16384,
		HeapSize:       65536,
		CompilerFlags:  []string{"-O2"},
		Defines:        []string{"GENERIC"},
		Includes:       []string{"iostream", "cstdint"},
	},
}

// Lookup returns the profile registered under name. The returned Config
// is a copy; callers may adjust it without affecting the registry.
func Lookup(name string) (Config, bool) {
	cfg, ok := configs[name]
	return cfg, ok
}

// Default returns the generic portable profile.
func Default() Config {
	return configs["generic"]
}

// Names lists the registered target names in sorted order.
func Names() []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasVectorSupport reports whether the profile has a usable vector unit.
func (c Config) HasVectorSupport() bool {
	return c.VectorWidth > 0
}
