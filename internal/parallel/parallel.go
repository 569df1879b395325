// Package parallel provides the data-parallel loop primitives used by the
// compiler's sample-level and node-level batch work.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
//
// MinChunkSize is 1 because the compiler's loop bodies are coarse units
// (a whole calibration forward pass, a whole node cost estimate), not
// per-element arithmetic.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is
// too small. f must not depend on execution order.
func For(n int, f func(i int), cfg Config) {
	size := chunkSize(n, cfg)
	if size >= n {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Chunks reports how many chunks ForChunks will use for n items, so
// callers can preallocate one partial-result slot per chunk.
func Chunks(n int, cfg Config) int {
	if n <= 0 {
		return 0
	}
	size := chunkSize(n, cfg)
	return (n + size - 1) / size
}

// ForChunks splits [0, n) into contiguous chunks and calls f once per
// chunk, concurrently when the config allows. Chunk indices are dense in
// [0, Chunks(n, cfg)). Use it for reductions: each chunk accumulates a
// private partial result and the caller merges them afterwards.
func ForChunks(n int, cfg Config, f func(chunk, start, end int)) {
	if n <= 0 {
		return
	}
	size := chunkSize(n, cfg)
	if size >= n {
		f(0, 0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := 0
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(c, s, e int) {
			defer wg.Done()
			f(c, s, e)
		}(chunk, start, end)
		chunk++
	}
	wg.Wait()
}

func chunkSize(n int, cfg Config) int {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		return n
	}
	size := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	return max(size, cfg.MinChunkSize)
}
