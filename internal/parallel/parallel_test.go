package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestFor_EveryIndexOnce(t *testing.T) {
	cfg := DefaultConfig()

	n := 257
	seen := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	for i, c := range seen {
		if c != 1 {
			t.Errorf("Index %d visited %d times", i, c)
		}
	}
}

func TestChunksCoverRange(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	for _, n := range []int{0, 1, 3, 4, 5, 17, 100} {
		want := Chunks(n, cfg)
		covered := make([]int32, n)
		var calls int64

		ForChunks(n, cfg, func(chunk, start, end int) {
			atomic.AddInt64(&calls, 1)
			if chunk < 0 || chunk >= want {
				t.Errorf("n=%d: chunk index %d out of [0,%d)", n, chunk, want)
			}
			for i := start; i < end; i++ {
				atomic.AddInt32(&covered[i], 1)
			}
		})

		if calls != int64(want) {
			t.Errorf("n=%d: expected %d chunk calls, got %d", n, want, calls)
		}
		for i, c := range covered {
			if c != 1 {
				t.Errorf("n=%d: index %d covered %d times", n, i, c)
			}
		}
	}
}

func TestForChunksPartialMerge(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}
	n := 50

	partials := make([]int, Chunks(n, cfg))
	ForChunks(n, cfg, func(chunk, start, end int) {
		sum := 0
		for i := start; i < end; i++ {
			sum += i
		}
		partials[chunk] = sum
	})

	total := 0
	for _, p := range partials {
		total += p
	}
	if want := n * (n - 1) / 2; total != want {
		t.Errorf("Expected merged sum %d, got %d", want, total)
	}
}

func TestForChunksDisabledRunsOnce(t *testing.T) {
	cfg := Config{Enabled: false}

	calls := 0
	ForChunks(10, cfg, func(chunk, start, end int) {
		calls++
		if chunk != 0 || start != 0 || end != 10 {
			t.Errorf("Expected single chunk (0,0,10), got (%d,%d,%d)", chunk, start, end)
		}
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
