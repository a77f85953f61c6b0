package workloads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsRegistered(t *testing.T) {
	names := Names()
	for _, want := range []string{"noop", "time-now", "sha256-1k", "sort-1k", "map-insert-1k", "sleep-1ms", "alloc-4k"} {
		assert.Contains(t, names, want)
	}
	assert.IsIncreasing(t, names)
}

func TestLookup(t *testing.T) {
	w, err := Lookup("map-insert-1k")
	require.NoError(t, err)
	assert.Equal(t, 1024.0, w.Divisor)
	assert.NotEmpty(t, w.Description)

	_, err = Lookup("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownWorkload)
}

func TestBuiltinsRun(t *testing.T) {
	for _, w := range All() {
		if w.Name == "sleep-1ms" {
			continue
		}
		t.Run(w.Name, func(t *testing.T) {
			assert.NotPanics(t, w.Fn)
		})
	}
}

func TestRegister(t *testing.T) {
	calls := 0
	require.NoError(t, Register(Workload{Name: "test-counter", Fn: func() { calls++ }}))
	t.Cleanup(func() {
		mu.Lock()
		delete(registry, "test-counter")
		mu.Unlock()
	})

	w, err := Lookup("test-counter")
	require.NoError(t, err)
	assert.Equal(t, 1.0, w.Divisor, "divisor defaults to 1")
	w.Fn()
	assert.Equal(t, 1, calls)

	assert.Error(t, Register(Workload{Name: "", Fn: func() {}}))
	assert.Error(t, Register(Workload{Name: "nil-fn"}))
}

// A default run times 1000 calls, 16 attempts per trial and 10 trials per
// batch. Every built-in must keep one such batch well under a minute.
func TestDefaultBatchCostBounded(t *testing.T) {
	const (
		defaultIterations = 1000
		innerRepeats      = 16
		defaultRuns       = 10
		budget            = 20 * time.Second
	)
	for _, w := range All() {
		per := time.Duration(1<<63 - 1)
		for i := 0; i < 5; i++ {
			start := time.Now()
			w.Fn()
			if d := time.Since(start); d < per {
				per = d
			}
		}
		iterations := uint64(defaultIterations)
		if w.MaxIterations > 0 && iterations > w.MaxIterations {
			iterations = w.MaxIterations
		}
		batch := per * time.Duration(iterations*innerRepeats*defaultRuns)
		assert.Less(t, batch, budget, "%s: one default batch takes about %s", w.Name, batch)
	}
}

func TestSleepWorkloadCapsIterations(t *testing.T) {
	w, err := Lookup("sleep-1ms")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w.MaxIterations)
}
