// Package workloads is the catalogue of named workloads the CLI can run.
package workloads

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ErrUnknownWorkload is returned by Lookup for names not in the catalogue.
var ErrUnknownWorkload = errors.New("unknown workload")

// Workload is a named unit of code to measure. Divisor is the number of
// logical operations one call performs; results are normalised by it.
// MaxIterations, when set, caps the calls per timed attempt for workloads
// too slow for the configured iteration count.
type Workload struct {
	Name          string
	Description   string
	Divisor       float64
	MaxIterations uint64
	Fn            func()
}

var (
	mu       sync.RWMutex
	registry = map[string]Workload{}
)

// Register adds w to the catalogue, replacing any workload with the same name.
func Register(w Workload) error {
	if w.Name == "" {
		return errors.New("workload name is required")
	}
	if w.Fn == nil {
		return fmt.Errorf("workload %q has no function", w.Name)
	}
	if w.Divisor <= 0 {
		w.Divisor = 1
	}
	mu.Lock()
	defer mu.Unlock()
	registry[w.Name] = w
	return nil
}

func mustRegister(w Workload) {
	if err := Register(w); err != nil {
		panic(err)
	}
}

func Lookup(name string) (Workload, error) {
	mu.RLock()
	defer mu.RUnlock()
	w, ok := registry[name]
	if !ok {
		return Workload{}, fmt.Errorf("%w: %q", ErrUnknownWorkload, name)
	}
	return w, nil
}

// Names returns the catalogue sorted by name.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every workload sorted by name.
func All() []Workload {
	names := Names()
	out := make([]Workload, 0, len(names))
	mu.RLock()
	defer mu.RUnlock()
	for _, name := range names {
		if w, ok := registry[name]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Sink keeps workload results reachable so the compiler cannot drop the work.
var Sink uint64

func init() {
	mustRegister(Workload{
		Name:        "noop",
		Description: "empty function call; measures harness overhead",
		Divisor:     1,
		Fn:          func() {},
	})
	mustRegister(Workload{
		Name:        "time-now",
		Description: "one time.Now call",
		Divisor:     1,
		Fn: func() {
			Sink += uint64(time.Now().UnixNano())
		},
	})

	block := make([]byte, 1024)
	for i := range block {
		block[i] = byte(i)
	}
	mustRegister(Workload{
		Name:        "sha256-1k",
		Description: "SHA-256 of a 1 KiB block",
		Divisor:     1,
		Fn: func() {
			sum := sha256.Sum256(block)
			Sink += uint64(sum[0])
		},
	})

	rng := rand.New(rand.NewSource(1))
	unsorted := make([]int, 1024)
	for i := range unsorted {
		unsorted[i] = rng.Int()
	}
	scratch := make([]int, len(unsorted))
	mustRegister(Workload{
		Name:          "sort-1k",
		Description:   "sort a copy of 1024 random ints",
		Divisor:       1,
		MaxIterations: 100,
		Fn: func() {
			copy(scratch, unsorted)
			sort.Ints(scratch)
			Sink += uint64(scratch[0])
		},
	})
	mustRegister(Workload{
		Name:          "map-insert-1k",
		Description:   "insert 1024 keys into a fresh map; per insert",
		Divisor:       1024,
		MaxIterations: 100,
		Fn: func() {
			m := make(map[int]int)
			for i := 0; i < 1024; i++ {
				m[i] = i
			}
			Sink += uint64(len(m))
		},
	})
	mustRegister(Workload{
		Name:          "sleep-1ms",
		Description:   "time.Sleep(1ms); measures scheduler wake-up latency",
		Divisor:       1,
		MaxIterations: 1,
		Fn: func() {
			time.Sleep(time.Millisecond)
		},
	})
	mustRegister(Workload{
		Name:        "alloc-4k",
		Description: "allocate and touch a 4 KiB slice",
		Divisor:     1,
		Fn: func() {
			b := make([]byte, 4096)
			b[len(b)-1] = 1
			Sink += uint64(b[len(b)-1])
		},
	})
}
