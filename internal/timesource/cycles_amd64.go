//go:build amd64

package timesource

const cycleCounterName = "rdtsc"

// rdtsc reads the time stamp counter. Implemented in cycles_amd64.s.
func rdtsc() uint64

func readCycles() (uint64, bool) {
	return rdtsc(), true
}
