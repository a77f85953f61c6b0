//go:build !linux

package timesource

const (
	perfCounterSupported = false
	perfCounterName      = "unavailable"
)

func readPerfCounter() (uint64, bool) { return 0, false }

func perfCounterFrequency() (uint64, bool) { return 0, false }
