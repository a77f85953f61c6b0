// Package timesource reads monotonic counters and converts counter deltas
// into milliseconds.
//
// Three backends are provided. DirectFrequencyCounter reads a counter that
// reports its own frequency, MonotonicClock uses the Go runtime clock with
// implicit nanosecond units, and CalibratedCycleCounter reads a raw cycle
// counter whose frequency has to be inferred by sleeping. A backend is chosen
// once at startup with New and then passed to the code that measures.
package timesource

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"
)

// RawTimestamp is an unscaled counter reading. Values from different
// processes or backends are not comparable.
type RawTimestamp uint64

const (
	// InvalidTimestamp is returned by Now when the counter could not be read.
	InvalidTimestamp RawTimestamp = math.MaxUint64

	// Unmeasurable is the elapsed time reported when a reading failed or the
	// backend has no usable frequency. Callers treat any negative elapsed
	// value as unmeasurable.
	Unmeasurable = -1.0
)

// TimeSource is a platform timer.
type TimeSource interface {
	// Name identifies the backend and its counter, e.g. "cycles/rdtsc".
	Name() string
	// Now returns the current counter reading or InvalidTimestamp.
	Now() RawTimestamp
	// ElapsedMillis returns the milliseconds since start, or Unmeasurable.
	ElapsedMillis(start RawTimestamp) float64
	// SleepMillis blocks the calling goroutine for roughly ms milliseconds.
	SleepMillis(ms int)
	// Calibrate makes sure the calibration factor is known. It is cheap to
	// call repeatedly; only the first call does any work.
	Calibrate()
	// Factor returns the calibration factor in milliseconds per raw tick,
	// or 0 when none is available.
	Factor() float64
}

// Recalibrator is implemented by backends whose factor is inferred.
type Recalibrator interface {
	Recalibrate() Recalibration
}

// Kind selects a backend.
type Kind string

const (
	KindAuto      Kind = "auto"
	KindCounter   Kind = "counter"
	KindMonotonic Kind = "monotonic"
	KindCycles    Kind = "cycles"
)

// ErrUnknownKind is returned for an unrecognised backend name.
var ErrUnknownKind = errors.New("unknown timer backend")

// Kinds lists the accepted backend names.
func Kinds() []Kind {
	return []Kind{KindAuto, KindCounter, KindMonotonic, KindCycles}
}

// ParseKind maps a configuration value onto a Kind. The empty string means auto.
func ParseKind(value string) (Kind, error) {
	v := Kind(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return KindAuto, nil
	}
	for _, k := range Kinds() {
		if v == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
}

// Resolve turns KindAuto into the backend preferred on this host.
func Resolve(kind Kind) Kind {
	if kind != KindAuto && kind != "" {
		return kind
	}
	switch {
	case runtime.GOARCH == "amd64":
		return KindCycles
	case perfCounterSupported:
		return KindCounter
	default:
		return KindMonotonic
	}
}

// New builds the backend for kind.
func New(kind Kind) (TimeSource, error) {
	switch Resolve(kind) {
	case KindCounter:
		return NewDirectFrequencyCounter(), nil
	case KindMonotonic:
		return NewMonotonicClock(), nil
	case KindCycles:
		return NewCalibratedCycleCounter(BlendRunningAverage), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func sleepMillis(ms int) {
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// elapsed converts a counter delta. A counter that went backwards or a
// missing factor yields Unmeasurable rather than a made-up value.
func elapsed(start, now RawTimestamp, factor float64) float64 {
	if start == InvalidTimestamp || now == InvalidTimestamp {
		return Unmeasurable
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) || now < start {
		return Unmeasurable
	}
	return float64(now-start) * factor
}
