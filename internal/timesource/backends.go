package timesource

import "time"

// DirectFrequencyCounter reads a counter whose frequency is reported by the
// platform, so no calibration error is involved.
type DirectFrequencyCounter struct {
	name      string
	read      func() (uint64, bool)
	frequency func() (uint64, bool)
}

// NewDirectFrequencyCounter uses the host's raw monotonic counter. On hosts
// without one every reading fails and elapsed times are Unmeasurable.
func NewDirectFrequencyCounter() *DirectFrequencyCounter {
	return &DirectFrequencyCounter{
		name:      "counter/" + perfCounterName,
		read:      readPerfCounter,
		frequency: perfCounterFrequency,
	}
}

func (c *DirectFrequencyCounter) Name() string { return c.name }

func (c *DirectFrequencyCounter) Now() RawTimestamp {
	v, ok := c.read()
	if !ok {
		return InvalidTimestamp
	}
	return RawTimestamp(v)
}

func (c *DirectFrequencyCounter) ElapsedMillis(start RawTimestamp) float64 {
	if start == InvalidTimestamp {
		return Unmeasurable
	}
	now, ok := c.read()
	if !ok {
		return Unmeasurable
	}
	return elapsed(start, RawTimestamp(now), c.Factor())
}

func (c *DirectFrequencyCounter) SleepMillis(ms int) { sleepMillis(ms) }

// Calibrate is a no-op: the frequency is queried, not inferred.
func (c *DirectFrequencyCounter) Calibrate() {}

func (c *DirectFrequencyCounter) Factor() float64 {
	f, ok := c.frequency()
	if !ok || f == 0 {
		return 0
	}
	return 1000 / float64(f)
}

// MonotonicClock uses the Go runtime monotonic clock. Ticks are nanoseconds.
type MonotonicClock struct {
	epoch time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{epoch: time.Now()}
}

func (c *MonotonicClock) Name() string { return "monotonic/runtime" }

func (c *MonotonicClock) Now() RawTimestamp {
	return RawTimestamp(time.Since(c.epoch))
}

func (c *MonotonicClock) ElapsedMillis(start RawTimestamp) float64 {
	return elapsed(start, c.Now(), c.Factor())
}

func (c *MonotonicClock) SleepMillis(ms int) { sleepMillis(ms) }

func (c *MonotonicClock) Calibrate() {}

func (c *MonotonicClock) Factor() float64 { return 1e-6 }

// CalibratedCycleCounter reads a raw cycle counter. Its frequency is inferred
// by sleeping, so a CPU clock change after calibration skews results; explicit
// recalibration detects that as drift.
type CalibratedCycleCounter struct {
	name        string
	read        func() (uint64, bool)
	sleep       func(ms int)
	calibration *CalibrationState
}

func NewCalibratedCycleCounter(policy BlendPolicy) *CalibratedCycleCounter {
	return newCalibratedCycleCounter("cycles/"+cycleCounterName, readCycles, sleepMillis, policy)
}

func newCalibratedCycleCounter(name string, read func() (uint64, bool), sleep func(ms int), policy BlendPolicy) *CalibratedCycleCounter {
	return &CalibratedCycleCounter{
		name:        name,
		read:        read,
		sleep:       sleep,
		calibration: NewCalibrationState(sleepEstimator(read, sleep, CalibrationSleep), policy),
	}
}

func (c *CalibratedCycleCounter) Name() string { return c.name }

func (c *CalibratedCycleCounter) Now() RawTimestamp {
	v, ok := c.read()
	if !ok {
		return InvalidTimestamp
	}
	return RawTimestamp(v)
}

func (c *CalibratedCycleCounter) ElapsedMillis(start RawTimestamp) float64 {
	if start == InvalidTimestamp {
		return Unmeasurable
	}
	now, ok := c.read()
	if !ok {
		return Unmeasurable
	}
	return elapsed(start, RawTimestamp(now), c.calibration.Factor())
}

func (c *CalibratedCycleCounter) SleepMillis(ms int) { c.sleep(ms) }

func (c *CalibratedCycleCounter) Calibrate() { c.calibration.Factor() }

func (c *CalibratedCycleCounter) Factor() float64 { return c.calibration.Factor() }

// Recalibrate takes another estimate. Not safe for concurrent use.
func (c *CalibratedCycleCounter) Recalibrate() Recalibration {
	return c.calibration.Recalibrate()
}
