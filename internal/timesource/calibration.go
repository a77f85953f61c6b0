package timesource

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/mwiater/microbench/internal/logging"
)

const (
	// CalibrationSleep is how long, in milliseconds, one estimate sleeps.
	CalibrationSleep = 50
	// DriftThreshold is the relative change between successive estimates
	// above which a clock drift warning is logged.
	DriftThreshold = 0.05
)

// BlendPolicy decides how a recalibration estimate is merged into the factor.
type BlendPolicy int

const (
	// BlendRunningAverage keeps the cumulative mean of every estimate taken.
	BlendRunningAverage BlendPolicy = iota
	// BlendReplace discards the previous factor.
	BlendReplace
)

func (p BlendPolicy) String() string {
	switch p {
	case BlendReplace:
		return "replace"
	default:
		return "running-average"
	}
}

// Estimator takes one calibration measurement in milliseconds per tick.
// It returns 0 when no estimate could be made.
type Estimator func() float64

// Recalibration describes one explicit recalibration.
type Recalibration struct {
	Previous float64 `json:"previous"`
	Estimate float64 `json:"estimate"`
	Factor   float64 `json:"factor"`
	Change   float64 `json:"change"`
	Drifted  bool    `json:"drifted"`
}

// CalibrationState owns a calibration factor. The first Factor call computes
// it exactly once, even under concurrent first access; after that the factor
// is read-only except through Recalibrate.
type CalibrationState struct {
	once      sync.Once
	bits      atomic.Uint64
	estimate  Estimator
	policy    BlendPolicy
	estimates int
}

// NewCalibrationState returns a lazily calibrated state.
func NewCalibrationState(estimate Estimator, policy BlendPolicy) *CalibrationState {
	return &CalibrationState{estimate: estimate, policy: policy}
}

// Factor returns the factor, calibrating on first use.
func (c *CalibrationState) Factor() float64 {
	c.once.Do(c.initialize)
	return math.Float64frombits(c.bits.Load())
}

// Calibrated reports whether a usable factor is held.
func (c *CalibrationState) Calibrated() bool {
	return c.Factor() > 0
}

// Policy returns the blend policy used by Recalibrate.
func (c *CalibrationState) Policy() BlendPolicy {
	return c.policy
}

func (c *CalibrationState) initialize() {
	f := c.estimate()
	if !usable(f) {
		logging.LogWarning("[CALIBRATION] initial estimate failed; elapsed times will be unmeasurable")
		return
	}
	c.bits.Store(math.Float64bits(f))
	c.estimates = 1
	logging.LogEvent("[CALIBRATION] factor=%g ms/tick", f)
}

// Recalibrate takes a fresh estimate and blends it into the factor.
//
// Recalibrate is not safe for concurrent use and must only run while no
// measurement is in flight.
func (c *CalibrationState) Recalibrate() Recalibration {
	prev := c.Factor()
	est := c.estimate()
	if !usable(est) {
		logging.LogWarning("[CALIBRATION] recalibration estimate failed; keeping factor %g", prev)
		return Recalibration{Previous: prev, Estimate: est, Factor: prev}
	}
	if c.estimates == 0 || prev <= 0 {
		c.bits.Store(math.Float64bits(est))
		c.estimates = 1
		return Recalibration{Previous: prev, Estimate: est, Factor: est}
	}

	change := math.Abs(est-prev) / prev
	c.estimates++
	next := est
	if c.policy == BlendRunningAverage {
		next = prev + (est-prev)/float64(c.estimates)
	}
	c.bits.Store(math.Float64bits(next))

	r := Recalibration{Previous: prev, Estimate: est, Factor: next, Change: change}
	if change > DriftThreshold {
		r.Drifted = true
		logging.LogWarning("[CALIBRATION] clock drift %.1f%% between estimates (%g -> %g ms/tick); CPU frequency may have changed", change*100, prev, est)
	}
	return r
}

func usable(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// sleepEstimator infers milliseconds per tick by sleeping a known interval.
func sleepEstimator(read func() (uint64, bool), sleep func(ms int), ms int) Estimator {
	return func() float64 {
		start, ok := read()
		if !ok {
			return 0
		}
		sleep(ms)
		end, ok := read()
		if !ok || end <= start {
			return 0
		}
		return float64(ms) / float64(end-start)
	}
}
