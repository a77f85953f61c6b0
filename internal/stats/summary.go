// Package stats summarises sets of trial durations.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNoSamples is returned when a summary is requested for an empty set.
var ErrNoSamples = errors.New("no samples to summarise")

// Summary is an immutable statistical digest of a sample set. Scale and Shift
// return new summaries and leave the receiver untouched.
type Summary struct {
	Count    int     `json:"count" yaml:"count"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Variance float64 `json:"variance" yaml:"variance"`
	Q1       float64 `json:"q1" yaml:"q1"`
	Median   float64 `json:"median" yaml:"median"`
	Q3       float64 `json:"q3" yaml:"q3"`
}

// Summarize computes a Summary. The input slice is not modified.
func Summarize(samples []float64) (Summary, error) {
	n := len(samples)
	if n == 0 {
		return Summary{}, ErrNoSamples
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	s := Summary{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
	}

	if n == 1 {
		s.Q1, s.Median, s.Q3 = sorted[0], sorted[0], sorted[0]
		s.Mean = sorted[0]
		return s, nil
	}

	s.Mean = kahanSum(sorted, func(v float64) float64 { return v }) / float64(n)
	mean := s.Mean
	s.Variance = kahanSum(sorted, func(v float64) float64 {
		d := v - mean
		return d * d
	}) / float64(n-1)

	s.Q1, s.Median, s.Q3 = quartiles(sorted)
	return s, nil
}

// quartiles implements quantile Method 3 on an ascending slice of len >= 2.
func quartiles(x []float64) (q1, q2, q3 float64) {
	n := len(x)
	if n%2 == 0 {
		q2 = (x[n/2-1] + x[n/2]) * 0.5
		if n%4 == 0 {
			q1 = (x[n/4-1] + x[n/4]) * 0.5
			q3 = (x[n/2+n/4-1] + x[n/2+n/4]) * 0.5
		} else {
			q1 = x[n/4]
			q3 = x[n/2+n/4]
		}
		return q1, q2, q3
	}

	q2 = x[n/2]
	if n%4 == 1 {
		q1 = x[n/4-1]*0.25 + x[n/4]*0.75
		q3 = x[n/4*3]*0.75 + x[n/4*3+1]*0.25
	} else {
		q1 = x[n/4]*0.75 + x[n/4+1]*0.25
		q3 = x[n/4*3+1]*0.25 + x[n/4*3+2]*0.75
	}
	return q1, q2, q3
}

// kahanSum adds f(v) over values with compensated summation.
func kahanSum(values []float64, f func(float64) float64) float64 {
	var sum, c float64
	for _, v := range values {
		y := f(v) - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// Measurable drops negative (unmeasurable) durations.
func Measurable(samples []float64) []float64 {
	out := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v >= 0 {
			out = append(out, v)
		}
	}
	return out
}

func (s Summary) StdDev() float64 { return math.Sqrt(s.Variance) }

func (s Summary) Range() float64 { return s.Max - s.Min }

// IQR is the interquartile range.
func (s Summary) IQR() float64 { return s.Q3 - s.Q1 }

// RelativeDispersion is stddev/mean, or 0 when the mean is not positive.
func (s Summary) RelativeDispersion() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return s.StdDev() / s.Mean
}

// Quartile returns Q1, Q2 (the median) or Q3.
func (s Summary) Quartile(which int) (float64, error) {
	switch which {
	case 1:
		return s.Q1, nil
	case 2:
		return s.Median, nil
	case 3:
		return s.Q3, nil
	default:
		return 0, fmt.Errorf("quartile %d out of range [1,3]", which)
	}
}

// Scale multiplies every location statistic by k and the variance by k².
func (s Summary) Scale(k float64) Summary {
	s.Min *= k
	s.Max *= k
	s.Mean *= k
	s.Variance *= k * k
	s.Q1 *= k
	s.Median *= k
	s.Q3 *= k
	return s
}

// Shift adds c to every location statistic. Spread is unchanged.
func (s Summary) Shift(c float64) Summary {
	s.Min += c
	s.Max += c
	s.Mean += c
	s.Q1 += c
	s.Median += c
	s.Q3 += c
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("min:\t" + formatFloat(s.Min))
	b.WriteString("\tmean:\t" + formatFloat(s.Mean))
	b.WriteString("\tmedian:\t" + formatFloat(s.Median))
	b.WriteString("\tmax:\t" + formatFloat(s.Max))
	b.WriteString("\tstddev:\t" + formatFloat(s.StdDev()))
	return b.String()
}

// Format renders the summary with the mean also expressed in raw clock ticks,
// given the calibration factor in milliseconds per tick.
func (s Summary) Format(factor float64) string {
	clocks := math.NaN()
	if factor > 0 {
		clocks = s.Mean / factor
	}
	var b strings.Builder
	b.WriteString("min:\t" + formatFloat(s.Min))
	b.WriteString("\tmean:\t" + formatFloat(s.Mean))
	b.WriteString(" ( " + formatFloat(clocks) + " clocks )")
	b.WriteString("\tmedian:\t" + formatFloat(s.Median))
	b.WriteString("\tmax:\t" + formatFloat(s.Max))
	b.WriteString("\tstddev:\t" + formatFloat(s.StdDev()))
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
