package stats

import (
	"errors"
	"fmt"

	moremath "github.com/aclements/go-moremath/stats"
)

// DefaultAlpha is the significance level used when none is configured.
const DefaultAlpha = 0.05

// Verdict values for Comparison.
const (
	VerdictFaster    = "faster"
	VerdictSlower    = "slower"
	VerdictUnchanged = "unchanged"
)

// Comparison relates a candidate sample set to a base sample set.
type Comparison struct {
	Base        Summary `json:"base" yaml:"base"`
	Candidate   Summary `json:"candidate" yaml:"candidate"`
	Speedup     float64 `json:"speedup" yaml:"speedup"`
	Delta       float64 `json:"delta" yaml:"delta"`
	PValue      float64 `json:"p_value" yaml:"p_value"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	Significant bool    `json:"significant" yaml:"significant"`
	Verdict     string  `json:"verdict" yaml:"verdict"`
}

// Compare runs a two-sided Mann-Whitney U test between base and candidate
// trial durations. Speedup is base median over candidate median, so values
// above 1 mean the candidate is faster. Negative samples are ignored.
func Compare(base, candidate []float64, alpha float64) (Comparison, error) {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	base = Measurable(base)
	candidate = Measurable(candidate)

	bs, err := Summarize(base)
	if err != nil {
		return Comparison{}, fmt.Errorf("base: %w", err)
	}
	cs, err := Summarize(candidate)
	if err != nil {
		return Comparison{}, fmt.Errorf("candidate: %w", err)
	}

	cmp := Comparison{Base: bs, Candidate: cs, Alpha: alpha, PValue: 1}
	if cs.Median > 0 {
		cmp.Speedup = bs.Median / cs.Median
	}
	if bs.Median != 0 {
		cmp.Delta = (cs.Median - bs.Median) / bs.Median
	}

	res, err := moremath.MannWhitneyUTest(base, candidate, moremath.LocationDiffers)
	switch {
	case err == nil:
		cmp.PValue = res.P
	case errors.Is(err, moremath.ErrSamplesEqual), errors.Is(err, moremath.ErrSampleSize):
		// identical or too few samples: nothing to reject
	default:
		return Comparison{}, fmt.Errorf("mann-whitney u test: %w", err)
	}

	cmp.Significant = cmp.PValue < alpha
	switch {
	case !cmp.Significant:
		cmp.Verdict = VerdictUnchanged
	case cs.Median < bs.Median:
		cmp.Verdict = VerdictFaster
	default:
		cmp.Verdict = VerdictSlower
	}
	return cmp, nil
}
