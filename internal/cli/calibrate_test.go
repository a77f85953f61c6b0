// internal/cli/calibrate_test.go
package microbench

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/timesource"
)

type stubSource struct {
	factor float64
	calls  int
}

func (s *stubSource) Name() string                                  { return "stub" }
func (s *stubSource) Now() timesource.RawTimestamp                  { return 0 }
func (s *stubSource) ElapsedMillis(timesource.RawTimestamp) float64 { return 0 }
func (s *stubSource) SleepMillis(int)                               {}
func (s *stubSource) Calibrate()                                    { s.calls++ }
func (s *stubSource) Factor() float64                               { return s.factor }

type driftingSource struct {
	stubSource
	changes []float64
	n       int
}

func (d *driftingSource) Recalibrate() timesource.Recalibration {
	change := d.changes[d.n%len(d.changes)]
	d.n++
	prev := d.factor
	d.factor = prev * (1 + change)
	return timesource.Recalibration{
		Previous: prev,
		Estimate: d.factor,
		Factor:   d.factor,
		Change:   change,
		Drifted:  change > 0.01,
	}
}

func calibrateOutput(t *testing.T, src timesource.TimeSource, n int) string {
	t.Helper()
	b := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(b)
	if err := runCalibrate(cmd, src, n); err != nil {
		t.Fatalf("runCalibrate: %v", err)
	}
	return b.String()
}

func TestCalibrateReportsFactor(t *testing.T) {
	src := &stubSource{factor: 1e-6}
	out := calibrateOutput(t, src, 0)
	if src.calls != 1 {
		t.Fatalf("expected one calibration, got %d", src.calls)
	}
	if !strings.Contains(out, "stub") || !strings.Contains(out, "1e-06 ms/tick") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCalibrateUnmeasurable(t *testing.T) {
	out := calibrateOutput(t, &stubSource{factor: timesource.Unmeasurable}, 3)
	if !strings.Contains(out, "calibration failed") {
		t.Fatalf("expected failure notice:\n%s", out)
	}
}

func TestCalibrateFixedFrequency(t *testing.T) {
	out := calibrateOutput(t, &stubSource{factor: 1e-6}, 2)
	if !strings.Contains(out, "nothing to recalibrate") {
		t.Fatalf("expected fixed frequency notice:\n%s", out)
	}
}

func TestCalibrateReportsDrift(t *testing.T) {
	src := &driftingSource{stubSource: stubSource{factor: 3e-7}, changes: []float64{0.001, 0.05}}
	out := calibrateOutput(t, src, 2)
	if !strings.Contains(out, "#1") || !strings.Contains(out, "#2") {
		t.Fatalf("expected two recalibrations:\n%s", out)
	}
	if strings.Count(out, "drift") != 1 {
		t.Fatalf("expected exactly one drift flag:\n%s", out)
	}
	if !strings.Contains(out, "change 5.000%") {
		t.Fatalf("expected percentage change:\n%s", out)
	}
}

func TestCalibrateCommandUsesConfiguredTimer(t *testing.T) {
	orig := newTimeSource
	t.Cleanup(func() { newTimeSource = orig })

	var got timesource.Kind
	newTimeSource = func(kind timesource.Kind) (timesource.TimeSource, error) {
		got = kind
		return &stubSource{factor: 1e-6}, nil
	}

	out, err := executeCLI(t, isolatedArgs(t, "--timer", "monotonic", "calibrate")...)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want, _ := timesource.ParseKind("monotonic")
	if got != want {
		t.Fatalf("expected kind %v, got %v", want, got)
	}
	if !strings.Contains(out, "stub") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
