package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/sampler"
	"github.com/mwiater/microbench/internal/stats"
)

// Result is one measured workload.
type Result struct {
	ID           string        `json:"id" yaml:"id"`
	Workload     string        `json:"workload" yaml:"workload"`
	Timer        string        `json:"timer" yaml:"timer"`
	Factor       float64       `json:"calibrationFactor" yaml:"calibrationFactor"`
	Iterations   uint64        `json:"iterations" yaml:"iterations"`
	Runs         int           `json:"runs" yaml:"runs"`
	Divisor      float64       `json:"divisor" yaml:"divisor"`
	PerIteration bool          `json:"perIteration" yaml:"perIteration"`
	State        sampler.State `json:"state" yaml:"state"`
	Batches      int           `json:"batches" yaml:"batches"`
	FinalRuns    int           `json:"finalRuns" yaml:"finalRuns"`
	Unstable     int           `json:"unstableBatches" yaml:"unstableBatches"`
	Dropped      int           `json:"droppedTrials" yaml:"droppedTrials"`
	Summary      stats.Summary `json:"summary" yaml:"summary"`
	Samples      []float64     `json:"samples" yaml:"samples"`
	StartedAt    time.Time     `json:"startedAt" yaml:"startedAt"`
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`
}

// GivenUp reports whether the sampler stopped without reaching stability.
func (r *Result) GivenUp() bool { return r.State == sampler.StateGivenUp }

var csvHeader = []string{
	"id", "workload", "timer", "state", "iterations", "runs", "final_runs", "batches",
	"divisor", "per_iteration", "count", "min", "q1", "median", "q3", "max", "mean", "stddev",
}

// WriteResults writes results to dir in the given format (json, yaml or csv)
// and returns the file path.
func WriteResults(dir, format string, results []*Result) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no results to write")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	ext := format
	switch format {
	case "json", "csv":
	case "yaml", "yml":
		format, ext = "yaml", "yaml"
	default:
		return "", fmt.Errorf("unsupported result format %q", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating results directory: %w", err)
	}

	var names []string
	for _, r := range results {
		names = append(names, r.Workload)
	}
	fileName := filepath.Join(dir, fmt.Sprintf("%s-%d.%s", Slugify(strings.Join(names, "-")), results[0].Iterations, ext))

	file, err := os.Create(fileName)
	if err != nil {
		return "", fmt.Errorf("error creating result file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(results)
	case "yaml":
		encoder := yaml.NewEncoder(file)
		encoder.SetIndent(2)
		err = encoder.Encode(results)
		if err == nil {
			err = encoder.Close()
		}
	case "csv":
		err = writeCSV(file, results)
	}
	if err != nil {
		return "", fmt.Errorf("error writing results to file: %w", err)
	}

	logging.LogEvent("[BENCHMARK] results written to %s", fileName)
	return fileName, nil
}

func writeCSV(file *os.File, results []*Result) error {
	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, r := range results {
		s := r.Summary
		row := []string{
			r.ID, r.Workload, r.Timer, r.State.String(),
			strconv.FormatUint(r.Iterations, 10), strconv.Itoa(r.Runs), strconv.Itoa(r.FinalRuns), strconv.Itoa(r.Batches),
			f(r.Divisor), strconv.FormatBool(r.PerIteration),
			strconv.Itoa(s.Count), f(s.Min), f(s.Q1), f(s.Median), f(s.Q3), f(s.Max), f(s.Mean), f(s.StdDev()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadResults loads a JSON or YAML results file written by WriteResults.
func ReadResults(path string) ([]*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var results []*Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &results)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &results)
	default:
		return nil, fmt.Errorf("cannot read results from %q: only json and yaml files carry samples", path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return results, nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string into a "slug" format,
// including replacing colons (:) with underscores (_).
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "_")
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	return s
}
