package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
	quiet   bool
)

// Init routes the standard logger to stdout and, when logPath is set, to an
// appended log file.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if !quiet {
		writers = append(writers, os.Stdout)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// SetQuiet drops stdout from the writers installed by the next Init call.
// The CLI sets it for --quiet so log lines do not interleave with results.
func SetQuiet(v bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = v
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogWarning logs an advisory condition that does not stop a measurement.
func LogWarning(format string, args ...any) {
	log.Println(buildWarning(fmt.Sprintf(format, args...)))
}

// LogMeasurement logs one line per finished benchmark in key=value form.
func LogMeasurement(workload, timer string, fields map[string]float64) {
	log.Println(buildMeasurementMessage(workload, timer, fields))
}

func buildWarning(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "unspecified warning"
	}
	return "[WARN] " + msg
}

func buildMeasurementMessage(workload, timer string, fields map[string]float64) string {
	workloadValue := strings.TrimSpace(workload)
	if workloadValue == "" {
		workloadValue = "unknown"
	}
	timerValue := strings.TrimSpace(timer)
	if timerValue == "" {
		timerValue = "unknown"
	}
	parts := []string{"[BENCHMARK]"}
	parts = append(parts, fmt.Sprintf("workload=%s", workloadValue))
	parts = append(parts, fmt.Sprintf("timer=%s", timerValue))
	for _, key := range measurementOrder {
		if v, ok := fields[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formatValue(v)))
		}
	}
	return strings.Join(parts, " ")
}

var measurementOrder = []string{"min", "q1", "median", "q3", "max", "mean", "stddev", "runs", "batches"}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
