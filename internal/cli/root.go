// internal/cli/root.go
package microbench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/microbench/internal/appconfig"
	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/telemetry"
)

var (
	cfgFile          string
	quietLogs        bool
	loadedConfigPath string
	currentConfig    *appconfig.Config
	traceFile        *os.File
	shutdownTracing  = func(context.Context) error { return nil }
	appVersion       = "dev"
	appCommit        = "none"
	appDate          = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "microbench",
	Short:         "microbench: adaptive microbenchmark harness with calibrated timers",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		for _, name := range []string{"debug", "perIteration"} {
			if !cmd.Flags().Changed(name) {
				val := viper.GetBool(name)
				_ = cmd.Flags().Set(name, strconv.FormatBool(val))
			}
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = loadedConfigPath
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		currentConfig = &cfg

		if quietLogs {
			logging.SetQuiet(true)
		}
		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return setupTracing(currentConfig.TraceFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	err := rootCmd.Execute()
	closeTracing()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	def := appconfig.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	flags.BoolVarP(&quietLogs, "quiet", "q", false, "write log lines to the log file only")
	flags.Bool("debug", false, "log every sampler batch evaluation")
	flags.Uint64("iterations", def.Iterations, "workload calls per timed attempt")
	flags.Int("runs", def.Runs, "initial trials per batch")
	flags.Bool("perIteration", false, "report durations per workload call")
	flags.Float64("divisor", 0, "divide reported durations by this (0 = per-workload default)")
	flags.Int("warmupMillis", def.WarmupMillis, "warm-up sleep before sampling, in milliseconds")
	flags.Int("innerRepeats", 0, "timed attempts per trial (0 = 16)")
	flags.Int("maxRuns", 0, "cap on trials per batch while growing (0 = unbounded)")
	flags.String("timer", def.Timer, "timer backend: auto, counter, monotonic or cycles")
	flags.String("format", def.Format, "result file format: json, yaml or csv")
	flags.String("dataDir", "", "directory for result files (default microbenchData)")
	flags.String("logFile", "", "path to the log file (default microbench.log)")
	flags.String("metricsFile", "", "write Prometheus text-format metrics to this file")
	flags.String("traceFile", "", "write OpenTelemetry spans to this file")
	flags.String("baselinePath", "", "baseline store directory (default <dataDir>/baseline)")
	flags.Float64("alpha", 0, "significance level for comparisons (0 = 0.05)")

	bindFlags()
}

// bindFlags binds every persistent flag to the viper key of the same name
// and registers the defaults (flags > config > defaults).
func bindFlags() {
	def := appconfig.Default()
	viper.SetDefault("iterations", def.Iterations)
	viper.SetDefault("runs", def.Runs)
	viper.SetDefault("warmupMillis", def.WarmupMillis)
	viper.SetDefault("timer", def.Timer)
	viper.SetDefault("format", def.Format)
	viper.SetDefault("debug", false)
	viper.SetDefault("perIteration", false)

	for _, name := range []string{
		"debug", "iterations", "runs", "perIteration", "divisor", "warmupMillis",
		"innerRepeats", "maxRuns", "timer", "format", "dataDir", "logFile",
		"metricsFile", "traceFile", "baselinePath", "alpha",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("MICROBENCH")
	viper.AutomaticEnv()
}

// ensureConfigLoaded validates the config file against the schema and reads
// it into viper. A missing file means defaults and flags only.
func ensureConfigLoaded() error {
	path := cfgFile
	if path == "" {
		path = appconfig.DefaultConfigPath
	}
	loadedConfigPath = ""

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := appconfig.ValidateDocument(data); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loadedConfigPath = path
	return nil
}

func setupTracing(path string) error {
	closeTracing()
	if path == "" {
		return nil
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	shutdown, err := telemetry.Setup(file, appVersion)
	if err != nil {
		_ = file.Close()
		return err
	}
	traceFile = file
	shutdownTracing = shutdown
	return nil
}

// closeTracing flushes pending spans and closes the trace file.
func closeTracing() {
	if err := shutdownTracing(context.Background()); err != nil {
		logging.LogWarning("trace shutdown: %v", err)
	}
	shutdownTracing = func(context.Context) error { return nil }
	if traceFile != nil {
		_ = traceFile.Close()
		traceFile = nil
	}
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// DebugEnabled returns true if debug mode is enabled.
func DebugEnabled() bool { return viper.GetBool("debug") }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
