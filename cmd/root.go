// Package cmd implements the emdash CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/app"
	"github.com/derickschaefer/emdash/internal/config"
	"github.com/derickschaefer/emdash/internal/logging"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	APIURL    string
	Format    string
	Out       string
	Timeout   string
	Rate      float64
	Quiet     bool
	Verbose   bool
	Debug     bool
	LogLevel  string
	LogFormat string
}

// rootCmd is the base command. Running `emdash` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "emdash",
	Short: "emdash — environmental monitoring dashboard client",
	Long: `emdash is a terminal client for an environmental-monitoring backend.
It loads the station list, the 24-hour summary and the hourly series for one
station and pollutant, and composes them into a single dashboard view.

The backend is addressed by --api-url, EMDASH_API_URL or api_url in
emdash.json (default http://localhost:8000).

Quick start:
  emdash config init               # create an emdash.json
  emdash dashboard                 # one-shot dashboard for the default station
  emdash dashboard --watch         # live dashboard, refreshed every minute
  emdash series --station DEMO_1 --param o3 --chart`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.APIURL)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug
	cfg.LogFormat = globalFlags.LogFormat

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	if globalFlags.LogLevel != "" {
		cfg.LogLevel = globalFlags.LogLevel
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	switch {
	case cfg.Debug:
		level = min(level, slog.LevelDebug)
	case cfg.Quiet:
		level = max(level, slog.LevelError)
	}
	logger := logging.New(os.Stderr, level, cfg.LogFormat)

	return app.New(cfg, logger), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.APIURL, "api-url", "",
		"backend base URL (overrides env EMDASH_API_URL and emdash.json)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max API requests per second (default: 10)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: debug|info|warn|error (default: info)")
	pf.StringVar(&globalFlags.LogFormat, "log-format", logging.FormatAuto,
		"log format: auto|text|json")
	_ = rootCmd.RegisterFlagCompletionFunc("format", completeFormats)
}
