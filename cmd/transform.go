package cmd

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/pipeline"
	"github.com/derickschaefer/emdash/internal/render"
	"github.com/derickschaefer/emdash/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform an hourly series (reads JSONL from stdin)",
	Long: `Transform operators read hourly JSONL rows from stdin and write JSONL to
stdout, or a table when stdout is a terminal.

Pipeline example:
  emdash series --format jsonl | emdash transform fill-gaps | emdash transform roll --window 24h
  emdash series -p pm10 --format jsonl | emdash transform resample --period 24h --method max | emdash chart bar`,
}

// ─── fill-gaps ────────────────────────────────────────────────────────────────

var transformFillCmd = &cobra.Command{
	Use:   "fill-gaps",
	Short: "Insert missing rows for unreported hours",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return writeTransformOutput(cmd, sel, transform.FillGaps(pts))
	},
}

// ─── diff ─────────────────────────────────────────────────────────────────────

var transformDiffCmd = &cobra.Command{
	Use:     "diff",
	Short:   "Hour-over-hour change: v[t] - v[t-1]",
	Example: `  emdash series --format jsonl | emdash transform diff`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err := transform.Diff(pts)
		if err != nil {
			return err
		}
		return writeTransformOutput(cmd, sel, out)
	},
}

// ─── resample ─────────────────────────────────────────────────────────────────

var (
	transformResamplePeriod time.Duration
	transformResampleMethod string
)

var transformResampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Aggregate to a coarser period (default: daily mean)",
	Example: `  emdash series --format jsonl | emdash transform resample
  emdash series --format jsonl | emdash transform resample --period 8h --method max`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err := transform.Resample(pts, transformResamplePeriod, transform.ResampleMethod(transformResampleMethod))
		if err != nil {
			return err
		}
		return writeTransformOutput(cmd, sel, out)
	},
}

// ─── filter ───────────────────────────────────────────────────────────────────

var (
	transformFilterAfter  string
	transformFilterBefore string
	transformFilterMin    float64
	transformFilterMax    float64
	transformFilterDrop   bool
)

var transformFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep rows inside a time and value range",
	Example: `  emdash series --format jsonl | emdash transform filter --after 2024-05-01T06:00:00Z
  emdash series --format jsonl | emdash transform filter --min 35.5 --drop-missing`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := transform.NoBounds()
		var err error
		if opts.After, err = parseTimeFlag("after", transformFilterAfter); err != nil {
			return err
		}
		if opts.Before, err = parseTimeFlag("before", transformFilterBefore); err != nil {
			return err
		}
		if cmd.Flags().Changed("min") {
			opts.MinValue = transformFilterMin
		}
		if cmd.Flags().Changed("max") {
			opts.MaxValue = transformFilterMax
		}
		opts.DropMissing = transformFilterDrop

		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return writeTransformOutput(cmd, sel, transform.Filter(pts, opts))
	},
}

// ─── roll ─────────────────────────────────────────────────────────────────────

var (
	transformRollWindow     time.Duration
	transformRollMinPeriods int
	transformRollStat       string
)

var transformRollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Trailing window statistic over a time window (default: 24h mean)",
	Long: `Replace each hour with a statistic over the trailing window (t-window, t].
The window is measured in time: hours the backend did not report shrink the
window rather than stretching it.`,
	Example: `  emdash series --format jsonl | emdash transform roll
  emdash series -p o3 --format jsonl | emdash transform roll --window 8h --stat max --min-periods 6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err := transform.Roll(pts, transformRollWindow, transformRollMinPeriods, transform.RollStat(transformRollStat))
		if err != nil {
			return err
		}
		return writeTransformOutput(cmd, sel, out)
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformFillCmd)
	transformCmd.AddCommand(transformDiffCmd)
	transformCmd.AddCommand(transformResampleCmd)
	transformCmd.AddCommand(transformFilterCmd)
	transformCmd.AddCommand(transformRollCmd)

	transformResampleCmd.Flags().DurationVar(&transformResamplePeriod, "period", 24*time.Hour, "bucket width, at least 1h")
	transformResampleCmd.Flags().StringVar(&transformResampleMethod, "method", "mean", "aggregation: mean|max|min|last")

	transformFilterCmd.Flags().StringVar(&transformFilterAfter, "after", "", "keep rows with time > this ISO-8601 time")
	transformFilterCmd.Flags().StringVar(&transformFilterBefore, "before", "", "keep rows with time < this ISO-8601 time")
	transformFilterCmd.Flags().Float64Var(&transformFilterMin, "min", math.NaN(), "keep rows with value >= min")
	transformFilterCmd.Flags().Float64Var(&transformFilterMax, "max", math.NaN(), "keep rows with value <= max")
	transformFilterCmd.Flags().BoolVar(&transformFilterDrop, "drop-missing", false, "drop rows with a null value")

	transformRollCmd.Flags().DurationVar(&transformRollWindow, "window", 24*time.Hour, "window length, at least 1h")
	transformRollCmd.Flags().IntVar(&transformRollMinPeriods, "min-periods", 1, "minimum non-null hours required in the window")
	transformRollCmd.Flags().StringVar(&transformRollStat, "stat", "mean", "statistic: mean|max|min")
}

// ─── Output helper ────────────────────────────────────────────────────────────

// writeTransformOutput writes pts as JSONL when piped, or as a table on a
// terminal. An explicit --format always wins.
func writeTransformOutput(cmd *cobra.Command, sel model.Selection, pts []model.HourlyPoint) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeFn()

	format := globalFlags.Format
	if format == "" {
		format = render.FormatJSONL
		if isTTY(w) {
			format = render.FormatTable
		}
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == render.FormatJSONL {
		return pipeline.WriteHourly(w, sel, pts)
	}
	result := newResult(model.KindHourly, "transform "+cmd.Name(), &model.HourlySeries{Selection: sel, Points: pts}, len(pts), time.Now())
	return render.Render(w, result, format)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
