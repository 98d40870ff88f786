package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/analyze"
	"github.com/derickschaefer/emdash/internal/pipeline"
	"github.com/derickschaefer/emdash/internal/util"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an hourly series (reads JSONL from stdin)",
	Long: `Analyze operators read hourly JSONL rows from stdin and print results.

Examples:
  emdash series --format jsonl | emdash analyze summary
  emdash series -p o3 --last 72h --format jsonl | emdash analyze trend --method theil-sen`,
}

// ─── analyze summary ─────────────────────────────────────────────────────────

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Descriptive statistics: count, missing, mean, std, min, median, p95, max",
	Example: `  emdash series --format jsonl | emdash analyze summary
  emdash series --format jsonl | emdash transform roll --window 24h | emdash analyze summary`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		s := analyze.Summarize(sel, pts)

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		if resolveFormat("") == "json" {
			return writeJSON(w, s)
		}

		rows := [][]string{
			{"selection", orDot(sel.String(), sel.StationID == "")},
			{"unit", orDot(s.Unit, s.Unit == "")},
			{"count", strconv.Itoa(s.Count)},
			{"missing", fmt.Sprintf("%d (%.1f%%)", s.Missing, float64(s.MissingPct))},
			{"samples", strconv.Itoa(s.Samples)},
			{"mean", fmtStat(s.Mean)},
			{"std", fmtStat(s.Std)},
			{"min", fmtStat(s.Min)},
			{"median", fmtStat(s.Median)},
			{"p95", fmtStat(s.P95)},
			{"max", fmtStat(s.Max)},
			{"peak_at", fmtTime(s.PeakAt)},
			{"first", fmtStat(s.First)},
			{"last", fmtStat(s.Last)},
			{"start", fmtTime(s.Start)},
			{"end", fmtTime(s.End)},
		}
		printKVTable(w, rows)
		return nil
	},
}

// ─── analyze trend ────────────────────────────────────────────────────────────

var analyzeTrendMethod string

var analyzeTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a trend line: slope per hour and day, intercept, R², direction",
	Example: `  emdash series --last 168h --format jsonl | emdash analyze trend
  emdash series --format jsonl | emdash analyze trend --method theil-sen`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := analyze.ParseTrendMethod(analyzeTrendMethod)
		if err != nil {
			return err
		}
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		tr, err := analyze.Trend(sel, pts, method)
		if err != nil {
			return err
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		if resolveFormat("") == "json" {
			return writeJSON(w, tr)
		}

		rows := [][]string{
			{"selection", orDot(sel.String(), sel.StationID == "")},
			{"method", string(tr.Method)},
			{"direction", tr.Direction},
			{"slope_per_hour", fmt.Sprintf("%.6f", tr.SlopePerHr)},
			{"slope_per_day", fmt.Sprintf("%.4f", tr.SlopePerDay)},
			{"intercept", fmt.Sprintf("%.4f", tr.Intercept)},
			{"r2", fmt.Sprintf("%.4f", tr.R2)},
		}
		printKVTable(w, rows)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSummaryCmd)
	analyzeCmd.AddCommand(analyzeTrendCmd)

	analyzeTrendCmd.Flags().StringVar(&analyzeTrendMethod, "method", "linear",
		"regression method: linear|theil-sen")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtStat(v analyze.Stat) string {
	if !v.Valid() {
		return "."
	}
	return strconv.FormatFloat(float64(v), 'f', 4, 64)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "."
	}
	return util.FormatHour(t)
}

func orDot(s string, empty bool) string {
	if empty {
		return "."
	}
	return s
}
