package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/analyze"
	"github.com/derickschaefer/emdash/internal/chart"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/render"
	"github.com/derickschaefer/emdash/internal/transform"
)

var (
	seriesSel      selectionFlags
	seriesStart    string
	seriesEnd      string
	seriesLast     time.Duration
	seriesFillGaps bool
	seriesRoll     time.Duration
	seriesDaily    bool
	seriesChart    bool
	seriesBar      bool
	seriesWidth    int
	seriesHeight   int
	seriesTrend    string
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Fetch the hourly series for one station and pollutant",
	Long: `Fetch hourly means from the backend for one station and pollutant.
Hours with a null mean are kept as missing rows; they render as "." in
tables, null in JSON, and gaps in charts.

Post-processing runs in this order: --fill-gaps, --roll, --daily.`,
	Example: `  emdash series
  emdash series --station RDU_7 --param no2 --last 48h
  emdash series -s DEMO_1 -p pm25 --roll 24h --chart
  emdash series -p o3 --daily --bar
  emdash series --format jsonl | emdash analyze trend`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.Validate(); err != nil {
			return err
		}
		format := resolveFormat(deps.Config.Format)
		if err := checkFormat(format); err != nil {
			return err
		}
		sel, err := seriesSel.resolve(deps.Config)
		if err != nil {
			return err
		}
		from, to, err := timeRange(seriesStart, seriesEnd, seriesLast)
		if err != nil {
			return err
		}
		var method analyze.TrendMethod
		if seriesTrend != "" {
			if method, err = analyze.ParseTrendMethod(seriesTrend); err != nil {
				return err
			}
		}

		start := time.Now()
		q := sel.Query()
		q.Start, q.End = from, to
		pts, err := deps.Client.FetchHourly(cmd.Context(), q)
		if err != nil {
			return err
		}
		if pts, err = postProcess(pts); err != nil {
			return err
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		title := sel.String()
		switch {
		case seriesChart:
			err = chart.Plot(w, title, pts, chart.PlotOptions{Width: seriesWidth, Height: seriesHeight})
		case seriesBar:
			err = chart.Bar(w, title, pts, chart.BarOptions{Width: seriesWidth})
		default:
			data := &model.HourlySeries{Selection: sel, Points: pts}
			result := newResult(model.KindHourly, "series "+sel.String(), data, len(pts), start)
			if err = render.Render(w, result, format); err == nil {
				render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
			}
		}
		if err != nil {
			return err
		}

		if method != "" {
			tr, err := analyze.Trend(sel, pts, method)
			if err != nil {
				return err
			}
			printTrendLine(cmd.ErrOrStderr(), tr)
		}
		return nil
	},
}

// postProcess applies the optional series operators in their fixed order.
func postProcess(pts []model.HourlyPoint) ([]model.HourlyPoint, error) {
	var err error
	if seriesFillGaps {
		pts = transform.FillGaps(pts)
	}
	if seriesRoll > 0 {
		if pts, err = transform.Roll(pts, seriesRoll, 1, transform.RollMean); err != nil {
			return nil, err
		}
	}
	if seriesDaily && len(pts) > 0 {
		if pts, err = transform.Resample(pts, 24*time.Hour, transform.ResampleMean); err != nil {
			return nil, err
		}
	}
	return pts, nil
}

func printTrendLine(w io.Writer, tr analyze.TrendResult) {
	fmt.Fprintf(w, "trend (%s): %s, %+.4f per day, R² %.3f\n",
		tr.Method, tr.Direction, tr.SlopePerDay, tr.R2)
}

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesSel.register(seriesCmd)
	f := seriesCmd.Flags()
	f.StringVar(&seriesStart, "start", "", "first hour, ISO-8601 (e.g. 2024-05-01 or 2024-05-01T06:00:00Z)")
	f.StringVar(&seriesEnd, "end", "", "last hour, ISO-8601")
	f.DurationVar(&seriesLast, "last", 0, "only the trailing window, e.g. 24h")
	f.BoolVar(&seriesFillGaps, "fill-gaps", false, "insert missing rows for hours the backend did not report")
	f.DurationVar(&seriesRoll, "roll", 0, "replace each hour with the trailing mean over this window, e.g. 24h")
	f.BoolVar(&seriesDaily, "daily", false, "aggregate to daily means (UTC days)")
	f.BoolVar(&seriesChart, "chart", false, "draw a line chart instead of a table")
	f.BoolVar(&seriesBar, "bar", false, "draw a bar chart instead of a table (best with --daily)")
	f.IntVar(&seriesWidth, "width", 0, "chart width in characters (default: $COLUMNS, fallback 80)")
	f.IntVar(&seriesHeight, "height", 12, "line chart height in rows")
	f.StringVar(&seriesTrend, "trend", "", "also print a trend line fitted with: linear|theil-sen")
	seriesCmd.MarkFlagsMutuallyExclusive("chart", "bar")
	seriesCmd.MarkFlagsMutuallyExclusive("last", "start")
}
