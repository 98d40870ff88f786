package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/chart"
	"github.com/derickschaefer/emdash/internal/pipeline"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render an hourly series as an ASCII chart (reads JSONL from stdin)",
	Long: `Chart commands read hourly JSONL rows from stdin and render to the terminal.

Pipeline examples:
  emdash series --format jsonl | emdash chart plot
  emdash series -p pm10 --format jsonl | emdash transform resample | emdash chart bar
  emdash series --format jsonl | emdash transform roll --window 24h | emdash chart plot --title "PM2.5 24h mean"`,
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarWidth   int
	chartBarMaxBars int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart, one bar per row",
	Long: `Renders a horizontal bar chart with one labelled bar per row.

Best suited to resampled data; a raw hourly series produces one bar per hour.
Missing rows are shown as "." without a bar.`,
	Example: `  emdash series --format jsonl | emdash transform resample | emdash chart bar
  emdash series --last 24h --format jsonl | emdash chart bar --max-bars 12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return chart.Bar(cmd.OutOrStdout(), chartTitle(sel.String(), sel.StationID == ""), pts, chart.BarOptions{
			Width:   chartBarWidth,
			MaxBars: chartBarMaxBars,
		})
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotWidth  int
	chartPlotHeight int
	chartPlotTitle  string
	chartPlotSpark  bool
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart with labelled axes",
	Long: `Renders a multi-line chart with Y-axis tick labels and X-axis hour labels.

Null hours appear as gaps in the curve, not zeros. Width auto-detects from
$COLUMNS (falls back to 80). Override with --width and --height.`,
	Example: `  emdash series --format jsonl | emdash chart plot
  emdash series --format jsonl | emdash chart plot --height 8
  emdash series --format jsonl | emdash chart plot --spark`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, pts, err := pipeline.ReadHourly(cmd.InOrStdin())
		if err != nil {
			return err
		}
		title := chartPlotTitle
		if title == "" {
			title = chartTitle(sel.String(), sel.StationID == "")
		}
		if chartPlotSpark {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", title, chart.Spark(pts, chartPlotWidth))
			return err
		}
		return chart.Plot(cmd.OutOrStdout(), title, pts, chart.PlotOptions{
			Width:  chartPlotWidth,
			Height: chartPlotHeight,
		})
	},
}

func chartTitle(s string, anonymous bool) string {
	if anonymous {
		return "series"
	}
	return s
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)

	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0,
		"total chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartBarCmd.Flags().IntVar(&chartBarMaxBars, "max-bars", 0,
		"maximum bars to render; keeps the last N rows (0 = no limit)")

	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows")
	chartPlotCmd.Flags().StringVar(&chartPlotTitle, "title", "",
		"chart title (default: station/parameter)")
	chartPlotCmd.Flags().BoolVar(&chartPlotSpark, "spark", false,
		"print a one-line sparkline instead")
}
