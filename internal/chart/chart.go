// Package chart renders hourly aggregate series as terminal charts.
//
//   - Plot: multi-line line chart with a labelled value axis and hour ticks.
//     An empty or all-null series still renders its frame, so a chart in the
//     loading state has something to draw.
//   - Bar: one horizontal bar per hourly bucket, for short windows.
//   - Spark: a single-line sparkline for status lines.
//
// Null buckets render as gaps, never as zero.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/emdash/internal/model"
)

// HourLayout is the tick and row label format for hourly buckets.
const HourLayout = "01-02 15:04"

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls Plot rendering.
type PlotOptions struct {
	// Width is the total character width including the value axis.
	// 0 reads $COLUMNS, falling back to 80.
	Width int
	// Height is the number of rows in the plot body. 0 means 10.
	Height int
	// Status, when set, is appended to the title line (e.g. "loading").
	Status string
}

// Plot draws pts to w in the order received. Buckets are neither sorted
// nor deduplicated.
func Plot(w io.Writer, title string, pts []model.HourlyPoint, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 10
	}

	header := title
	if opts.Status != "" {
		header += "  [" + opts.Status + "]"
	}

	lo, hi, ok := bounds(pts)
	if !ok {
		return emptyFrame(w, header, width, height)
	}
	if _, err := fmt.Fprintf(w, "%s  (%s to %s)\n", header,
		pts[0].Time.UTC().Format(HourLayout), pts[len(pts)-1].Time.UTC().Format(HourLayout)); err != nil {
		return err
	}

	ticks := yTicks(lo, hi, height)
	labelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > labelWidth {
			labelWidth = l
		}
	}
	plotWidth := width - labelWidth - 1
	if plotWidth < 10 {
		plotWidth = 10
	}

	grid := buildGrid(sampleCols(pts, plotWidth), lo, hi, height)
	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, lo, hi, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axis := " "
		if label != "" {
			axis = "┤"
		}
		fmt.Fprintf(w, "%*s%s%s\n", labelWidth, label, axis, string(grid[row]))
	}
	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", labelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", labelWidth), xAxisLabels(pts, plotWidth))
	return nil
}

func emptyFrame(w io.Writer, header string, width, height int) error {
	plotWidth := width - 2
	if plotWidth < 10 {
		plotWidth = 10
	}
	if _, err := fmt.Fprintf(w, "%s  (no data)\n", header); err != nil {
		return err
	}
	blank := strings.Repeat(" ", plotWidth)
	for row := 0; row < height; row++ {
		fmt.Fprintf(w, " │%s\n", blank)
	}
	fmt.Fprintf(w, " └%s\n", strings.Repeat("─", plotWidth))
	return nil
}

// bounds returns the min and max of the non-null averages.
func bounds(pts []model.HourlyPoint) (lo, hi float64, ok bool) {
	for _, p := range pts {
		if p.IsMissing() {
			continue
		}
		if !ok {
			lo, hi, ok = p.AvgValue, p.AvgValue, true
			continue
		}
		lo = math.Min(lo, p.AvgValue)
		hi = math.Max(hi, p.AvgValue)
	}
	return lo, hi, ok
}

// sampleCols maps pts onto n columns. With at least n points each column
// averages its bucket; with fewer, each column takes its nearest point so
// short series stretch across the full width.
func sampleCols(pts []model.HourlyPoint, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	if total < n {
		for col := range cols {
			cols[col] = pts[col*total/n].AvgValue
		}
		return cols
	}
	for col := range cols {
		from := col * total / n
		to := (col + 1) * total / n
		sum, count := 0.0, 0
		for _, p := range pts[from:to] {
			if !p.IsMissing() {
				sum += p.AvgValue
				count++
			}
		}
		if count == 0 {
			cols[col] = math.NaN()
		} else {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue returns the fractional row (0 = top = hi) for v.
func rowForValue(v, lo, hi float64, height int) float64 {
	if hi == lo {
		return float64(height) / 2
	}
	return (hi - v) / (hi - lo) * float64(height-1)
}

// buildGrid draws cols into a height x len(cols) rune grid, joining
// neighbouring columns with vertical strokes.
func buildGrid(cols []float64, lo, hi float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = -1
			continue
		}
		r := int(math.Round(rowForValue(v, lo, hi, height)))
		rowOf[col] = min(max(r, 0), height-1)
	}

	for col, r := range rowOf {
		if r < 0 {
			continue
		}
		prev := -1
		if col > 0 {
			prev = rowOf[col-1]
		}
		next := -1
		if col < len(rowOf)-1 {
			next = rowOf[col+1]
		}

		switch {
		case prev < 0 && next < 0:
			grid[r][col] = '·'
		case prev >= 0 && prev < r:
			grid[r][col] = '╰'
		case prev >= 0 && prev > r:
			grid[r][col] = '╭'
		default:
			grid[r][col] = '─'
		}

		if prev >= 0 && prev != r {
			a, b := min(prev, r), max(prev, r)
			for fill := a + 1; fill < b; fill++ {
				grid[fill][col] = '│'
			}
		}
	}
	return grid
}

// yTicks returns evenly spaced value-axis ticks.
func yTicks(lo, hi float64, height int) []float64 {
	if hi == lo {
		return []float64{lo}
	}
	n := 4
	if height <= 6 {
		n = 3
	}
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = lo + float64(i)*(hi-lo)/float64(n-1)
	}
	return ticks
}

// xAxisLabels places the first, middle and last bucket hours under the plot.
func xAxisLabels(pts []model.HourlyPoint, plotWidth int) string {
	buf := []rune(strings.Repeat(" ", plotWidth))
	put := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	first := pts[0].Time.UTC().Format(HourLayout)
	last := pts[len(pts)-1].Time.UTC().Format(HourLayout)
	put(0, first)
	if plotWidth >= 3*len(first)+4 {
		mid := pts[len(pts)/2].Time.UTC().Format(HourLayout)
		put(plotWidth/2-len(mid)/2, mid)
	}
	if plotWidth >= 2*len(first)+2 {
		put(plotWidth-len(last), last)
	}
	return string(buf)
}

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls Bar rendering.
type BarOptions struct {
	// Width is the total character width. 0 reads $COLUMNS.
	Width int
	// MaxBars keeps only the most recent buckets. 0 means no limit.
	MaxBars int
}

// Bar draws one bar per bucket. Null buckets print "." with no bar.
//
//	DEMO_1/pm25
//	01-01 00:00  12.3  ████████████
//	01-01 01:00     .
//	01-01 02:00  15.0  ███████████████
func Bar(w io.Writer, title string, pts []model.HourlyPoint, opts BarOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	if opts.MaxBars > 0 && len(pts) > opts.MaxBars {
		pts = pts[len(pts)-opts.MaxBars:]
	}
	lo, hi, ok := bounds(pts)
	if !ok {
		return fmt.Errorf("chart bar: no non-null buckets to render")
	}
	if lo > 0 {
		lo = 0
	}

	valWidth := 1
	for _, p := range pts {
		valWidth = max(valWidth, len(formatFloat(p.AvgValue)))
	}
	area := max(width-len(HourLayout)-valWidth-4, 4)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	fmt.Fprintln(w, title)
	for _, p := range pts {
		bar := ""
		if !p.IsMissing() {
			n := int(math.Round((p.AvgValue - lo) / span * float64(area)))
			bar = strings.Repeat("█", min(max(n, 1), area))
		}
		fmt.Fprintf(w, "%s  %*s  %s\n", p.Time.UTC().Format(HourLayout), valWidth, formatFloat(p.AvgValue), bar)
	}
	return nil
}

// ─── Spark ────────────────────────────────────────────────────────────────────

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Spark returns a one-line sparkline of at most width runes. Null buckets
// render as spaces. An empty series returns "".
func Spark(pts []model.HourlyPoint, width int) string {
	if len(pts) == 0 {
		return ""
	}
	if width <= 0 || width > len(pts) {
		width = len(pts)
	}
	lo, hi, ok := bounds(pts)
	if !ok {
		return strings.Repeat(" ", width)
	}
	var sb strings.Builder
	for _, v := range sampleCols(pts, width) {
		if math.IsNaN(v) {
			sb.WriteRune(' ')
			continue
		}
		i := len(sparkLevels) / 2
		if hi > lo {
			i = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkLevels)-1)))
		}
		sb.WriteRune(sparkLevels[i])
	}
	return sb.String()
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats an axis or bar value compactly.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	}
	prec := 2
	if abs < 1 {
		prec = 3
	}
	s := strings.TrimRight(strconv.FormatFloat(v, 'f', prec, 64), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
