// Package render converts Result values into human-readable or machine-parseable
// output. Every tabular kind is reduced to a header and rows once; the
// table, CSV/TSV and Markdown writers share that reduction. The dashboard
// view has its own terminal layout.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/emdash/internal/analyze"
	"github.com/derickschaefer/emdash/internal/chart"
	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// ValidFormat reports whether f is an accepted --format value.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// renderJSONL writes one record per row for list kinds, and the payload on a
// single line otherwise.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	each := func(n int, at func(int) any) error {
		for i := 0; i < n; i++ {
			if err := enc.Encode(at(i)); err != nil {
				return err
			}
		}
		return nil
	}
	switch d := result.Data.(type) {
	case []model.Station:
		return each(len(d), func(i int) any { return d[i] })
	case []model.Observation:
		return each(len(d), func(i int) any { return d[i] })
	case []model.Preset:
		return each(len(d), func(i int) any { return d[i] })
	case *model.HourlySeries:
		return each(len(d.Points), func(i int) any {
			p := d.Points[i]
			if p.StationID == "" {
				p.StationID = d.Selection.StationID
			}
			if p.Parameter == "" {
				p.Parameter = d.Selection.Parameter
			}
			return p
		})
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Tabular reduction ────────────────────────────────────────────────────────

type tabular struct {
	header []string
	rows   [][]string
	align  []int
}

func toTabular(result *model.Result) (tabular, bool) {
	switch d := result.Data.(type) {
	case []model.Station:
		return stationRows(d), true
	case []model.Observation:
		return observationRows(d), true
	case *model.HourlySeries:
		return hourlyRows(d), true
	case dashboard.Metrics:
		return metricRows(d), true
	case []model.Preset:
		return presetRows(d), true
	case *dashboard.View:
		return markerRows(d.Map.Markers), true
	}
	return tabular{}, false
}

func stationRows(stations []model.Station) tabular {
	t := tabular{
		header: []string{"STATION", "NAME", "PROVIDER", "CITY", "COUNTRY", "LAT", "LON"},
		align:  []int{left, left, left, left, left, right, right},
	}
	for _, s := range stations {
		t.rows = append(t.rows, []string{
			s.StationID, s.Name, s.Provider, s.City, s.Country,
			strconv.FormatFloat(s.Latitude, 'f', 4, 64),
			strconv.FormatFloat(s.Longitude, 'f', 4, 64),
		})
	}
	return t
}

func observationRows(obs []model.Observation) tabular {
	t := tabular{
		header: []string{"TIME", "STATION", "PARAM", "VALUE", "UNIT", "QUALITY", "SOURCE"},
		align:  []int{left, left, left, right, left, left, left},
	}
	for _, o := range obs {
		t.rows = append(t.rows, []string{
			util.FormatTimestamp(o.Time), o.StationID, string(o.Parameter),
			util.FormatValue(o.Value), o.Unit, o.Quality, o.Source,
		})
	}
	return t
}

func hourlyRows(hs *model.HourlySeries) tabular {
	t := tabular{
		header: []string{"HOUR", "AVG", "MIN", "MAX", "N", "UNIT"},
		align:  []int{left, right, right, right, right, left},
	}
	for _, p := range hs.Points {
		n := ""
		if p.N != nil {
			n = strconv.Itoa(*p.N)
		}
		t.rows = append(t.rows, []string{
			util.FormatHour(p.Time), util.FormatValue(p.AvgValue),
			util.FormatOptional(p.MinValue), util.FormatOptional(p.MaxValue), n, p.Unit,
		})
	}
	return t
}

func metricRows(m dashboard.Metrics) tabular {
	return tabular{
		header: []string{"METRIC", "VALUE"},
		align:  []int{left, right},
		rows: [][]string{
			{"Stations", m.Stations.String()},
			{"Observations (24h)", m.Observations24h.String()},
		},
	}
}

func presetRows(presets []model.Preset) tabular {
	t := tabular{
		header: []string{"NAME", "STATION", "PARAM", "CREATED", "ID"},
		align:  []int{left, left, left, left, left},
	}
	for _, p := range presets {
		t.rows = append(t.rows, []string{
			p.Name, p.Selection.StationID, string(p.Selection.Parameter),
			p.CreatedAt.UTC().Format(time.DateTime), p.ID,
		})
	}
	return t
}

func markerRows(markers []dashboard.Marker) tabular {
	t := tabular{
		header: []string{"STATION", "LABEL", "LOCATION", "LAT", "LON"},
		align:  []int{left, left, left, right, right},
	}
	for _, m := range markers {
		t.rows = append(t.rows, []string{
			m.StationID, m.Label, m.Detail,
			strconv.FormatFloat(m.Latitude, 'f', 4, 64),
			strconv.FormatFloat(m.Longitude, 'f', 4, 64),
		})
	}
	return t
}

// ─── Table ────────────────────────────────────────────────────────────────────

const (
	left  = tablewriter.ALIGN_LEFT
	right = tablewriter.ALIGN_RIGHT
)

func renderTable(w io.Writer, result *model.Result) error {
	switch d := result.Data.(type) {
	case *dashboard.View:
		return renderView(w, d)
	case *model.HourlySeries:
		writeTable(w, hourlyRows(d))
		writeSeriesFooter(w, analyze.Summarize(d.Selection, d.Points))
		return nil
	}
	t, ok := toTabular(result)
	if !ok {
		return renderJSON(w, result)
	}
	writeTable(w, t)
	return nil
}

func writeTable(w io.Writer, t tabular) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	if len(t.align) == len(t.header) {
		tw.SetColumnAlignment(t.align)
	}
	tw.SetAutoWrapText(false)
	tw.AppendBulk(t.rows)
	tw.Render()
}

// renderView lays out the dashboard for a terminal: stat cards, the chart,
// then the map markers.
func renderView(w io.Writer, v *dashboard.View) error {
	cards := tablewriter.NewWriter(w)
	header := make([]string, len(v.Cards))
	row := make([]string, len(v.Cards))
	for i, c := range v.Cards {
		header[i] = c.Label
		row[i] = c.Value
	}
	cards.SetHeader(header)
	cards.SetAutoFormatHeaders(false)
	cards.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	cards.SetAlignment(tablewriter.ALIGN_CENTER)
	cards.Append(row)
	cards.Render()
	fmt.Fprintln(w)

	title := v.Chart.Selection.String()
	if len(v.Chart.Points) > 0 && v.Chart.DataSelection != v.Chart.Selection {
		title += "  (showing " + v.Chart.DataSelection.String() + ")"
	}
	if err := chart.Plot(w, title, v.Chart.Points, chart.PlotOptions{Status: v.Chart.Status.String()}); err != nil {
		return err
	}
	if v.Chart.Error != "" {
		fmt.Fprintf(w, "⚠  %s\n", v.Chart.Error)
	}
	if len(v.Chart.Points) > 0 {
		writeSeriesFooter(w, analyze.Summarize(v.Chart.DataSelection, v.Chart.Points))
	}
	fmt.Fprintln(w)

	switch {
	case !v.Map.Loaded:
		fmt.Fprintf(w, "Map: stations not loaded (center %.4f, %.4f zoom %d)\n",
			v.Map.Center.Latitude, v.Map.Center.Longitude, v.Map.Zoom)
	case len(v.Map.Markers) == 0:
		fmt.Fprintln(w, "Map: no stations")
	default:
		writeTable(w, markerRows(v.Map.Markers))
	}
	if v.Map.Skipped > 0 {
		fmt.Fprintf(w, "⚠  %d station(s) without usable coordinates\n", v.Map.Skipped)
	}
	return nil
}

// writeSeriesFooter prints the one-line series summary under a chart or
// hourly table.
func writeSeriesFooter(w io.Writer, s analyze.Summary) {
	if s.Count == 0 {
		fmt.Fprintln(w, "no hourly buckets")
		return
	}
	unit := ""
	if s.Unit != "" {
		unit = " " + s.Unit
	}
	fmt.Fprintf(w, "%d points (%d missing)  min %s  mean %s  max %s%s\n",
		s.Count, s.Missing, stat(s.Min), stat(s.Mean), stat(s.Max), unit)
}

func stat(s analyze.Stat) string {
	if !s.Valid() {
		return "."
	}
	return strconv.FormatFloat(float64(s), 'f', 2, 64)
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	if t, ok := toTabular(result); ok {
		header := make([]string, len(t.header))
		for i, h := range t.header {
			header[i] = strings.ToLower(h)
		}
		_ = cw.Write(header)
		_ = cw.WriteAll(t.rows)
	} else {
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	t, ok := toTabular(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(t.header, " | "))
	sep := make([]string, len(t.header))
	for i := range sep {
		sep[i] = "---"
		if i < len(t.align) && t.align[i] == right {
			sep[i] = "---:"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(sep, "|"))
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and, in verbose mode, timing stats to w.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
