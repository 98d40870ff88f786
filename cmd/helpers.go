package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/config"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/render"
	"github.com/derickschaefer/emdash/internal/util"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// checkFormat rejects formats the renderer does not know.
func checkFormat(format string) error {
	if !render.ValidFormat(format) {
		return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(render.Formats, ", "))
	}
	return nil
}

// outputWriter returns the --out file when set, otherwise def. The returned
// close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// newResult wraps data in a Result envelope stamped with the time since start.
func newResult(kind, command string, data any, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// emit renders result in format to --out or w, then prints the footer.
func emit(w io.Writer, result *model.Result, format string, verbose bool) error {
	out, closeFn, err := outputWriter(w)
	if err != nil {
		return err
	}
	if err := render.Render(out, result, format); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	render.PrintFooter(w, result, verbose)
	return nil
}

// ─── Selection flags ──────────────────────────────────────────────────────────

// selectionFlags binds --station and --param on commands that address one
// hourly series.
type selectionFlags struct {
	Station string
	Param   string
}

func (f *selectionFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.Station, "station", "s", "", "station ID (default: default_station)")
	c.Flags().StringVarP(&f.Param, "param", "p", "", "pollutant: "+model.ParameterList()+" (default: default_parameter)")
	_ = c.RegisterFlagCompletionFunc("param", completeParameters)
}

// resolve overlays the flags on the configured default selection.
func (f *selectionFlags) resolve(cfg *config.Config) (model.Selection, error) {
	sel := cfg.Selection()
	if s := strings.TrimSpace(f.Station); s != "" {
		sel.StationID = s
	}
	if f.Param != "" {
		p, err := model.ParseParameter(f.Param)
		if err != nil {
			return sel, fmt.Errorf("--param: %w", err)
		}
		sel.Parameter = p
	}
	return sel, nil
}

// parseTimeFlag parses an ISO-8601 time flag; an empty value is the zero
// time.
func parseTimeFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := util.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// timeRange resolves --start/--end/--last into query bounds. --last is
// measured back from now and replaces --start.
func timeRange(start, end string, last time.Duration) (time.Time, time.Time, error) {
	from, err := parseTimeFlag("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeFlag("end", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if last > 0 {
		from = time.Now().UTC().Add(-last)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before the start %s",
			util.FormatTimestamp(to), util.FormatTimestamp(from))
	}
	return from, to, nil
}

// ─── Tables ───────────────────────────────────────────────────────────────────

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value listing with aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
