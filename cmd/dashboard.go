package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/app"
	"github.com/derickschaefer/emdash/internal/model"
)

var (
	dashboardSel   selectionFlags
	dashboardWatch bool
	dashboardEvery time.Duration
	dashboardFresh bool
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Compose and print the dashboard view",
	Long: `Mount the dashboard: fetch the hourly series for the selected station and
pollutant, the station list and the 24-hour summary, then print the stat
cards, the hourly chart and the station map.

A failed fetch never aborts the view. Missing counts show as "—", a failed
chart shows its error, and an unloaded map shows its default framing.

With --watch the view is redrawn whenever a store changes and every store is
refetched each --every interval. Commands typed on stdin change the view:

  station <ID>     select another station
  param <CODE>     select another pollutant (pm25, pm10, o3, no2)
  preset <NAME>    apply a saved preset
  refresh          refetch everything now
  quit             exit`,
	Example: `  emdash dashboard
  emdash dashboard --station RDU_7 --param o3
  emdash dashboard --format json
  emdash dashboard --watch --every 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Config.Validate(); err != nil {
			return err
		}
		format := resolveFormat(deps.Config.Format)
		if err := checkFormat(format); err != nil {
			return err
		}

		sel, err := dashboardSelection(cmd, deps)
		if err != nil {
			return err
		}

		if dashboardWatch {
			every := deps.Config.RefreshInterval
			if dashboardEvery > 0 {
				every = dashboardEvery
			}
			return runWatch(cmd, deps, sel, every)
		}

		start := time.Now()
		c := deps.NewComposer(sel)
		// Each request is bounded by the client timeout; the mount as a whole is not.
		if err := c.Mount(cmd.Context()); err != nil {
			deps.Logger.Debug("mount incomplete", "err", err)
		}
		c.Wait()

		view := c.View()
		result := newResult(model.KindView, "dashboard "+sel.String(), &view, len(view.Map.Markers), start)
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose)
	},
}

// dashboardSelection resolves the starting selection: explicit flags win,
// then the selection saved by the last interactive session, then config.
func dashboardSelection(cmd *cobra.Command, deps *app.Deps) (model.Selection, error) {
	sel, err := dashboardSel.resolve(deps.Config)
	if err != nil {
		return sel, err
	}
	if dashboardFresh || cmd.Flags().Changed("station") || cmd.Flags().Changed("param") {
		return sel, nil
	}
	st, err := deps.RequireStore()
	if err != nil {
		deps.Logger.Debug("local store unavailable", "err", err)
		return sel, nil
	}
	last, ok, err := st.LastSelection()
	if err != nil {
		deps.Logger.Warn("reading last selection", "err", err)
		return sel, nil
	}
	if ok {
		return last, nil
	}
	return sel, nil
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardSel.register(dashboardCmd)
	dashboardCmd.Flags().BoolVarP(&dashboardWatch, "watch", "w", false, "keep running: redraw on change and refresh periodically")
	dashboardCmd.Flags().DurationVar(&dashboardEvery, "every", 0, "refresh interval in watch mode (default: refresh_interval)")
	dashboardCmd.Flags().BoolVar(&dashboardFresh, "fresh", false, "ignore the selection saved by the last watch session")
}
