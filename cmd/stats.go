package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the station and 24-hour observation counts",
	Long: `Load the station list and the backend summary, then derive the stat-card
counts exactly as the dashboard does: the summary's station count wins, the
length of the station list is the fallback, and a count that cannot be
derived is shown as "—" (null in JSON).`,
	Example: `  emdash stats
  emdash stats --format json`,
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

		start := time.Now()
		c := deps.NewComposer(deps.Config.Selection())
		// The series store stays idle, so Refresh loads only the two stores.
		if err := c.Refresh(cmd.Context()); err != nil {
			deps.Logger.Debug("stats incomplete", "err", err)
		}

		metrics := c.View().Metrics
		result := newResult(model.KindSummary, "stats", metrics, 2, start)
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
