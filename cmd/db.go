package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and manage the local database",
	Long: `Commands for inspecting and clearing the local bbolt database.

The database holds saved presets and the last dashboard selection. Backend
data is never stored; every dashboard run fetches it fresh.`,
}

// ─── db stats ─────────────────────────────────────────────────────────────────

var dbStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  emdash db stats`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		stats, err := st.Stats()
		if err != nil {
			return fmt.Errorf("reading database stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", st.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── db clear ─────────────────────────────────────────────────────────────────

var (
	dbClearAll    bool
	dbClearBucket string
)

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local database",
	Long: `Delete entries from one or all buckets.

Clearing "presets" also requires clearing "preset_names"; use --all or clear
both to keep name lookups consistent.`,
	Example: `  emdash db clear --all
  emdash db clear --bucket state`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dbClearAll && dbClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}
		if dbClearBucket != "" && !slices.Contains(store.AllBuckets, dbClearBucket) {
			return fmt.Errorf("unknown bucket %q (valid: %s)", dbClearBucket, strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		if dbClearAll {
			if err := st.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
			return nil
		}

		if err := st.ClearBucket(dbClearBucket); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %q\n", dbClearBucket)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbClearCmd)

	dbClearCmd.Flags().BoolVar(&dbClearAll, "all", false, "clear all buckets")
	dbClearCmd.Flags().StringVar(&dbClearBucket, "bucket", "", "clear one bucket: "+strings.Join(store.AllBuckets, "|"))
	dbClearCmd.MarkFlagsMutuallyExclusive("all", "bucket")
}
