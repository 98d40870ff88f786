package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/emdash/internal/app"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/util"
)

var (
	obsStations []string
	obsParam    string
	obsStart    string
	obsEnd      string
	obsLast     time.Duration
	obsLimit    int
)

// obsConcurrency bounds parallel requests when several stations are listed.
const obsConcurrency = 4

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "List raw observations",
	Long: `Fetch raw (un-aggregated) observations. Every filter is optional; with no
flags the backend returns its most recent observations up to its own limit.

--station may be repeated or comma-separated. Stations are fetched
concurrently; a station that fails is reported as a warning and the rest are
still printed.`,
	Example: `  emdash obs --station DEMO_1 --param pm25 --last 6h
  emdash obs -s DEMO_1,DEMO_2 -p no2 --limit 100 --format csv
  emdash obs --start 2024-05-01 --end 2024-05-02 --format jsonl`,
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

		base := model.ObservationFilter{Limit: obsLimit}
		if obsParam != "" {
			if base.Parameter, err = model.ParseParameter(obsParam); err != nil {
				return fmt.Errorf("--param: %w", err)
			}
		}
		if base.Start, base.End, err = timeRange(obsStart, obsEnd, obsLast); err != nil {
			return err
		}

		start := time.Now()
		stations := normaliseStations(obsStations)
		obs, warnings, err := fetchObservations(cmd.Context(), deps, base, stations)
		if err != nil {
			return err
		}

		command := "obs"
		if len(stations) > 0 {
			command += " " + strings.Join(stations, ",")
		}
		result := newResult(model.KindObservations, command, obs, len(obs), start)
		result.Warnings = warnings
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose)
	},
}

// fetchObservations runs one request per station, or a single unfiltered
// request when no station is given. Results keep the station order given.
// Per-station failures become warnings; the error is returned only when
// every request failed.
func fetchObservations(ctx context.Context, deps *app.Deps, base model.ObservationFilter, stations []string) ([]model.Observation, []string, error) {
	if len(stations) == 0 {
		obs, err := deps.Client.FetchObservations(ctx, base)
		return obs, nil, err
	}

	results := make([][]model.Observation, len(stations))
	errs := make([]error, len(stations))
	var g errgroup.Group
	g.SetLimit(obsConcurrency)
	for i, id := range stations {
		g.Go(func() error {
			f := base
			f.StationID = id
			results[i], errs[i] = deps.Client.FetchObservations(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	var (
		all      []model.Observation
		warnings []string
		merr     util.MultiError
	)
	for i, err := range errs {
		if err != nil {
			merr.Add(err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", stations[i], err))
			continue
		}
		all = append(all, results[i]...)
	}
	if len(merr.Errors) == len(stations) {
		return nil, nil, merr.Err()
	}
	if all == nil {
		all = []model.Observation{}
	}
	return all, warnings, nil
}

// normaliseStations splits comma-separated values, trims them and removes
// duplicates while preserving order. Station IDs are case-sensitive.
func normaliseStations(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(obsCmd)
	f := obsCmd.Flags()
	f.StringArrayVarP(&obsStations, "station", "s", nil, "station ID; repeat or comma-separate for several")
	f.StringVarP(&obsParam, "param", "p", "", "pollutant: "+model.ParameterList())
	_ = obsCmd.RegisterFlagCompletionFunc("param", completeParameters)
	f.StringVar(&obsStart, "start", "", "earliest time, ISO-8601")
	f.StringVar(&obsEnd, "end", "", "latest time, ISO-8601")
	f.DurationVar(&obsLast, "last", 0, "only the trailing window, e.g. 6h")
	f.IntVar(&obsLimit, "limit", 0, "max observations per request (0 = backend default)")
	obsCmd.MarkFlagsMutuallyExclusive("last", "start")
}
