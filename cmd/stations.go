package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
)

var (
	stationsMatch   string
	stationsCountry string
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List monitoring stations",
	Long: `Fetch the full station list from the backend. Stations are listed in the
order the backend returns them.`,
	Example: `  emdash stations
  emdash stations --match raleigh
  emdash stations --country US --format csv --out stations.csv`,
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
		stations, err := deps.Client.FetchStations(cmd.Context())
		if err != nil {
			return err
		}
		stations = filterStations(stations, stationsMatch, stationsCountry)

		command := "stations"
		if stationsMatch != "" {
			command += fmt.Sprintf(" --match %q", stationsMatch)
		}
		result := newResult(model.KindStations, command, stations, len(stations), start)
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose)
	},
}

// filterStations keeps stations whose ID, name or city contains match and
// whose country equals country, both case-insensitively. Empty criteria
// match everything.
func filterStations(stations []model.Station, match, country string) []model.Station {
	match = strings.ToLower(strings.TrimSpace(match))
	country = strings.TrimSpace(country)
	if match == "" && country == "" {
		return stations
	}
	out := make([]model.Station, 0, len(stations))
	for _, s := range stations {
		if country != "" && !strings.EqualFold(s.Country, country) {
			continue
		}
		if match != "" &&
			!strings.Contains(strings.ToLower(s.StationID), match) &&
			!strings.Contains(strings.ToLower(s.Name), match) &&
			!strings.Contains(strings.ToLower(s.City), match) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func init() {
	rootCmd.AddCommand(stationsCmd)
	stationsCmd.Flags().StringVarP(&stationsMatch, "match", "m", "", "keep stations whose ID, name or city contains this text")
	stationsCmd.Flags().StringVar(&stationsCountry, "country", "", "keep stations in this country")
}
