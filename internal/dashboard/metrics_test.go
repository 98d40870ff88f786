package dashboard_test

import (
	"encoding/json"
	"testing"

	"golang.org/x/text/language"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
)

func loadedSummary(stations, obs int) dashboard.Snapshot[model.StatsSummary] {
	return dashboard.Snapshot[model.StatsSummary]{
		Status: dashboard.StatusLoaded,
		Value:  model.StatsSummary{StationCount: stations, Observation24h: obs},
	}
}

func loadedStations(n int) dashboard.Snapshot[[]model.Station] {
	return dashboard.Snapshot[[]model.Station]{Status: dashboard.StatusLoaded, Value: stationList(n)}
}

func TestDeriveMetrics(t *testing.T) {
	var (
		noSummary  dashboard.Snapshot[model.StatsSummary]
		noStations dashboard.Snapshot[[]model.Station]
	)
	tests := []struct {
		name         string
		summary      dashboard.Snapshot[model.StatsSummary]
		stations     dashboard.Snapshot[[]model.Station]
		wantStations string
		wantObs      string
	}{
		{"summary only", loadedSummary(42, 1337), noStations, "42", "1,337"},
		{"summary beats list", loadedSummary(42, 0), loadedStations(3), "42", "0"},
		{"summary zero beats list", loadedSummary(0, 5), loadedStations(3), "0", "5"},
		{"list fallback", noSummary, loadedStations(7), "7", dashboard.Placeholder},
		{"empty list counts as zero", noSummary, loadedStations(0), "0", dashboard.Placeholder},
		{"nothing loaded", noSummary, noStations, dashboard.Placeholder, dashboard.Placeholder},
		{"large counts grouped", loadedSummary(1234567, 9876543), noStations, "1,234,567", "9,876,543"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := dashboard.DeriveMetrics(tt.summary, tt.stations)
			if got := m.Stations.String(); got != tt.wantStations {
				t.Errorf("stations: got %q, want %q", got, tt.wantStations)
			}
			if got := m.Observations24h.String(); got != tt.wantObs {
				t.Errorf("observations: got %q, want %q", got, tt.wantObs)
			}
		})
	}
}

func TestCountFormatLocale(t *testing.T) {
	c := dashboard.Known(1337)
	if got := c.Format(language.English); got != "1,337" {
		t.Errorf("english: got %q", got)
	}
	if got := c.Format(language.German); got != "1.337" {
		t.Errorf("german: got %q", got)
	}
	if got := dashboard.Unknown.Format(language.German); got != dashboard.Placeholder {
		t.Errorf("unknown: got %q", got)
	}
}

func TestMetricsJSON(t *testing.T) {
	m := dashboard.Metrics{Stations: dashboard.Known(0)}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"stations":0,"observations_24h":null}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
