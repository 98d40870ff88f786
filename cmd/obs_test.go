package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/api"
	"github.com/derickschaefer/emdash/internal/app"
	"github.com/derickschaefer/emdash/internal/model"
)

// obsBackend answers /observations with one row per known station and a 503
// for any station listed in down.
func obsBackend(t *testing.T, down ...string) *app.Deps {
	t.Helper()
	failing := make(map[string]bool)
	for _, id := range down {
		failing[id] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("station_id")
		w.Header().Set("Content-Type", "application/json")
		if failing[id] {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"detail":"station offline"}`)
			return
		}
		fmt.Fprintf(w, `[{"time":"2024-05-01T00:00:00Z","station_id":%q,"parameter":"pm25","unit":"µg/m³","value":7.5}]`, id)
	}))
	t.Cleanup(srv.Close)
	return &app.Deps{Client: api.NewClient(srv.URL, 5*time.Second, 0, nil, false)}
}

func TestFetchObservationsKeepsStationOrder(t *testing.T) {
	deps := obsBackend(t)
	stations := []string{"C", "A", "B", "D", "E"}

	obs, warnings, err := fetchObservations(context.Background(), deps, model.ObservationFilter{}, stations)
	if err != nil {
		t.Fatalf("fetchObservations: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(obs) != len(stations) {
		t.Fatalf("got %d observations, want %d", len(obs), len(stations))
	}
	for i, id := range stations {
		if obs[i].StationID != id {
			t.Errorf("row %d: station %q, want %q", i, obs[i].StationID, id)
		}
	}
}

func TestFetchObservationsPartialFailure(t *testing.T) {
	deps := obsBackend(t, "B")

	obs, warnings, err := fetchObservations(context.Background(), deps, model.ObservationFilter{}, []string{"A", "B"})
	if err != nil {
		t.Fatalf("one healthy station should not fail the command: %v", err)
	}
	if len(obs) != 1 || obs[0].StationID != "A" {
		t.Fatalf("unexpected observations: %+v", obs)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestFetchObservationsAllFail(t *testing.T) {
	deps := obsBackend(t, "A", "B")

	_, _, err := fetchObservations(context.Background(), deps, model.ObservationFilter{}, []string{"A", "B"})
	if err == nil {
		t.Fatal("expected error when every station fails")
	}
	var se *api.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped 503 StatusError, got %v", err)
	}
}

func TestNormaliseStations(t *testing.T) {
	got := normaliseStations([]string{"A, B", "", "b", "A", " C "})
	want := []string{"A", "B", "b", "C"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
