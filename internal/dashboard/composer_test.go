package dashboard_test

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
)

func cardValue(t *testing.T, v dashboard.View, label string) string {
	t.Helper()
	for _, c := range v.Cards {
		if c.Label == label {
			return c.Value
		}
	}
	t.Fatalf("no stat card labelled %q", label)
	return ""
}

func TestMountShowsSummaryCounts(t *testing.T) {
	f := newFakeClient()
	f.setStations(func() ([]model.Station, error) { return stationList(2), nil })
	f.setSummary(func() (model.StatsSummary, error) {
		return model.StatsSummary{StationCount: 42, Observation24h: 1337}, nil
	})
	c := dashboard.NewComposer(f, dashboard.Options{})

	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	f.next(t).resolve(series(8))
	c.Wait()

	v := c.View()
	if got := cardValue(t, v, "Stations"); got != "42" {
		t.Errorf("stations card: got %q, want 42", got)
	}
	if got := cardValue(t, v, "Observations (24h)"); got != "1,337" {
		t.Errorf("observations card: got %q, want 1,337", got)
	}
	if v.Chart.Status != dashboard.SeriesReady || len(v.Chart.Points) != 1 {
		t.Errorf("chart: %s with %d points", v.Chart.Status, len(v.Chart.Points))
	}
}

func TestMountEmptyStationsFailedSummary(t *testing.T) {
	f := newFakeClient()
	f.setStations(func() ([]model.Station, error) { return []model.Station{}, nil })
	c := dashboard.NewComposer(f, dashboard.Options{})

	err := c.Mount(context.Background())
	if err == nil {
		t.Fatal("expected the summary failure to be reported")
	}
	f.next(t).fail(errBackend)
	c.Wait()

	v := c.View()
	if got := cardValue(t, v, "Stations"); got != "0" {
		t.Errorf("stations card: got %q, want 0", got)
	}
	if got := cardValue(t, v, "Observations (24h)"); got != dashboard.Placeholder {
		t.Errorf("observations card: got %q, want placeholder", got)
	}
	if !v.Map.Loaded || len(v.Map.Markers) != 0 {
		t.Errorf("map should be loaded with no markers: %+v", v.Map)
	}
	if v.Chart.Status != dashboard.SeriesError || v.Chart.Error == "" {
		t.Errorf("chart should report the error, got %+v", v.Chart)
	}
}

func TestMountEverythingFailsStillRenders(t *testing.T) {
	f := newFakeClient()
	c := dashboard.NewComposer(f, dashboard.Options{})
	_ = c.Mount(context.Background())
	f.next(t).fail(errBackend)
	c.Wait()

	v := c.View()
	if v.Metrics.Stations.Known || v.Metrics.Observations24h.Known {
		t.Errorf("counts should be unknown: %+v", v.Metrics)
	}
	if v.Map.Loaded {
		t.Error("map should not be loaded")
	}
	if v.Map.Center != dashboard.DefaultCenter || v.Map.Zoom != dashboard.DefaultZoom {
		t.Errorf("unexpected map framing: %+v", v.Map)
	}
	if _, err := json.Marshal(v); err != nil {
		t.Errorf("view must always encode: %v", err)
	}
	if got := cardValue(t, v, "Parameters"); got != "pm25, pm10, o3, no2" {
		t.Errorf("Parameters card = %q", got)
	}
}

// Stations and summary are fetched concurrently: neither waits on the other.
func TestMountLoadsStoresConcurrently(t *testing.T) {
	f := newFakeClient()
	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func() bool {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return true
		case <-time.After(2 * time.Second):
			return false
		}
	}
	f.setStations(func() ([]model.Station, error) {
		if !barrier() {
			return nil, errBackend
		}
		return stationList(1), nil
	})
	f.setSummary(func() (model.StatsSummary, error) {
		if !barrier() {
			return model.StatsSummary{}, errBackend
		}
		return model.StatsSummary{StationCount: 1}, nil
	})

	c := dashboard.NewComposer(f, dashboard.Options{})
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("fetches were serialised: %v", err)
	}
	f.next(t).resolve(nil)
	c.Wait()
}

func TestMountUsesInitialSelection(t *testing.T) {
	f := newFakeClient()
	c := dashboard.NewComposer(f, dashboard.Options{
		Selection: model.Selection{StationID: "RDU_7"},
	})
	_ = c.Mount(context.Background())
	p := f.next(t)
	if p.query.StationID != "RDU_7" || p.query.Parameter != model.PM25 {
		t.Errorf("unexpected first query: %+v", p.query)
	}
	p.resolve(nil)
	c.Wait()
}

func TestViewMarkers(t *testing.T) {
	f := newFakeClient()
	f.setStations(func() ([]model.Station, error) {
		return []model.Station{
			{StationID: "A", Name: "Alpha", City: "Raleigh", Country: "US", Latitude: 35.8, Longitude: -78.6},
			{StationID: "B", Latitude: 36.0, Longitude: -79.0},
			{StationID: "C", Latitude: math.NaN(), Longitude: 0},
			{StationID: "D", Latitude: 95, Longitude: 0},
		}, nil
	})
	c := dashboard.NewComposer(f, dashboard.Options{})
	_ = c.Mount(context.Background())
	f.next(t).resolve(nil)
	c.Wait()

	mv := c.View().Map
	if len(mv.Markers) != 2 || mv.Skipped != 2 {
		t.Fatalf("expected 2 markers and 2 skipped, got %d/%d", len(mv.Markers), mv.Skipped)
	}
	if mv.Markers[0].Label != "Alpha" || mv.Markers[0].Detail != "Raleigh US" {
		t.Errorf("marker A: %+v", mv.Markers[0])
	}
	if mv.Markers[1].Label != "B" || mv.Markers[1].Detail != "" {
		t.Errorf("unnamed station should label by id: %+v", mv.Markers[1])
	}
	// Station count still reflects the full list.
	if got := c.View().Metrics.Stations.String(); got != "4" {
		t.Errorf("station count: got %q", got)
	}
}

func TestRefreshRetriesFailedStores(t *testing.T) {
	f := newFakeClient()
	c := dashboard.NewComposer(f, dashboard.Options{})
	ctx := context.Background()
	_ = c.Mount(ctx)
	f.next(t).fail(errBackend)
	c.Wait()

	f.setSummary(func() (model.StatsSummary, error) {
		return model.StatsSummary{StationCount: 9, Observation24h: 10}, nil
	})
	f.setStations(func() ([]model.Station, error) { return stationList(1), nil })

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	f.next(t).resolve(series(3))
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	c.Wait()

	v := c.View()
	if got := cardValue(t, v, "Stations"); got != "9" {
		t.Errorf("stations card after refresh: %q", got)
	}
	if v.Chart.Status != dashboard.SeriesReady {
		t.Errorf("chart after refresh: %s", v.Chart.Status)
	}
}

func TestComposerOnChangeFires(t *testing.T) {
	f := newFakeClient()
	f.setSummary(func() (model.StatsSummary, error) { return model.StatsSummary{}, nil })
	c := dashboard.NewComposer(f, dashboard.Options{})

	var mu sync.Mutex
	var seen []string
	c.OnChange(func() {
		v := c.View()
		mu.Lock()
		seen = append(seen, v.Chart.Status.String())
		mu.Unlock()
	})

	_ = c.Mount(context.Background())
	f.next(t).resolve(series(1))
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(seen, ",")
	if !strings.Contains(joined, "loading") || !strings.HasSuffix(joined, "ready") {
		t.Errorf("unexpected notification sequence: %s", joined)
	}
}
