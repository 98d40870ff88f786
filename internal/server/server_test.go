package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/server"
)

// instantClient answers every read immediately and records hourly queries.
type instantClient struct {
	mu      sync.Mutex
	queries []model.HourlyQuery
}

func (c *instantClient) FetchStations(context.Context) ([]model.Station, error) {
	return []model.Station{{StationID: "DEMO_1", Name: "Downtown", Latitude: 35.78, Longitude: -78.64}}, nil
}

func (c *instantClient) FetchSummary(context.Context) (model.StatsSummary, error) {
	return model.StatsSummary{StationCount: 42, Observation24h: 1337}, nil
}

func (c *instantClient) FetchObservations(context.Context, model.ObservationFilter) ([]model.Observation, error) {
	return nil, nil
}

func (c *instantClient) FetchHourly(_ context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()
	return []model.HourlyPoint{{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), AvgValue: 1}}, nil
}

type presetList []model.Preset

func (p presetList) ListPresets() ([]model.Preset, error) { return p, nil }

func (p presetList) GetPreset(ref string) (model.Preset, error) {
	for _, x := range p {
		if x.ID == ref || x.Name == ref {
			return x, nil
		}
	}
	return model.Preset{}, errors.New("not found")
}

func newServer(t *testing.T, opts server.Options) (*server.Server, *dashboard.Composer) {
	t.Helper()
	c := dashboard.NewComposer(&instantClient{}, dashboard.Options{})
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	c.Wait()
	return server.New(c, opts), c
}

func do(t *testing.T, s *server.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t, server.Options{})
	code, body := do(t, s, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", code, body)
	}
}

func TestGetView(t *testing.T) {
	s, _ := newServer(t, server.Options{})
	code, body := do(t, s, http.MethodGet, "/api/view", "")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	cards := body["cards"].([]any)
	if v := cards[1].(map[string]any)["value"]; v != "1,337" {
		t.Errorf("observations card: %v", v)
	}
	metrics := body["metrics"].(map[string]any)
	if metrics["stations"] != float64(42) {
		t.Errorf("metrics: %v", metrics)
	}
	chart := body["chart"].(map[string]any)
	if chart["status"] != "ready" {
		t.Errorf("chart status: %v", chart["status"])
	}
}

func TestPutSelectionPartial(t *testing.T) {
	var saved []model.Selection
	s, c := newServer(t, server.Options{OnSelect: func(sel model.Selection) { saved = append(saved, sel) }})

	code, body := do(t, s, http.MethodPut, "/api/selection", `{"parameter":"O3"}`)
	if code != http.StatusAccepted {
		t.Fatalf("status %d: %v", code, body)
	}
	c.Wait()
	st := c.Series().State()
	want := model.Selection{StationID: "DEMO_1", Parameter: model.O3}
	if st.Selection != want || st.DataSelection != want {
		t.Errorf("selection: %s data %s", st.Selection, st.DataSelection)
	}
	if len(saved) != 1 || saved[0] != want {
		t.Errorf("OnSelect: %v", saved)
	}
}

func TestConcurrentPartialSelections(t *testing.T) {
	for i := range 50 {
		s, c := newServer(t, server.Options{})
		var wg sync.WaitGroup
		for _, body := range []string{`{"station_id":"DEMO_2"}`, `{"parameter":"no2"}`} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if code, out := do(t, s, http.MethodPut, "/api/selection", body); code != http.StatusAccepted {
					t.Errorf("%s: status %d %v", body, code, out)
				}
			}()
		}
		wg.Wait()
		c.Wait()
		want := model.Selection{StationID: "DEMO_2", Parameter: model.NO2}
		if got := c.Series().State().Selection; got != want {
			t.Fatalf("round %d: selection %s, want %s", i, got, want)
		}
	}
}

func TestPutSelectionValidation(t *testing.T) {
	s, _ := newServer(t, server.Options{})
	for _, body := range []string{`{"parameter":"co2"}`, `not json`} {
		code, out := do(t, s, http.MethodPut, "/api/selection", body)
		if code != http.StatusBadRequest || out["error"] == nil {
			t.Errorf("%s: expected 400 with error, got %d %v", body, code, out)
		}
	}
}

func TestPostRefresh(t *testing.T) {
	s, _ := newServer(t, server.Options{})
	code, body := do(t, s, http.MethodPost, "/api/refresh", "")
	if code != http.StatusOK || body["map"] == nil {
		t.Errorf("refresh: %d %v", code, body)
	}
}

func TestPresetRoutes(t *testing.T) {
	s, _ := newServer(t, server.Options{})
	if code, _ := do(t, s, http.MethodGet, "/api/presets", ""); code != http.StatusNotFound {
		t.Errorf("presets disabled: expected 404, got %d", code)
	}

	presets := presetList{{ID: "p1", Name: "evening", Selection: model.Selection{StationID: "DEMO_2", Parameter: model.NO2}}}
	s, c := newServer(t, server.Options{Presets: presets})
	code, _ := do(t, s, http.MethodPost, "/api/presets/evening/apply", "")
	if code != http.StatusAccepted {
		t.Fatalf("apply: %d", code)
	}
	c.Wait()
	if got := c.Series().State().Selection; got != presets[0].Selection {
		t.Errorf("preset not applied: %s", got)
	}
	if code, _ := do(t, s, http.MethodPost, fmt.Sprintf("/api/presets/%s/apply", "missing"), ""); code != http.StatusNotFound {
		t.Errorf("unknown preset: %d", code)
	}
}

func TestCORSAllowList(t *testing.T) {
	allowOrigin := func(s *server.Server) string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := s.App().Test(req)
		if err != nil {
			t.Fatalf("GET /api/view: %v", err)
		}
		resp.Body.Close()
		return resp.Header.Get("Access-Control-Allow-Origin")
	}

	s, _ := newServer(t, server.Options{CORSOrigins: "http://localhost:5173"})
	if got := allowOrigin(s); got != "http://localhost:5173" {
		t.Errorf("allowed origin: got %q", got)
	}
	s, _ = newServer(t, server.Options{})
	if got := allowOrigin(s); got != "" {
		t.Errorf("CORS disabled should send no header, got %q", got)
	}
}
