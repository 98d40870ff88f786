package render_test

import (
	"bufio"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/render"
)

func result(kind string, data any) *model.Result {
	return &model.Result{Kind: kind, GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Data: data}
}

func renderString(t *testing.T, r *model.Result, format string) string {
	t.Helper()
	var sb strings.Builder
	if err := render.Render(&sb, r, format); err != nil {
		t.Fatalf("Render(%s): %v", format, err)
	}
	return sb.String()
}

var stations = []model.Station{
	{StationID: "DEMO_1", Name: "Downtown", City: "Raleigh", Country: "US", Latitude: 35.7796, Longitude: -78.6382},
	{StationID: "DEMO_2", Latitude: 36, Longitude: -79},
}

func hourlySeries() *model.HourlySeries {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 4
	return &model.HourlySeries{
		Selection: model.DefaultSelection(),
		Points: []model.HourlyPoint{
			{Time: t0, AvgValue: 12.5, Unit: "µg/m³", N: &n},
			{Time: t0.Add(time.Hour), AvgValue: math.NaN(), Unit: "µg/m³"},
			{Time: t0.Add(2 * time.Hour), AvgValue: 7.5, Unit: "µg/m³"},
		},
	}
}

func TestStationsCSV(t *testing.T) {
	out := renderString(t, result(model.KindStations, stations), render.FormatCSV)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "station,name,provider,city,country,lat,lon" {
		t.Errorf("header: %q", lines[0])
	}
	if lines[1] != "DEMO_1,Downtown,,Raleigh,US,35.7796,-78.6382" {
		t.Errorf("row: %q", lines[1])
	}
}

func TestStationsTSV(t *testing.T) {
	out := renderString(t, result(model.KindStations, stations), render.FormatTSV)
	if !strings.HasPrefix(out, "station\tname\t") {
		t.Errorf("expected tab separated header: %q", out)
	}
}

func TestStationsMarkdown(t *testing.T) {
	out := renderString(t, result(model.KindStations, stations), render.FormatMD)
	if !strings.HasPrefix(out, "| STATION | NAME |") {
		t.Errorf("markdown header: %q", out)
	}
	if !strings.Contains(out, "---:") {
		t.Error("numeric columns should be right aligned")
	}
}

func TestHourlyJSONLWritesNullAndSelection(t *testing.T) {
	out := renderString(t, result(model.KindHourly, hourlySeries()), render.FormatJSONL)
	sc := bufio.NewScanner(strings.NewReader(out))
	var rows []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid jsonl line %q: %v", sc.Text(), err)
		}
		rows = append(rows, m)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1]["avg_value"] != nil {
		t.Errorf("null bucket: got %v", rows[1]["avg_value"])
	}
	if rows[0]["station_id"] != "DEMO_1" || rows[0]["parameter"] != "pm25" {
		t.Errorf("selection not stamped on rows: %v", rows[0])
	}
}

func TestHourlyTableFooter(t *testing.T) {
	out := renderString(t, result(model.KindHourly, hourlySeries()), render.FormatTable)
	if !strings.Contains(out, "3 points (1 missing)  min 7.50  mean 10.00  max 12.50 µg/m³") {
		t.Errorf("missing footer:\n%s", out)
	}
}

func TestMetricsTable(t *testing.T) {
	m := dashboard.Metrics{Stations: dashboard.Known(42), Observations24h: dashboard.Known(1337)}
	out := renderString(t, result(model.KindSummary, m), render.FormatTable)
	if !strings.Contains(out, "1,337") || !strings.Contains(out, "42") {
		t.Errorf("metrics table:\n%s", out)
	}
	out = renderString(t, result(model.KindSummary, dashboard.Metrics{}), render.FormatTable)
	if !strings.Contains(out, dashboard.Placeholder) {
		t.Errorf("unknown counts should show the placeholder:\n%s", out)
	}
}

func TestViewTable(t *testing.T) {
	v := &dashboard.View{
		Map: dashboard.MapView{
			Loaded: true, Center: dashboard.DefaultCenter, Zoom: dashboard.DefaultZoom,
			Markers: []dashboard.Marker{{StationID: "DEMO_1", Label: "Downtown", Detail: "Raleigh US",
				LatLon: dashboard.LatLon{Latitude: 35.7796, Longitude: -78.6382}}},
			Skipped: 1,
		},
		Cards: []dashboard.StatCard{{Label: "Stations", Value: "42"}, {Label: "Observations (24h)", Value: "1,337"}},
		Chart: dashboard.ChartView{
			Selection:     model.Selection{StationID: "DEMO_1", Parameter: model.O3},
			Status:        dashboard.SeriesLoading,
			Points:        hourlySeries().Points,
			DataSelection: model.DefaultSelection(),
		},
	}
	out := renderString(t, result(model.KindView, v), render.FormatTable)
	for _, want := range []string{"1,337", "DEMO_1/o3", "(showing DEMO_1/pm25)", "[loading]", "Downtown", "1 station(s) without usable coordinates"} {
		if !strings.Contains(out, want) {
			t.Errorf("view output missing %q:\n%s", want, out)
		}
	}
}

func TestViewTableEmpty(t *testing.T) {
	v := &dashboard.View{
		Map:   dashboard.MapView{Center: dashboard.DefaultCenter, Zoom: dashboard.DefaultZoom},
		Cards: []dashboard.StatCard{{Label: "Stations", Value: dashboard.Placeholder}},
		Chart: dashboard.ChartView{Selection: model.DefaultSelection(), Status: dashboard.SeriesLoading},
	}
	out := renderString(t, result(model.KindView, v), render.FormatTable)
	if !strings.Contains(out, "(no data)") || !strings.Contains(out, "stations not loaded") {
		t.Errorf("empty view:\n%s", out)
	}
}

func TestViewJSON(t *testing.T) {
	v := &dashboard.View{Chart: dashboard.ChartView{Points: hourlySeries().Points}}
	out := renderString(t, result(model.KindView, v), render.FormatJSON)
	if !strings.Contains(out, `"kind": "view"`) || !strings.Contains(out, `"avg_value": null`) {
		t.Errorf("view json:\n%s", out)
	}
}

func TestValidFormat(t *testing.T) {
	if !render.ValidFormat("jsonl") || render.ValidFormat("yaml") {
		t.Error("ValidFormat mismatch")
	}
}
