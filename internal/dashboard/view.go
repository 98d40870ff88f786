package dashboard

import (
	"time"

	"golang.org/x/text/language"

	"github.com/derickschaefer/emdash/internal/model"
)

// Default map framing.
var (
	DefaultCenter = LatLon{Latitude: 35.7796, Longitude: -78.6382}
	DefaultZoom   = 6
)

// LatLon is a WGS84 position.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Marker is one station pin on the map.
type Marker struct {
	StationID string `json:"station_id"`
	Label     string `json:"label"`  // name, or station_id when unnamed
	Detail    string `json:"detail"` // "city country"
	Provider  string `json:"provider,omitempty"`
	LatLon
}

// MapView is the map panel's input.
type MapView struct {
	Loaded  bool     `json:"loaded"`
	Center  LatLon   `json:"center"`
	Zoom    int      `json:"zoom"`
	Markers []Marker `json:"markers"`
	Skipped int      `json:"skipped"` // stations with unusable coordinates
}

// StatCard is one labelled value on the stat-card row.
type StatCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChartView is the time-series panel's input.
type ChartView struct {
	Selection     model.Selection     `json:"selection"`
	Status        SeriesStatus        `json:"status"`
	Points        []model.HourlyPoint `json:"points"`
	DataSelection model.Selection     `json:"data_selection"`
	Error         string              `json:"error,omitempty"`
}

// View is everything the dashboard renders at one instant.
type View struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Map         MapView    `json:"map"`
	Metrics     Metrics    `json:"metrics"`
	Cards       []StatCard `json:"cards"`
	Chart       ChartView  `json:"chart"`
}

func buildMap(stations Snapshot[[]model.Station]) MapView {
	mv := MapView{
		Loaded:  stations.Loaded(),
		Center:  DefaultCenter,
		Zoom:    DefaultZoom,
		Markers: []Marker{},
	}
	for _, s := range stations.Value {
		if !s.HasValidPosition() {
			mv.Skipped++
			continue
		}
		mv.Markers = append(mv.Markers, Marker{
			StationID: s.StationID,
			Label:     s.DisplayName(),
			Detail:    s.Locality(),
			Provider:  s.Provider,
			LatLon:    LatLon{Latitude: s.Latitude, Longitude: s.Longitude},
		})
	}
	return mv
}

func buildCards(m Metrics, lang language.Tag) []StatCard {
	return []StatCard{
		{Label: "Stations", Value: m.Stations.Format(lang)},
		{Label: "Observations (24h)", Value: m.Observations24h.Format(lang)},
		{Label: "Parameters", Value: model.ParameterList()},
	}
}

func buildChart(st SeriesState) ChartView {
	cv := ChartView{
		Selection:     st.Selection,
		Status:        st.Status,
		Points:        st.Data,
		DataSelection: st.DataSelection,
	}
	if cv.Points == nil {
		cv.Points = []model.HourlyPoint{}
	}
	if st.Err != nil {
		cv.Error = st.Err.Error()
	}
	return cv
}
