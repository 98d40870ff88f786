// Package model defines the canonical data types used throughout emdash.
// These types mirror the monitoring backend's JSON contract and carry the
// result envelope every command renders.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ─── Parameters ───────────────────────────────────────────────────────────────

// Parameter is a pollutant code identifying which measured quantity a series
// represents.
type Parameter string

const (
	PM25 Parameter = "pm25"
	PM10 Parameter = "pm10"
	NO2  Parameter = "no2"
	O3   Parameter = "o3"
)

// Parameters is the fixed, ordered set of selectable pollutant codes.
var Parameters = []Parameter{PM25, PM10, O3, NO2}

// Valid reports whether p is one of the enumerated pollutant codes.
func (p Parameter) Valid() bool {
	for _, known := range Parameters {
		if p == known {
			return true
		}
	}
	return false
}

// ParseParameter normalises s and checks it against the enumerated set.
func ParseParameter(s string) (Parameter, error) {
	p := Parameter(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid parameter %q: expected one of %s", s, ParameterList())
	}
	return p, nil
}

// ParameterList returns the enumerated codes as a comma-separated string.
func ParameterList() string {
	names := make([]string, len(Parameters))
	for i, p := range Parameters {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// ─── Backend Entity Types ─────────────────────────────────────────────────────

// Station is a fixed monitoring location. The client never mutates a
// Station; the full list is replaced on every successful fetch.
type Station struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName returns the station name, falling back to its identifier.
func (s Station) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.StationID
}

// Locality returns "city country" with empty parts dropped.
func (s Station) Locality() string {
	return strings.TrimSpace(strings.TrimSpace(s.City) + " " + strings.TrimSpace(s.Country))
}

// HasValidPosition reports whether the coordinates are finite WGS84 degrees.
func (s Station) HasValidPosition() bool {
	if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
		return false
	}
	return s.Latitude >= -90 && s.Latitude <= 90 &&
		s.Longitude >= -180 && s.Longitude <= 180
}

// Observation is a single raw measurement. Immutable once received.
type Observation struct {
	Time      time.Time `json:"time"`
	StationID string    `json:"station_id"`
	Parameter Parameter `json:"parameter"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Quality   string    `json:"quality,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// HourlyPoint is the mean of all observations for one station+parameter
// within a one-hour bucket. AvgValue is NaN when the backend sent null.
// The remaining fields are optional and zero when absent.
type HourlyPoint struct {
	Time      time.Time `json:"time"`
	AvgValue  float64   `json:"avg_value"`
	StationID string    `json:"station_id,omitempty"`
	Parameter Parameter `json:"parameter,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	MinValue  *float64  `json:"min_value,omitempty"`
	MaxValue  *float64  `json:"max_value,omitempty"`
	N         *int      `json:"n,omitempty"`
}

// IsMissing returns true if the averaged value is NaN.
func (p HourlyPoint) IsMissing() bool {
	return math.IsNaN(p.AvgValue)
}

// MarshalJSON writes a missing average as null; encoding/json rejects NaN.
func (p HourlyPoint) MarshalJSON() ([]byte, error) {
	type plain HourlyPoint
	return json.Marshal(struct {
		plain
		AvgValue *float64 `json:"avg_value"`
	}{plain: plain(p), AvgValue: finite(p.AvgValue)})
}

// MarshalJSON writes a missing value as null.
func (o Observation) MarshalJSON() ([]byte, error) {
	type plain Observation
	return json.Marshal(struct {
		plain
		Value *float64 `json:"value"`
	}{plain: plain(o), Value: finite(o.Value)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// StatsSummary holds the backend's aggregate counters.
type StatsSummary struct {
	StationCount   int `json:"station_count"`
	Observation24h int `json:"observation_24h"`
}

// ─── Client-Owned State ───────────────────────────────────────────────────────

// DefaultStationID is the demo station selected when nothing else is set.
const DefaultStationID = "DEMO_1"

// Selection holds the user-adjustable coordinates of the time-series query.
type Selection struct {
	StationID string    `json:"station_id"`
	Parameter Parameter `json:"parameter"`
}

// DefaultSelection returns the selection shown on first mount.
func DefaultSelection() Selection {
	return Selection{StationID: DefaultStationID, Parameter: PM25}
}

// String formats the selection as station/parameter.
func (s Selection) String() string {
	return s.StationID + "/" + string(s.Parameter)
}

// Query converts the selection into an hourly aggregate query.
func (s Selection) Query() HourlyQuery {
	return HourlyQuery{StationID: s.StationID, Parameter: s.Parameter}
}

// Preset is a saved, named Selection.
type Preset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Selection Selection `json:"selection"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// ObservationFilter narrows GET /observations. Every field is optional;
// zero values are omitted from the request.
type ObservationFilter struct {
	StationID string    `json:"station_id" validate:"omitempty,max=128"`
	Parameter Parameter `json:"parameter" validate:"omitempty,oneof=pm25 pm10 no2 o3"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Limit     int       `json:"limit" validate:"gte=0,lte=10000"`
}

// HourlyQuery parameterises GET /analytics/hourly. Station and parameter
// are required; the time bounds are optional.
type HourlyQuery struct {
	StationID string    `json:"station_id" validate:"required,max=128"`
	Parameter Parameter `json:"parameter" validate:"required,oneof=pm25 pm10 no2 o3"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// HourlySeries bundles an hourly series with the selection it answers.
type HourlySeries struct {
	Selection Selection     `json:"selection"`
	Points    []HourlyPoint `json:"points"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindStations     = "stations"
	KindObservations = "observations"
	KindHourly       = "hourly"
	KindSummary      = "summary"
	KindView         = "view"
	KindPresets      = "presets"
)
