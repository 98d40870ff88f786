package dashboard

import (
	"encoding/json"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/derickschaefer/emdash/internal/model"
)

// Placeholder is shown for a count that has never been loaded. Zero is a
// legitimate count and is never used for "unknown".
const Placeholder = "—"

// Count is a possibly-unknown non-negative integer.
type Count struct {
	Value int
	Known bool
}

// Known returns a known count.
func Known(v int) Count { return Count{Value: v, Known: true} }

// Unknown is the count of something never loaded.
var Unknown = Count{}

// Format renders the count with locale digit grouping, or Placeholder.
func (c Count) Format(tag language.Tag) string {
	if !c.Known {
		return Placeholder
	}
	return message.NewPrinter(tag).Sprintf("%d", c.Value)
}

// String renders the count for English locales.
func (c Count) String() string {
	return c.Format(language.English)
}

// MarshalJSON encodes an unknown count as null.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// Metrics are the values shown on the stat cards.
type Metrics struct {
	Stations        Count `json:"stations"`
	Observations24h Count `json:"observations_24h"`
}

// DeriveMetrics reconciles the two stores into display counts. The summary
// is authoritative for the station count; the station list is the fallback,
// and a loaded empty list counts as zero. The observation count has no
// fallback source.
func DeriveMetrics(summary Snapshot[model.StatsSummary], stations Snapshot[[]model.Station]) Metrics {
	var m Metrics
	switch {
	case summary.Loaded():
		m.Stations = Known(summary.Value.StationCount)
	case stations.Loaded():
		m.Stations = Known(len(stations.Value))
	default:
		m.Stations = Unknown
	}
	if summary.Loaded() {
		m.Observations24h = Known(summary.Value.Observation24h)
	}
	return m
}
