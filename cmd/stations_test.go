package cmd

import (
	"testing"

	"github.com/derickschaefer/emdash/internal/model"
)

func TestFilterStations(t *testing.T) {
	stations := []model.Station{
		{StationID: "RDU_7", Name: "Raleigh Downtown", City: "Raleigh", Country: "US"},
		{StationID: "BER_1", Name: "Mitte", City: "Berlin", Country: "DE"},
		{StationID: "CLT_2", Name: "Uptown", City: "Charlotte", Country: "US"},
	}

	ids := func(ss []model.Station) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.StationID
		}
		return out
	}

	cases := []struct {
		match, country string
		want           []string
	}{
		{"", "", []string{"RDU_7", "BER_1", "CLT_2"}},
		{"raleigh", "", []string{"RDU_7"}},
		{"rdu", "", []string{"RDU_7"}},
		{"town", "", []string{"RDU_7", "CLT_2"}},
		{"", "us", []string{"RDU_7", "CLT_2"}},
		{"berlin", "US", []string{}},
	}
	for _, tc := range cases {
		got := ids(filterStations(stations, tc.match, tc.country))
		if len(got) != len(tc.want) {
			t.Errorf("match=%q country=%q: got %v, want %v", tc.match, tc.country, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("match=%q country=%q: got %v, want %v", tc.match, tc.country, got, tc.want)
				break
			}
		}
	}
}
