// Package pipeline reads and writes hourly series as JSONL on stdin/stdout,
// the format `emdash series --format jsonl` emits. One JSON object per line,
// one hourly bucket per object.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/util"
)

type row struct {
	Time      string   `json:"time"`
	AvgValue  *float64 `json:"avg_value"`
	StationID string   `json:"station_id,omitempty"`
	Parameter string   `json:"parameter,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty"`
	N         *int     `json:"n,omitempty"`
}

// ReadHourly reads JSONL hourly rows from r. The returned selection is taken
// from the first row that names a station and parameter; a stream mixing
// several selections is rejected, since every downstream operator treats
// its input as one series.
func ReadHourly(r io.Reader) (model.Selection, []model.HourlyPoint, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var (
		sel    model.Selection
		points []model.HourlyPoint
	)
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return sel, nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if rec.Time == "" {
			return sel, nil, fmt.Errorf("line %d: missing time", lineNum)
		}
		ts, err := util.ParseTimestamp(rec.Time)
		if err != nil {
			return sel, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rowSel := model.Selection{StationID: rec.StationID, Parameter: model.Parameter(rec.Parameter)}
		switch {
		case rowSel.StationID == "" && rowSel.Parameter == "":
		case sel == (model.Selection{}):
			sel = rowSel
		case rowSel != sel:
			return sel, nil, fmt.Errorf("line %d: series %s follows %s; pipe one series at a time", lineNum, rowSel, sel)
		}

		avg := math.NaN()
		if rec.AvgValue != nil {
			avg = *rec.AvgValue
		}
		points = append(points, model.HourlyPoint{
			Time:      ts,
			AvgValue:  avg,
			StationID: rec.StationID,
			Parameter: model.Parameter(rec.Parameter),
			Unit:      rec.Unit,
			MinValue:  rec.MinValue,
			MaxValue:  rec.MaxValue,
			N:         rec.N,
		})
	}
	if err := scanner.Err(); err != nil {
		return sel, nil, fmt.Errorf("reading input: %w", err)
	}
	if len(points) == 0 {
		return sel, nil, fmt.Errorf("no hourly rows read from input (is stdin empty?)")
	}
	return sel, points, nil
}

// WriteHourly writes points as JSONL, stamping each row with sel where the
// row does not carry its own station or parameter.
func WriteHourly(w io.Writer, sel model.Selection, points []model.HourlyPoint) error {
	enc := json.NewEncoder(w)
	for _, p := range points {
		if p.StationID == "" {
			p.StationID = sel.StationID
		}
		if p.Parameter == "" {
			p.Parameter = sel.Parameter
		}
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}
