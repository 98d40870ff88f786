package pipeline_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/pipeline"
)

// benchSeries builds n hours of a daily-cycle PM2.5 series with every
// tenth hour missing.
func benchSeries(n int) (model.Selection, []model.HourlyPoint) {
	sel := model.Selection{StationID: "RDU_7", Parameter: model.PM25}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]model.HourlyPoint, n)
	for i := range pts {
		v := 12 + 6*math.Sin(float64(i)*2*math.Pi/24)
		if i%10 == 9 {
			v = math.NaN()
		}
		pts[i] = model.HourlyPoint{
			Time:      start.Add(time.Duration(i) * time.Hour),
			AvgValue:  v,
			StationID: sel.StationID,
			Parameter: sel.Parameter,
			Unit:      "µg/m³",
		}
	}
	return sel, pts
}

// Run with: go test ./internal/pipeline -bench=. -benchmem
func BenchmarkWriteHourly(b *testing.B) {
	sel, pts := benchSeries(24 * 90)
	var buf bytes.Buffer
	b.ReportAllocs()
	for b.Loop() {
		buf.Reset()
		if err := pipeline.WriteHourly(&buf, sel, pts); err != nil {
			b.Fatal(err)
		}
	}
	b.SetBytes(int64(buf.Len()))
}

func BenchmarkReadHourly(b *testing.B) {
	sel, pts := benchSeries(24 * 90)
	var buf bytes.Buffer
	if err := pipeline.WriteHourly(&buf, sel, pts); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		if _, _, err := pipeline.ReadHourly(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
