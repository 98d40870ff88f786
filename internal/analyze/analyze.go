// Package analyze computes descriptive statistics and trends over hourly
// aggregate series. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
)

// Stat is a statistic that may be undefined. Undefined values are NaN in
// memory and null in JSON.
type Stat float64

// Undefined is the NaN Stat.
var Undefined = Stat(math.NaN())

// Valid reports whether the statistic is defined.
func (s Stat) Valid() bool { return !math.IsNaN(float64(s)) }

// MarshalJSON writes an undefined statistic as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Valid() || math.IsInf(float64(s), 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'g', -1, 64), nil
}

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary describes one hourly series. Null buckets are counted in Missing
// and excluded from every numeric field.
type Summary struct {
	Selection  model.Selection `json:"selection"`
	Unit       string          `json:"unit,omitempty"`
	Count      int             `json:"count"`
	Missing    int             `json:"missing"`
	MissingPct Stat            `json:"missing_pct"`
	Samples    int             `json:"samples"` // sum of per-bucket n, when reported
	Mean       Stat            `json:"mean"`
	Std        Stat            `json:"std"`
	Min        Stat            `json:"min"`
	Median     Stat            `json:"median"`
	P95        Stat            `json:"p95"`
	Max        Stat            `json:"max"`
	First      Stat            `json:"first"`
	Last       Stat            `json:"last"`
	PeakAt     time.Time       `json:"peak_at,omitzero"`
	Start      time.Time       `json:"start,omitzero"`
	End        time.Time       `json:"end,omitzero"`
}

// Summarize computes a Summary over pts in received order.
func Summarize(sel model.Selection, pts []model.HourlyPoint) Summary {
	s := Summary{
		Selection: sel, Count: len(pts),
		MissingPct: Undefined, Mean: Undefined, Std: Undefined, Min: Undefined,
		Median: Undefined, P95: Undefined, Max: Undefined, First: Undefined, Last: Undefined,
	}
	if len(pts) == 0 {
		return s
	}
	s.Start = pts[0].Time
	s.End = pts[len(pts)-1].Time

	var vals []float64
	peak := math.Inf(-1)
	for _, p := range pts {
		if s.Unit == "" {
			s.Unit = p.Unit
		}
		if p.N != nil {
			s.Samples += *p.N
		}
		if p.IsMissing() {
			s.Missing++
			continue
		}
		vals = append(vals, p.AvgValue)
		if !s.First.Valid() {
			s.First = Stat(p.AvgValue)
		}
		s.Last = Stat(p.AvgValue)
		if p.AvgValue > peak {
			peak = p.AvgValue
			s.PeakAt = p.Time
		}
	}
	s.MissingPct = Stat(float64(s.Missing) / float64(s.Count) * 100)
	if len(vals) == 0 {
		return s
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mean := sum(vals) / float64(len(vals))

	s.Mean = Stat(mean)
	s.Std = Stat(stddev(vals, mean))
	s.Min = Stat(sorted[0])
	s.Max = Stat(sorted[len(sorted)-1])
	s.Median = Stat(percentile(sorted, 50))
	s.P95 = Stat(percentile(sorted, 95))
	return s
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// ParseTrendMethod accepts "linear" or "theil-sen".
func ParseTrendMethod(s string) (TrendMethod, error) {
	switch TrendMethod(s) {
	case TrendLinear, TrendTheilSen:
		return TrendMethod(s), nil
	case "":
		return TrendLinear, nil
	}
	return "", fmt.Errorf("unknown trend method %q (linear, theil-sen)", s)
}

// TrendResult is a straight-line fit of value against hours elapsed.
type TrendResult struct {
	Selection   model.Selection `json:"selection"`
	Method      TrendMethod     `json:"method"`
	SlopePerHr  float64         `json:"slope_per_hour"`
	SlopePerDay float64         `json:"slope_per_day"`
	Intercept   float64         `json:"intercept"`
	R2          float64         `json:"r2"`
	Direction   string          `json:"direction"` // up, down, flat
}

// flatPerDay is the daily change below which a trend is reported as flat.
const flatPerDay = 0.01

// Trend fits pts with x = hours since the first non-null bucket.
func Trend(sel model.Selection, pts []model.HourlyPoint, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Selection: sel, Method: method}

	var xy []point
	var t0 time.Time
	for _, p := range pts {
		if p.IsMissing() {
			continue
		}
		if len(xy) == 0 {
			t0 = p.Time
		}
		xy = append(xy, point{p.Time.Sub(t0).Hours(), p.AvgValue})
	}
	if len(xy) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 non-null buckets, got %d", len(xy))
	}

	switch method {
	case TrendTheilSen:
		tr.SlopePerHr = theilSenSlope(xy)
		xMean, yMean := means(xy)
		tr.Intercept = yMean - tr.SlopePerHr*xMean
	default:
		tr.Method = TrendLinear
		tr.SlopePerHr, tr.Intercept = olsRegress(xy)
	}
	tr.R2 = r2(xy, tr.SlopePerHr, tr.Intercept)
	tr.SlopePerDay = tr.SlopePerHr * 24

	switch {
	case tr.SlopePerDay > flatPerDay:
		tr.Direction = "up"
	case tr.SlopePerDay < -flatPerDay:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

type point struct{ x, y float64 }

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddev(vals []float64, mean float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

// percentile interpolates linearly between closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

func means(pts []point) (x, y float64) {
	for _, p := range pts {
		x += p.x
		y += p.y
	}
	n := float64(len(pts))
	return x / n, y / n
}

func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var sx, sy, sxy, sxx float64
	for _, p := range pts {
		sx += p.x
		sy += p.y
		sxy += p.x * p.y
		sxx += p.x * p.x
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / denom
	return slope, (sy - slope*sx) / n
}

func theilSenSlope(pts []point) float64 {
	var slopes []float64
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if dx := pts[j].x - pts[i].x; dx != 0 {
				slopes = append(slopes, (pts[j].y-pts[i].y)/dx)
			}
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

func r2(pts []point, slope, intercept float64) float64 {
	_, yMean := means(pts)
	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
