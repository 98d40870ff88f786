// Package transform implements stateless operators over hourly series. Each
// operator takes a slice of HourlyPoints in time order and returns a new
// slice; no side effects, no I/O. Missing buckets (NaN) are skipped in
// aggregation and propagate otherwise.
package transform

import (
	"fmt"
	"math"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
)

// ─── Fill Gaps ────────────────────────────────────────────────────────────────

// FillGaps inserts a missing bucket for every absent hour between the first
// and last point, so that gaps in reporting show as gaps rather than as a
// straight line. Points must be sorted by time and aligned to the hour.
func FillGaps(pts []model.HourlyPoint) []model.HourlyPoint {
	if len(pts) < 2 {
		return append([]model.HourlyPoint(nil), pts...)
	}
	out := make([]model.HourlyPoint, 0, len(pts))
	for i, p := range pts {
		if i > 0 {
			for t := pts[i-1].Time.Add(time.Hour); t.Before(p.Time); t = t.Add(time.Hour) {
				out = append(out, model.HourlyPoint{
					Time:      t,
					AvgValue:  math.NaN(),
					StationID: p.StationID,
					Parameter: p.Parameter,
					Unit:      p.Unit,
				})
			}
		}
		out = append(out, p)
	}
	return out
}

// ─── Difference ───────────────────────────────────────────────────────────────

// Diff computes hour-over-hour change: v[t]-v[t-1]. The first point is
// dropped.
func Diff(pts []model.HourlyPoint) ([]model.HourlyPoint, error) {
	if len(pts) < 2 {
		return nil, fmt.Errorf("diff: need at least 2 points, got %d", len(pts))
	}
	out := make([]model.HourlyPoint, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		val := math.NaN()
		if !pts[i].IsMissing() && !pts[i-1].IsMissing() {
			val = pts[i].AvgValue - pts[i-1].AvgValue
		}
		out = append(out, derived(pts[i], val))
	}
	return out, nil
}

// ─── Resample ─────────────────────────────────────────────────────────────────

// ResampleMethod is the aggregation method for resampling.
type ResampleMethod string

const (
	ResampleMean ResampleMethod = "mean"
	ResampleMax  ResampleMethod = "max"
	ResampleMin  ResampleMethod = "min"
	ResampleLast ResampleMethod = "last"
)

// Resample aggregates hourly points into buckets of width period, aligned to
// UTC midnight for whole days. N on each output point is the number of
// non-missing hours that went into it.
func Resample(pts []model.HourlyPoint, period time.Duration, method ResampleMethod) ([]model.HourlyPoint, error) {
	if period < time.Hour {
		return nil, fmt.Errorf("resample: period must be at least 1h, got %s", period)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("resample: empty input")
	}
	switch method {
	case ResampleMean, ResampleMax, ResampleMin, ResampleLast:
	default:
		return nil, fmt.Errorf("resample: unknown method %q (use mean, max, min, last)", method)
	}

	var (
		out    []model.HourlyPoint
		bucket time.Time
		vals   []float64
		proto  model.HourlyPoint
	)
	flush := func() {
		val := math.NaN()
		if len(vals) > 0 {
			switch method {
			case ResampleMean:
				val = mean(vals)
			case ResampleMax:
				_, val = minmax(vals)
			case ResampleMin:
				val, _ = minmax(vals)
			case ResampleLast:
				val = vals[len(vals)-1]
			}
		}
		n := len(vals)
		p := derived(proto, val)
		p.Time = bucket
		p.N = &n
		out = append(out, p)
	}

	for i, p := range pts {
		b := p.Time.UTC().Truncate(period)
		if i == 0 || !b.Equal(bucket) {
			if i > 0 {
				flush()
			}
			bucket, vals, proto = b, nil, p
		}
		if !p.IsMissing() {
			vals = append(vals, p.AvgValue)
		}
	}
	flush()
	return out, nil
}

// ─── Filter ───────────────────────────────────────────────────────────────────

// FilterOptions describes a time/value filter predicate.
type FilterOptions struct {
	After       time.Time // keep points with time > After (zero = no lower bound)
	Before      time.Time // keep points with time < Before (zero = no upper bound)
	MinValue    float64   // keep points with value >= MinValue (NaN = no lower bound)
	MaxValue    float64   // keep points with value <= MaxValue (NaN = no upper bound)
	DropMissing bool
}

// NoBounds returns FilterOptions that keep everything.
func NoBounds() FilterOptions {
	return FilterOptions{MinValue: math.NaN(), MaxValue: math.NaN()}
}

// Filter returns the points matching every criterion in opts.
func Filter(pts []model.HourlyPoint, opts FilterOptions) []model.HourlyPoint {
	out := make([]model.HourlyPoint, 0, len(pts))
	for _, p := range pts {
		if !opts.After.IsZero() && !p.Time.After(opts.After) {
			continue
		}
		if !opts.Before.IsZero() && !p.Time.Before(opts.Before) {
			continue
		}
		if p.IsMissing() {
			if opts.DropMissing {
				continue
			}
		} else {
			if !math.IsNaN(opts.MinValue) && p.AvgValue < opts.MinValue {
				continue
			}
			if !math.IsNaN(opts.MaxValue) && p.AvgValue > opts.MaxValue {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// ─── Rolling Window ───────────────────────────────────────────────────────────

// RollStat selects the statistic for rolling window computation.
type RollStat string

const (
	RollMean RollStat = "mean"
	RollMax  RollStat = "max"
	RollMin  RollStat = "min"
)

// Roll computes a trailing statistic over the window (t-window, t] for every
// point. The window is measured in time, not in rows, so hours the backend
// never reported shrink the window instead of stretching it. If fewer than
// minPeriods non-missing values fall in a window the output is missing.
func Roll(pts []model.HourlyPoint, window time.Duration, minPeriods int, stat RollStat) ([]model.HourlyPoint, error) {
	if window < time.Hour {
		return nil, fmt.Errorf("roll: window must be at least 1h, got %s", window)
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	if hours := int(window / time.Hour); minPeriods > hours {
		return nil, fmt.Errorf("roll: min-periods (%d) cannot exceed the %d hours in the window", minPeriods, hours)
	}
	switch stat {
	case RollMean, RollMax, RollMin:
	default:
		return nil, fmt.Errorf("roll: unknown stat %q (use mean, max, min)", stat)
	}

	out := make([]model.HourlyPoint, len(pts))
	start := 0
	for i, p := range pts {
		for start < i && !pts[start].Time.After(p.Time.Add(-window)) {
			start++
		}
		var vals []float64
		for _, w := range pts[start : i+1] {
			if !w.IsMissing() {
				vals = append(vals, w.AvgValue)
			}
		}
		val := math.NaN()
		if len(vals) >= minPeriods {
			switch stat {
			case RollMean:
				val = mean(vals)
			case RollMax:
				_, val = minmax(vals)
			case RollMin:
				val, _ = minmax(vals)
			}
		}
		out[i] = derived(p, val)
	}
	return out, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// derived copies the identifying fields of p with a new average. Per-bucket
// extremes and counts no longer describe the value and are dropped.
func derived(p model.HourlyPoint, val float64) model.HourlyPoint {
	return model.HourlyPoint{
		Time:      p.Time,
		AvgValue:  val,
		StationID: p.StationID,
		Parameter: p.Parameter,
		Unit:      p.Unit,
	}
}

func mean(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func minmax(vals []float64) (float64, float64) {
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
