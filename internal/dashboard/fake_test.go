package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
)

var errBackend = errors.New("backend unreachable")

// pendingHourly is one FetchHourly call parked until the test answers it.
type pendingHourly struct {
	query model.HourlyQuery
	reply chan hourlyReply
}

type hourlyReply struct {
	points []model.HourlyPoint
	err    error
}

func (p pendingHourly) resolve(points []model.HourlyPoint) {
	p.reply <- hourlyReply{points: points}
}

func (p pendingHourly) fail(err error) {
	p.reply <- hourlyReply{err: err}
}

// fakeClient implements dashboard.DataClient. Stations and summary answer
// from swappable functions; hourly calls are handed to the test through
// calls so it controls completion order.
type fakeClient struct {
	mu       sync.Mutex
	stations func() ([]model.Station, error)
	summary  func() (model.StatsSummary, error)

	calls chan pendingHourly
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		stations: func() ([]model.Station, error) { return nil, errBackend },
		summary:  func() (model.StatsSummary, error) { return model.StatsSummary{}, errBackend },
		calls:    make(chan pendingHourly),
	}
}

func (f *fakeClient) setStations(fn func() ([]model.Station, error)) {
	f.mu.Lock()
	f.stations = fn
	f.mu.Unlock()
}

func (f *fakeClient) setSummary(fn func() (model.StatsSummary, error)) {
	f.mu.Lock()
	f.summary = fn
	f.mu.Unlock()
}

func (f *fakeClient) FetchStations(ctx context.Context) ([]model.Station, error) {
	f.mu.Lock()
	fn := f.stations
	f.mu.Unlock()
	return fn()
}

func (f *fakeClient) FetchSummary(ctx context.Context) (model.StatsSummary, error) {
	f.mu.Lock()
	fn := f.summary
	f.mu.Unlock()
	return fn()
}

func (f *fakeClient) FetchObservations(ctx context.Context, filter model.ObservationFilter) ([]model.Observation, error) {
	return nil, nil
}

func (f *fakeClient) FetchHourly(ctx context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error) {
	p := pendingHourly{query: q, reply: make(chan hourlyReply, 1)}
	f.calls <- p
	r := <-p.reply
	return r.points, r.err
}

// next waits for the next parked hourly call.
func (f *fakeClient) next(t testing.TB) pendingHourly {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for FetchHourly call")
		return pendingHourly{}
	}
}

// series builds a one-point series tagged with value v.
func series(v float64) []model.HourlyPoint {
	return []model.HourlyPoint{{
		Time:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AvgValue: v,
	}}
}

func stationList(n int) []model.Station {
	out := make([]model.Station, n)
	for i := range out {
		out[i] = model.Station{
			StationID: "S" + string(rune('A'+i)),
			Latitude:  35 + float64(i)*0.1,
			Longitude: -78,
		}
	}
	return out
}
