package dashboard_test

import (
	"context"
	"sync"
	"testing"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// recorder captures the DataSelection of every state the store notifies.
type recorder struct {
	mu     sync.Mutex
	states []dashboard.SeriesState
}

func (r *recorder) watch(s *dashboard.TimeSeriesStore) {
	s.OnChange(func() {
		st := s.State()
		r.mu.Lock()
		r.states = append(r.states, st)
		r.mu.Unlock()
	})
}

func (r *recorder) all() []dashboard.SeriesState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dashboard.SeriesState, len(r.states))
	copy(out, r.states)
	return out
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for pos := 0; pos <= len(p); pos++ {
			q := make([]int, 0, n)
			q = append(q, p[:pos]...)
			q = append(q, n-1)
			q = append(q, p[pos:]...)
			out = append(out, q)
		}
	}
	return out
}

// ─── Transitions ──────────────────────────────────────────────────────────────

func TestSelectMovesToLoadingImmediately(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)

	if got := s.State().Status; got != dashboard.SeriesIdle {
		t.Fatalf("new store: expected idle, got %s", got)
	}

	s.Select(context.Background(), model.DefaultSelection())
	st := s.State()
	if st.Status != dashboard.SeriesLoading {
		t.Fatalf("after Select: expected loading, got %s", st.Status)
	}
	if len(st.Data) != 0 {
		t.Errorf("first load must render an empty chart, got %d points", len(st.Data))
	}

	p := f.next(t)
	if p.query.StationID != "DEMO_1" || p.query.Parameter != model.PM25 {
		t.Errorf("unexpected query: %+v", p.query)
	}
	p.resolve(series(12.3))
	s.Wait()

	st = s.State()
	if st.Status != dashboard.SeriesReady {
		t.Fatalf("expected ready, got %s", st.Status)
	}
	if len(st.Data) != 1 || st.Data[0].AvgValue != 12.3 {
		t.Errorf("unexpected data: %+v", st.Data)
	}
}

func TestFailureKeepsLastRenderedData(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	ctx := context.Background()

	s.Select(ctx, model.Selection{StationID: "DEMO_1", Parameter: model.PM25})
	f.next(t).resolve(series(1))
	s.Wait()

	s.SetParameter(ctx, model.NO2)
	if st := s.State(); st.Status != dashboard.SeriesLoading || len(st.Data) != 1 {
		t.Fatalf("loading should keep previous data visible, got %s with %d points", st.Status, len(st.Data))
	}
	f.next(t).fail(errBackend)
	s.Wait()

	st := s.State()
	if st.Status != dashboard.SeriesError {
		t.Fatalf("expected error, got %s", st.Status)
	}
	if st.Err == nil {
		t.Error("error state should carry the failure")
	}
	if len(st.Data) != 1 || st.Data[0].AvgValue != 1 {
		t.Errorf("error must retain last good data, got %+v", st.Data)
	}
	if st.Selection.Parameter != model.NO2 {
		t.Errorf("selection should still be no2, got %s", st.Selection)
	}
}

func TestFailureOnFirstLoadIsEmpty(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	s.Select(context.Background(), model.DefaultSelection())
	f.next(t).fail(errBackend)
	s.Wait()

	st := s.State()
	if st.Status != dashboard.SeriesError {
		t.Fatalf("expected error, got %s", st.Status)
	}
	if st.Data == nil || len(st.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %#v", st.Data)
	}
}

func TestUnchangedSelectionDoesNotRefetch(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	ctx := context.Background()

	first := s.Select(ctx, model.DefaultSelection())
	f.next(t).resolve(series(1))
	s.Wait()

	again := s.Select(ctx, model.DefaultSelection())
	if again != first {
		t.Errorf("same selection should keep token %d, got %d", first, again)
	}
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected refetch for %+v", p.query)
	default:
	}

	// Reload forces a fetch for the same selection.
	s.Reload(ctx)
	f.next(t).resolve(series(2))
	s.Wait()
	if got := s.State().Data[0].AvgValue; got != 2 {
		t.Errorf("reload: expected 2, got %v", got)
	}
}

func TestReloadWhileIdleIsNoop(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	s.Reload(context.Background())
	if st := s.State(); st.Status != dashboard.SeriesIdle {
		t.Fatalf("expected idle, got %s", st.Status)
	}
}

func TestUnchangedSelectionInErrorDoesNotRefetch(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	ctx := context.Background()

	first := s.Select(ctx, model.DefaultSelection())
	f.next(t).fail(errBackend)
	s.Wait()
	if st := s.State(); st.Status != dashboard.SeriesError {
		t.Fatalf("expected error, got %s", st.Status)
	}

	if again := s.Select(ctx, model.DefaultSelection()); again != first {
		t.Errorf("same selection should keep token %d, got %d", first, again)
	}
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected refetch for %+v", p.query)
	default:
	}

	s.Reload(ctx)
	f.next(t).resolve(series(3))
	s.Wait()
	if st := s.State(); st.Status != dashboard.SeriesReady {
		t.Errorf("reload should recover, got %s", st.Status)
	}
}

// hourlyFunc answers FetchHourly without blocking.
type hourlyFunc func(model.HourlyQuery) ([]model.HourlyPoint, error)

func (fn hourlyFunc) FetchHourly(_ context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error) {
	return fn(q)
}

func TestConcurrentCoordinateChangesKeepBoth(t *testing.T) {
	instant := hourlyFunc(func(model.HourlyQuery) ([]model.HourlyPoint, error) { return series(1), nil })
	ctx := context.Background()

	for i := range 200 {
		s := dashboard.NewTimeSeriesStore(instant, nil)
		s.Select(ctx, model.Selection{StationID: "DEMO_1", Parameter: model.PM25})

		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(2)
		go func() {
			defer done.Done()
			start.Wait()
			s.SetStation(ctx, "DEMO_2")
		}()
		go func() {
			defer done.Done()
			start.Wait()
			s.SetParameter(ctx, model.O3)
		}()
		start.Done()
		done.Wait()
		s.Wait()

		want := model.Selection{StationID: "DEMO_2", Parameter: model.O3}
		if st := s.State(); st.Selection != want || st.DataSelection != want {
			t.Fatalf("round %d: selection %s data %s, want %s", i, st.Selection, st.DataSelection, want)
		}
	}
}

func TestUpdateReturnsDerivedSelection(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	ctx := context.Background()

	s.Select(ctx, model.Selection{StationID: "DEMO_1", Parameter: model.PM25})
	f.next(t).resolve(series(1))
	s.Wait()

	sel, tok := s.Update(ctx, func(cur model.Selection) model.Selection {
		cur.Parameter = model.NO2
		return cur
	})
	want := model.Selection{StationID: "DEMO_1", Parameter: model.NO2}
	if sel != want {
		t.Errorf("Update returned %s, want %s", sel, want)
	}
	p := f.next(t)
	if p.query.StationID != "DEMO_1" || p.query.Parameter != model.NO2 {
		t.Errorf("fetched %+v", p.query)
	}
	p.resolve(series(2))
	s.Wait()
	if st := s.State(); st.Token != tok || st.Selection != want {
		t.Errorf("state %+v, want token %d", st, tok)
	}
}

// ─── Stale-response suppression ───────────────────────────────────────────────

// Selection starts at DEMO_1/pm25; the parameter changes to o3 before the
// pm25 response arrives. Only o3 data may ever be shown.
func TestParameterChangeBeforeResponse(t *testing.T) {
	for _, pm25First := range []bool{true, false} {
		f := newFakeClient()
		s := dashboard.NewTimeSeriesStore(f, nil)
		var rec recorder
		rec.watch(s)
		ctx := context.Background()

		s.Select(ctx, model.Selection{StationID: "DEMO_1", Parameter: model.PM25})
		pm25 := f.next(t)
		s.SetParameter(ctx, model.O3)
		o3 := f.next(t)
		if o3.query.Parameter != model.O3 {
			t.Fatalf("expected o3 query, got %+v", o3.query)
		}

		pm25Data := []model.HourlyPoint{{AvgValue: 12.3}}
		o3Data := []model.HourlyPoint{{AvgValue: 40.1}}
		if pm25First {
			pm25.resolve(pm25Data)
			o3.resolve(o3Data)
		} else {
			o3.resolve(o3Data)
			pm25.resolve(pm25Data)
		}
		s.Wait()

		st := s.State()
		if st.Status != dashboard.SeriesReady || st.DataSelection.Parameter != model.O3 {
			t.Fatalf("pm25First=%v: expected ready o3, got %s %s", pm25First, st.Status, st.DataSelection)
		}
		if len(st.Data) != 1 || st.Data[0].AvgValue != 40.1 {
			t.Fatalf("pm25First=%v: expected o3 data, got %+v", pm25First, st.Data)
		}
		for _, seen := range rec.all() {
			for _, p := range seen.Data {
				if p.AvgValue == 12.3 {
					t.Fatalf("pm25First=%v: pm25 data was rendered", pm25First)
				}
			}
		}
	}
}

// For every completion order of three overlapping fetches, the final data
// belongs to the last selection and no superseded data is ever committed.
func TestLastSelectionWinsForAllCompletionOrders(t *testing.T) {
	sels := []model.Selection{
		{StationID: "A", Parameter: model.PM25},
		{StationID: "A", Parameter: model.PM10},
		{StationID: "B", Parameter: model.PM10},
	}
	for _, order := range permutations(len(sels)) {
		f := newFakeClient()
		s := dashboard.NewTimeSeriesStore(f, nil)
		var rec recorder
		rec.watch(s)
		ctx := context.Background()

		pending := make([]pendingHourly, len(sels))
		for i, sel := range sels {
			s.Select(ctx, sel)
			pending[i] = f.next(t)
		}
		for _, i := range order {
			pending[i].resolve(series(float64(i)))
		}
		s.Wait()

		last := len(sels) - 1
		st := s.State()
		if st.Selection != sels[last] || st.DataSelection != sels[last] {
			t.Fatalf("order %v: expected %s, got selection %s data %s", order, sels[last], st.Selection, st.DataSelection)
		}
		if st.Data[0].AvgValue != float64(last) {
			t.Fatalf("order %v: expected data %d, got %v", order, last, st.Data[0].AvgValue)
		}
		for _, seen := range rec.all() {
			if len(seen.Data) > 0 && seen.DataSelection != sels[last] {
				t.Fatalf("order %v: superseded data for %s was committed", order, seen.DataSelection)
			}
		}
	}
}

// A stale failure must not move the current selection into the error state.
func TestStaleFailureIsDiscarded(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	ctx := context.Background()

	s.Select(ctx, model.Selection{StationID: "DEMO_1", Parameter: model.PM25})
	old := f.next(t)
	s.SetStation(ctx, "DEMO_2")
	cur := f.next(t)

	cur.resolve(series(5))
	old.fail(errBackend)
	s.Wait()

	st := s.State()
	if st.Status != dashboard.SeriesReady {
		t.Fatalf("stale failure changed state to %s", st.Status)
	}
	if st.Selection.StationID != "DEMO_2" {
		t.Errorf("expected DEMO_2, got %s", st.Selection)
	}
}

func TestDuplicateAndOutOfOrderBucketsKeptAsReceived(t *testing.T) {
	f := newFakeClient()
	s := dashboard.NewTimeSeriesStore(f, nil)
	s.Select(context.Background(), model.DefaultSelection())

	pts := []model.HourlyPoint{{AvgValue: 3}, {AvgValue: 1}, {AvgValue: 1}, {AvgValue: 2}}
	pts[0].Time = pts[0].Time.AddDate(0, 0, 2)
	f.next(t).resolve(pts)
	s.Wait()

	got := s.State().Data
	if len(got) != 4 {
		t.Fatalf("expected 4 points, got %d", len(got))
	}
	for i := range pts {
		if got[i].AvgValue != pts[i].AvgValue {
			t.Errorf("point %d reordered: got %v want %v", i, got[i].AvgValue, pts[i].AvgValue)
		}
	}
}
