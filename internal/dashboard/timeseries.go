package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
)

// SeriesStatus is the state of a TimeSeriesStore.
//
//	idle     --Select-->            loading(prev data)
//	loading  --ok, current token--> ready(data)
//	loading  --err, current token-> error(prev data)
//	any      --Select-->            loading(prev data)
//	any      --completion, stale--> unchanged (response discarded)
type SeriesStatus int

const (
	SeriesIdle SeriesStatus = iota
	SeriesLoading
	SeriesReady
	SeriesError
)

func (s SeriesStatus) String() string {
	switch s {
	case SeriesLoading:
		return "loading"
	case SeriesReady:
		return "ready"
	case SeriesError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the status by name in JSON view models.
func (s SeriesStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SeriesState is a point-in-time copy of a TimeSeriesStore.
//
// Data is what the chart renders in every state: the current selection's
// series when ready, otherwise whatever was last rendered (empty before the
// first success). DataSelection names the selection Data belongs to.
type SeriesState struct {
	Status        SeriesStatus        `json:"status"`
	Selection     model.Selection     `json:"selection"`
	Data          []model.HourlyPoint `json:"data"`
	DataSelection model.Selection     `json:"data_selection"`
	Err           error               `json:"-"`
	Token         uint64              `json:"token"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// HourlyFetcher is the single DataClient operation the store needs.
type HourlyFetcher interface {
	FetchHourly(ctx context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error)
}

// TimeSeriesStore holds the hourly series for the current Selection. Every
// selection change issues a fetch immediately; completions are committed
// only if they carry the newest token, so a superseded response can never
// overwrite state for the current selection.
type TimeSeriesStore struct {
	client HourlyFetcher
	logger *slog.Logger

	mu    sync.Mutex
	state SeriesState

	inflight sync.WaitGroup
	notifier
}

// NewTimeSeriesStore builds an idle store.
func NewTimeSeriesStore(client HourlyFetcher, logger *slog.Logger) *TimeSeriesStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TimeSeriesStore{client: client, logger: logger, state: SeriesState{Data: []model.HourlyPoint{}}}
}

// Select makes sel current. If sel differs from the current selection, or
// the store is idle, the store moves to loading and a fetch is issued. An
// unchanged selection does not refetch in any other state, error included;
// Reload retries. The returned token identifies the fetch that now owns the
// store.
func (s *TimeSeriesStore) Select(ctx context.Context, sel model.Selection) uint64 {
	_, tok := s.Update(ctx, func(model.Selection) model.Selection { return sel })
	return tok
}

// SetStation changes only the station coordinate of the selection.
func (s *TimeSeriesStore) SetStation(ctx context.Context, stationID string) uint64 {
	_, tok := s.Update(ctx, func(sel model.Selection) model.Selection {
		sel.StationID = stationID
		return sel
	})
	return tok
}

// SetParameter changes only the parameter coordinate of the selection.
func (s *TimeSeriesStore) SetParameter(ctx context.Context, p model.Parameter) uint64 {
	_, tok := s.Update(ctx, func(sel model.Selection) model.Selection {
		sel.Parameter = p
		return sel
	})
	return tok
}

// Update derives the next selection from the current one and applies it as
// Select does. fn runs under the store lock, so concurrent partial updates
// never drop a coordinate; it must not call back into the store.
func (s *TimeSeriesStore) Update(ctx context.Context, fn func(model.Selection) model.Selection) (model.Selection, uint64) {
	s.mu.Lock()
	sel := fn(s.state.Selection)
	if s.state.Status != SeriesIdle && s.state.Selection == sel {
		tok := s.state.Token
		s.mu.Unlock()
		return sel, tok
	}
	tok := s.begin(sel)
	s.mu.Unlock()

	s.fetch(ctx, tok, sel)
	return sel, tok
}

// Reload refetches the current selection even though it has not changed.
// It is a no-op while the store is idle.
func (s *TimeSeriesStore) Reload(ctx context.Context) uint64 {
	s.mu.Lock()
	if s.state.Status == SeriesIdle {
		tok := s.state.Token
		s.mu.Unlock()
		return tok
	}
	sel := s.state.Selection
	tok := s.begin(sel)
	s.mu.Unlock()

	s.fetch(ctx, tok, sel)
	return tok
}

// State returns the current state.
func (s *TimeSeriesStore) State() SeriesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until every issued fetch has completed, stale ones included.
func (s *TimeSeriesStore) Wait() {
	s.inflight.Wait()
}

// begin moves the store to loading for sel and returns the new token.
// s.mu must be held.
func (s *TimeSeriesStore) begin(sel model.Selection) uint64 {
	s.state.Token++
	s.state.Status = SeriesLoading
	s.state.Selection = sel
	s.state.Err = nil
	s.state.UpdatedAt = time.Now().UTC()
	s.inflight.Add(1)
	return s.state.Token
}

func (s *TimeSeriesStore) fetch(ctx context.Context, tok uint64, sel model.Selection) {
	s.notify()

	go func() {
		defer s.inflight.Done()
		data, err := s.client.FetchHourly(ctx, sel.Query())
		s.commit(tok, sel, data, err)
	}()
}

func (s *TimeSeriesStore) commit(tok uint64, sel model.Selection, data []model.HourlyPoint, err error) {
	s.mu.Lock()
	if tok != s.state.Token {
		current := s.state.Selection
		s.mu.Unlock()
		s.logger.Debug("discarding stale hourly response",
			"selection", sel.String(), "current", current.String(), "token", tok)
		return
	}
	if err != nil {
		// Keep the last rendered data so the chart does not flash to blank.
		s.state.Status = SeriesError
		s.state.Err = err
	} else {
		if data == nil {
			data = []model.HourlyPoint{}
		}
		s.state.Status = SeriesReady
		s.state.Data = data
		s.state.DataSelection = sel
	}
	s.state.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("fetch failed", "op", "hourly", "selection", sel.String(), "err", err)
	}
	s.notify()
}
