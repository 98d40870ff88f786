// Package dashboard holds the client-side orchestration layer: single-slot
// stores for the backend's read endpoints, the selection-keyed time-series
// state machine, derived stat-card metrics, and the composer that threads
// them into a renderable View.
//
// Transition table for Store (stations, summary):
//
//	empty  --Load ok-->   loaded(v)
//	empty  --Load err-->  empty          (logged)
//	loaded --Load ok-->   loaded(v')     (full replacement)
//	loaded --Load err-->  loaded(v)      (logged, never rolled back)
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/derickschaefer/emdash/internal/model"
)

// Status is the load state of a single-slot store.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoaded
)

func (s Status) String() string {
	if s == StatusLoaded {
		return "loaded"
	}
	return "empty"
}

// Snapshot is a point-in-time copy of a store's slot. Value is the zero
// value unless Status is StatusLoaded. Slices inside Value are shared and
// must be treated as read-only.
type Snapshot[T any] struct {
	Status   Status    `json:"status"`
	Value    T         `json:"value"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// Loaded reports whether the snapshot carries a value.
func (s Snapshot[T]) Loaded() bool {
	return s.Status == StatusLoaded
}

// Store is a single-slot cache over one read operation.
type Store[T any] struct {
	name   string
	fetch  func(context.Context) (T, error)
	logger *slog.Logger

	mu        sync.Mutex
	slot      Snapshot[T]
	issued    uint64 // sequence of the most recently started Load
	committed uint64 // sequence of the Load that produced slot

	notifier
}

// StationStore caches the station list behind map markers.
type StationStore = Store[[]model.Station]

// SummaryStore caches the backend's aggregate counters.
type SummaryStore = Store[model.StatsSummary]

// NewStationStore builds an empty store over client.FetchStations.
func NewStationStore(client DataClient, logger *slog.Logger) *StationStore {
	return newStore("stations", client.FetchStations, logger)
}

// NewSummaryStore builds an empty store over client.FetchSummary.
func NewSummaryStore(client DataClient, logger *slog.Logger) *SummaryStore {
	return newStore("summary", client.FetchSummary, logger)
}

func newStore[T any](name string, fetch func(context.Context) (T, error), logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store[T]{name: name, fetch: fetch, logger: logger}
}

// Load issues exactly one fetch. On success the slot is replaced wholesale;
// on failure the previous slot is kept and the error is logged. The error is
// returned for callers that want it, but the store never needs it handled.
//
// Overlapping Loads resolve to the most recently started one: a response
// that completes after a newer Load has committed is discarded.
func (s *Store[T]) Load(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	v, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("fetch failed", "op", s.name, "err", err)
		return err
	}

	s.mu.Lock()
	if seq < s.committed {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded response", "op", s.name, "seq", seq)
		return nil
	}
	s.committed = seq
	s.slot = Snapshot[T]{Status: StatusLoaded, Value: v, LoadedAt: time.Now().UTC()}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Snapshot returns the current slot.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// ─── Change notification ──────────────────────────────────────────────────────

// notifier fans a state change out to registered listeners. Listeners run
// synchronously on the goroutine that made the change, outside any store
// lock, so they may read snapshots freely.
type notifier struct {
	mu        sync.Mutex
	listeners []func()
}

// OnChange registers fn to run after every state transition.
func (n *notifier) OnChange(fn func()) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), len(n.listeners))
	copy(fns, n.listeners)
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
