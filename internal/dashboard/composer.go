package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/derickschaefer/emdash/internal/model"
)

// DataClient is the typed contract for the dashboard's four read operations.
// Implementations perform one round trip per call and own no state.
type DataClient interface {
	FetchStations(ctx context.Context) ([]model.Station, error)
	FetchObservations(ctx context.Context, filter model.ObservationFilter) ([]model.Observation, error)
	FetchHourly(ctx context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error)
	FetchSummary(ctx context.Context) (model.StatsSummary, error)
}

// Options configures a Composer.
type Options struct {
	// Selection is the initial time-series selection. Zero fields fall back
	// to model.DefaultSelection.
	Selection model.Selection
	// Language controls digit grouping on the stat cards. Zero = English.
	Language language.Tag
	Logger   *slog.Logger
}

// Composer owns the store lifecycles and threads their state into a View.
// It holds no business logic beyond composition.
type Composer struct {
	stations *StationStore
	summary  *SummaryStore
	series   *TimeSeriesStore

	initial model.Selection
	lang    language.Tag
	logger  *slog.Logger
}

// NewComposer wires fresh stores over client.
func NewComposer(client DataClient, opts Options) *Composer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sel := model.DefaultSelection()
	if opts.Selection.StationID != "" {
		sel.StationID = opts.Selection.StationID
	}
	if opts.Selection.Parameter != "" {
		sel.Parameter = opts.Selection.Parameter
	}
	lang := opts.Language
	if lang == language.Und {
		lang = language.English
	}
	return &Composer{
		stations: NewStationStore(client, logger),
		summary:  NewSummaryStore(client, logger),
		series:   NewTimeSeriesStore(client, logger),
		initial:  sel,
		lang:     lang,
		logger:   logger,
	}
}

// Mount starts the initial time-series fetch, then loads stations and the
// summary concurrently and waits for both. Failures have already been
// recorded and logged by the stores when Mount returns; the first one is
// returned for information only and the View remains renderable.
func (c *Composer) Mount(ctx context.Context) error {
	c.series.Select(ctx, c.initial)
	return c.loadStores(ctx)
}

// Refresh re-runs the mount fetches and reloads the current selection. This
// is the only path on which a failed fetch is retried.
func (c *Composer) Refresh(ctx context.Context) error {
	c.series.Reload(ctx)
	return c.loadStores(ctx)
}

func (c *Composer) loadStores(ctx context.Context) error {
	start := time.Now()
	var g errgroup.Group
	g.Go(func() error { return c.stations.Load(ctx) })
	g.Go(func() error { return c.summary.Load(ctx) })
	err := g.Wait()
	c.logger.Debug("stores loaded", "elapsed", time.Since(start), "err", err)
	return err
}

// Wait blocks until in-flight time-series fetches complete.
func (c *Composer) Wait() {
	c.series.Wait()
}

// OnChange registers fn with every store.
func (c *Composer) OnChange(fn func()) {
	c.stations.OnChange(fn)
	c.summary.OnChange(fn)
	c.series.OnChange(fn)
}

// Select changes the time-series selection.
func (c *Composer) Select(ctx context.Context, sel model.Selection) {
	c.series.Select(ctx, sel)
}

// SetStation changes the selected station.
func (c *Composer) SetStation(ctx context.Context, stationID string) {
	c.series.SetStation(ctx, stationID)
}

// SetParameter changes the selected parameter.
func (c *Composer) SetParameter(ctx context.Context, p model.Parameter) {
	c.series.SetParameter(ctx, p)
}

// Stations exposes the station store.
func (c *Composer) Stations() *StationStore { return c.stations }

// Summary exposes the summary store.
func (c *Composer) Summary() *SummaryStore { return c.summary }

// Series exposes the time-series store.
func (c *Composer) Series() *TimeSeriesStore { return c.series }

// View composes the current store snapshots into a renderable View.
func (c *Composer) View() View {
	stations := c.stations.Snapshot()
	summary := c.summary.Snapshot()
	series := c.series.State()

	metrics := DeriveMetrics(summary, stations)
	return View{
		GeneratedAt: time.Now().UTC(),
		Map:         buildMap(stations),
		Metrics:     metrics,
		Cards:       buildCards(metrics, c.lang),
		Chart:       buildChart(series),
	}
}
