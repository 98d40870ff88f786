// Package api implements the HTTP client for the emissions monitoring
// backend. Every method is context-aware, waits on the shared rate limiter,
// and performs exactly one request. There is no retry policy here; callers
// own what a failure means.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/util"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:8000"
	userAgent      = "emdash/1.0"
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Detail     string // FastAPI "detail" message, or the trimmed body
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// Client is the backend HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	debug      bool
}

// NewClient creates a Client for baseURL. A zero timeout means no client
// timeout; ratePerSec <= 0 disables rate limiting. A nil logger discards.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, logger *slog.Logger, debug bool) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		if b := int(ratePerSec); b > burst {
			burst = b
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		debug:   debug,
	}
}

// BaseURL returns the normalised backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ─── Stations ─────────────────────────────────────────────────────────────────

// FetchStations returns every station known to the backend.
func (c *Client) FetchStations(ctx context.Context) ([]model.Station, error) {
	var raw []model.Station
	if err := c.get(ctx, "/stations", nil, &raw); err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	if raw == nil {
		raw = []model.Station{}
	}
	return raw, nil
}

// ─── Observations ─────────────────────────────────────────────────────────────

type rawObservation struct {
	Time      string   `json:"time"`
	StationID string   `json:"station_id"`
	Parameter string   `json:"parameter"`
	Unit      string   `json:"unit"`
	Value     *float64 `json:"value"`
	Quality   *string  `json:"quality"`
	Source    *string  `json:"source"`
}

// FetchObservations lists raw observations narrowed by filter.
func (c *Client) FetchObservations(ctx context.Context, filter model.ObservationFilter) ([]model.Observation, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	params := url.Values{}
	if filter.StationID != "" {
		params.Set("station_id", filter.StationID)
	}
	if filter.Parameter != "" {
		params.Set("parameter", string(filter.Parameter))
	}
	if !filter.Start.IsZero() {
		params.Set("start", util.FormatTimestamp(filter.Start))
	}
	if !filter.End.IsZero() {
		params.Set("end", util.FormatTimestamp(filter.End))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	var raw []rawObservation
	if err := c.get(ctx, "/observations", params, &raw); err != nil {
		return nil, fmt.Errorf("observations: %w", err)
	}

	obs := make([]model.Observation, 0, len(raw))
	for i, o := range raw {
		ts, err := util.ParseTimestamp(o.Time)
		if err != nil {
			return nil, fmt.Errorf("observations: decoding row %d: %w", i, err)
		}
		obs = append(obs, model.Observation{
			Time:      ts,
			StationID: o.StationID,
			Parameter: model.Parameter(o.Parameter),
			Unit:      o.Unit,
			Value:     nullableFloat(o.Value),
			Quality:   deref(o.Quality),
			Source:    deref(o.Source),
		})
	}
	return obs, nil
}

// ─── Hourly Aggregates ────────────────────────────────────────────────────────

type rawHourly struct {
	Time      string   `json:"time"`
	AvgValue  *float64 `json:"avg_value"`
	StationID string   `json:"station_id"`
	Parameter string   `json:"parameter"`
	Unit      string   `json:"unit"`
	MinValue  *float64 `json:"min_value"`
	MaxValue  *float64 `json:"max_value"`
	N         *int     `json:"n"`
}

// FetchHourly returns the hourly means for one station and parameter, in
// the order the backend sent them.
func (c *Client) FetchHourly(ctx context.Context, q model.HourlyQuery) ([]model.HourlyPoint, error) {
	if err := ValidateHourly(q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("station_id", q.StationID)
	params.Set("parameter", string(q.Parameter))
	if !q.Start.IsZero() {
		params.Set("start", util.FormatTimestamp(q.Start))
	}
	if !q.End.IsZero() {
		params.Set("end", util.FormatTimestamp(q.End))
	}

	var raw []rawHourly
	if err := c.get(ctx, "/analytics/hourly", params, &raw); err != nil {
		return nil, fmt.Errorf("hourly %s/%s: %w", q.StationID, q.Parameter, err)
	}

	points := make([]model.HourlyPoint, 0, len(raw))
	for i, r := range raw {
		ts, err := util.ParseTimestamp(r.Time)
		if err != nil {
			return nil, fmt.Errorf("hourly %s/%s: decoding row %d: %w", q.StationID, q.Parameter, i, err)
		}
		points = append(points, model.HourlyPoint{
			Time:      ts,
			AvgValue:  nullableFloat(r.AvgValue),
			StationID: r.StationID,
			Parameter: model.Parameter(r.Parameter),
			Unit:      r.Unit,
			MinValue:  r.MinValue,
			MaxValue:  r.MaxValue,
			N:         r.N,
		})
	}
	return points, nil
}

// ─── Summary ──────────────────────────────────────────────────────────────────

// FetchSummary returns the backend's station and trailing-24h counters.
func (c *Client) FetchSummary(ctx context.Context) (model.StatsSummary, error) {
	var raw struct {
		StationCount   *int `json:"station_count"`
		Observation24h *int `json:"observation_24h"`
	}
	if err := c.get(ctx, "/stats/summary", nil, &raw); err != nil {
		return model.StatsSummary{}, fmt.Errorf("summary: %w", err)
	}
	if raw.StationCount == nil || raw.Observation24h == nil {
		return model.StatsSummary{}, fmt.Errorf("summary: decoding response: missing station_count or observation_24h")
	}
	if *raw.StationCount < 0 || *raw.Observation24h < 0 {
		return model.StatsSummary{}, fmt.Errorf("summary: decoding response: negative counter")
	}
	return model.StatsSummary{
		StationCount:   *raw.StationCount,
		Observation24h: *raw.Observation24h,
	}, nil
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// get performs a single GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if c.debug {
		c.logger.Debug("api request", "url", reqURL)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	if c.debug {
		c.logger.Debug("api response",
			"url", reqURL,
			"status", resp.StatusCode,
			"bytes", len(body),
			"elapsed", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ─── Internal helpers ─────────────────────────────────────────────────────────

// statusError extracts the FastAPI detail message when present.
func statusError(code int, body []byte) *StatusError {
	var apiErr struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Detail) > 0 {
		var s string
		if json.Unmarshal(apiErr.Detail, &s) == nil {
			detail = s
		} else {
			// Validation errors arrive as a list of objects.
			detail = string(apiErr.Detail)
		}
	}
	if len(detail) > 200 {
		detail = detail[:200] + "…"
	}
	return &StatusError{StatusCode: code, Detail: detail}
}

func nullableFloat(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
