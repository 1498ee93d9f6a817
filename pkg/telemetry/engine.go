/*
 * Copyright 2025 StructHealth Analytics.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
)

// JoinState tracks the push-stream channel membership for the observed
// asset.
type JoinState int

const (
	StateIdle JoinState = iota
	StateJoining
	StateJoined
)

func (s JoinState) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	default:
		return "idle"
	}
}

// Config controls the engine's polling cadence and series bound.
type Config struct {
	HistoryLimit       int           `json:"history_limit"`
	SeriesLimit        int           `json:"series_limit"`
	RefreshInterval    time.Duration `json:"-"`
	AggressiveInterval time.Duration `json:"-"`
	AggressiveCount    int           `json:"aggressive_count"`
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}

	if c.SeriesLimit == 0 {
		c.SeriesLimit = DefaultSeriesCapacity
	}

	if c.RefreshInterval == 0 {
		c.RefreshInterval = 30 * time.Second
	}

	if c.AggressiveInterval == 0 {
		c.AggressiveInterval = time.Second
	}

	if c.AggressiveCount == 0 {
		c.AggressiveCount = 5
	}

	return c
}

// Snapshot is the consumer-visible reconciled state for the observed asset.
type Snapshot struct {
	AssetID     string
	Devices     []models.DeviceTelemetry
	IsLoading   bool
	IsFromCache bool
	Connected   bool
	State       JoinState
	LastUpdated time.Time
	HistoryErr  error
	LatestErr   error
	SeriesErr   error
}

// Engine reconciles the history pull, latest pull, and push stream for one
// observed asset at a time. All failures are absorbed at their source and
// exposed as state flags; nothing errors across the public surface.
type Engine struct {
	logger logger.Logger
	puller Puller
	stream Joiner
	cache  SnapshotCache
	clock  Clock
	cfg    Config

	mu      sync.Mutex
	assetID string
	epoch   uint64
	state   JoinState

	history   []models.DeviceTelemetry
	latest    []models.DeviceTelemetry
	live      map[string]models.DeviceTelemetry
	liveOrder []string

	historySeries []models.SeriesPoint
	liveSeries    []models.SeriesPoint

	historyLoaded bool
	latestLoaded  bool
	historyErr    error
	latestErr     error
	seriesErr     error

	cached   []models.DeviceTelemetry
	cachedOK bool

	lastUpdated time.Time

	runCtx    context.Context
	runCancel context.CancelFunc

	assetCtx    context.Context
	assetCancel context.CancelFunc

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, used by tests to drive the polling
// windows.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func NewEngine(puller Puller, stream Joiner, snapshots SnapshotCache, cfg Config, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: log,
		puller: puller,
		stream: stream,
		cache:  snapshots,
		clock:  realClock{},
		cfg:    cfg.withDefaults(),
		live:   make(map[string]models.DeviceTelemetry),
		runCtx: context.Background(),
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Start launches the background refresh loop. The engine is usable without
// Start; only the periodic staleness refresh depends on it.
func (e *Engine) Start(ctx context.Context) {
	e.runCtx, e.runCancel = context.WithCancel(ctx)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		e.refreshLoop(e.runCtx)
	}()
}

// Stop leaves the observed channel, cancels in-flight work, and waits for
// background goroutines to exit.
func (e *Engine) Stop() {
	e.mu.Lock()

	if e.assetID != "" && e.state == StateJoined {
		e.stream.Leave(e.assetID)
	}

	e.state = StateIdle

	if e.assetCancel != nil {
		e.assetCancel()
		e.assetCancel = nil
	}

	e.mu.Unlock()

	if e.runCancel != nil {
		e.runCancel()
	}

	e.wg.Wait()
}

// Observe switches the engine to the given asset. An empty id returns the
// engine to idle. Switching tears down the previous channel subscription,
// discards all accumulated live state, reads the persisted cache as an
// initial placeholder, issues the latest/history/series pulls concurrently,
// and starts the aggressive initial polling window.
func (e *Engine) Observe(assetID string) {
	e.mu.Lock()

	if assetID == e.assetID {
		e.mu.Unlock()
		return
	}

	if e.assetID != "" && e.state == StateJoined {
		e.stream.Leave(e.assetID)
	}

	e.state = StateIdle

	if e.assetCancel != nil {
		e.assetCancel()
		e.assetCancel = nil
		e.assetCtx = nil
	}

	e.assetID = assetID
	e.epoch++
	epoch := e.epoch

	e.history = nil
	e.latest = nil
	e.live = make(map[string]models.DeviceTelemetry)
	e.liveOrder = nil
	e.historySeries = nil
	e.liveSeries = nil
	e.historyLoaded = false
	e.latestLoaded = false
	e.historyErr = nil
	e.latestErr = nil
	e.seriesErr = nil
	e.cached = nil
	e.cachedOK = false
	e.lastUpdated = time.Time{}

	if assetID == "" {
		e.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	e.assetCtx = ctx
	e.assetCancel = cancel

	e.mu.Unlock()

	// Cached snapshot is an initial placeholder only; it is never merged
	// with fresh data.
	if records, ok := e.cache.Get(ctx, assetID); ok {
		e.mu.Lock()
		if e.epoch == epoch {
			e.cached = records
			e.cachedOK = true
		}
		e.mu.Unlock()
	}

	e.refresh(ctx, epoch, assetID)

	e.mu.Lock()
	if e.epoch == epoch {
		if e.stream.Connected() {
			e.stream.Join(assetID)
			e.state = StateJoined
		} else {
			// Defer the join until the connection reports up.
			e.state = StateJoining
		}
	}
	e.mu.Unlock()

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		e.aggressivePoll(ctx, epoch, assetID)
	}()
}

// HandleStreamConnected re-evaluates the deferred join. The stream client
// invokes it on every successful dial, so a reconnect re-joins the observed
// asset.
func (e *Engine) HandleStreamConnected() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.assetID == "" {
		return
	}

	e.stream.Join(e.assetID)
	e.state = StateJoined
}

// HandleStreamEvent folds a live update into the per-device accumulator and
// the chart series. Events for a de-selected asset are dropped.
func (e *Engine) HandleStreamEvent(event models.StreamEvent) {
	e.mu.Lock()

	if e.assetID == "" || event.AssetID != e.assetID {
		e.mu.Unlock()
		return
	}

	record := event.Telemetry()
	if record.DeviceID == "" {
		e.mu.Unlock()
		return
	}

	if _, known := e.live[record.DeviceID]; !known {
		e.liveOrder = append(e.liveOrder, record.DeviceID)
	}

	e.live[record.DeviceID] = record

	if point, ok := event.SeriesPoint(); ok {
		e.liveSeries = append(e.liveSeries, point)

		// The live accumulator never needs to outgrow the series cap.
		if len(e.liveSeries) > e.cfg.SeriesLimit {
			e.liveSeries = e.liveSeries[len(e.liveSeries)-e.cfg.SeriesLimit:]
		}
	}

	e.lastUpdated = e.clock.Now()

	assetID := e.assetID
	merged := e.mergedLocked()
	ctx := e.assetCtx

	e.mu.Unlock()

	e.persist(ctx, assetID, merged)
}

// Snapshot returns the reconciled per-device view plus staleness and
// connection flags. While the initial pulls are in flight and no fresh data
// has arrived, a cached snapshot is served with IsFromCache set.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.mergedLocked()
	loading := e.assetID != "" && (!e.historyLoaded || !e.latestLoaded)

	snapshot := Snapshot{
		AssetID:     e.assetID,
		Devices:     merged,
		IsLoading:   loading,
		Connected:   e.stream.Connected(),
		State:       e.state,
		LastUpdated: e.lastUpdated,
		HistoryErr:  e.historyErr,
		LatestErr:   e.latestErr,
		SeriesErr:   e.seriesErr,
	}

	if len(merged) == 0 && loading && e.cachedOK {
		snapshot.Devices = e.cached
		snapshot.IsFromCache = true
	}

	return snapshot
}

// Series returns the bounded, deduplicated, time-ordered chart series.
func (e *Engine) Series() []models.SeriesPoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	return BuildSeries(e.historySeries, e.liveSeries, e.cfg.SeriesLimit)
}

// State reports the current channel membership.
func (e *Engine) State() JoinState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) refreshLoop(ctx context.Context) {
	ticker := e.clock.Ticker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.mu.Lock()
			assetID := e.assetID
			epoch := e.epoch
			assetCtx := e.assetCtx
			e.mu.Unlock()

			if assetID == "" || assetCtx == nil {
				continue
			}

			e.refresh(assetCtx, epoch, assetID)
		}
	}
}

// refresh issues the three pulls concurrently; none blocks another. Results
// belonging to a superseded asset selection are discarded by epoch.
func (e *Engine) refresh(ctx context.Context, epoch uint64, assetID string) {
	e.wg.Add(3)

	go func() {
		defer e.wg.Done()

		records, err := e.puller.History(ctx, assetID, e.cfg.HistoryLimit)
		e.completeHistory(ctx, epoch, assetID, records, err)
	}()

	go func() {
		defer e.wg.Done()

		records, err := e.puller.Latest(ctx, assetID)
		e.completeLatest(ctx, epoch, assetID, records, err)
	}()

	go func() {
		defer e.wg.Done()

		points, err := e.puller.Series(ctx, assetID, e.cfg.SeriesLimit)
		e.completeSeries(epoch, points, err)
	}()
}

func (e *Engine) aggressivePoll(ctx context.Context, epoch uint64, assetID string) {
	ticker := e.clock.Ticker(e.cfg.AggressiveInterval)
	defer ticker.Stop()

	for i := 0; i < e.cfg.AggressiveCount; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.refresh(ctx, epoch, assetID)
		}
	}
}

func (e *Engine) completeHistory(ctx context.Context, epoch uint64, assetID string, records []models.DeviceTelemetry, err error) {
	e.mu.Lock()

	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}

	if err != nil {
		// A failed pull reads as an empty list; the other sources still
		// populate the merge.
		e.logger.Warn().Err(err).Str("asset_id", assetID).Msg("History pull failed")

		e.history = nil
		e.historyErr = err
		e.historyLoaded = true
		e.mu.Unlock()

		return
	}

	e.history = records
	e.historyErr = nil
	e.historyLoaded = true
	e.lastUpdated = e.clock.Now()

	merged := e.mergedLocked()

	e.mu.Unlock()

	e.persist(ctx, assetID, merged)
}

func (e *Engine) completeLatest(ctx context.Context, epoch uint64, assetID string, records []models.DeviceTelemetry, err error) {
	e.mu.Lock()

	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}

	if err != nil {
		e.logger.Warn().Err(err).Str("asset_id", assetID).Msg("Latest pull failed")

		e.latest = nil
		e.latestErr = err
		e.latestLoaded = true
		e.mu.Unlock()

		return
	}

	e.latest = records
	e.latestErr = nil
	e.latestLoaded = true
	e.lastUpdated = e.clock.Now()

	merged := e.mergedLocked()

	e.mu.Unlock()

	e.persist(ctx, assetID, merged)
}

func (e *Engine) completeSeries(epoch uint64, points []models.SeriesPoint, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		return
	}

	if err != nil {
		e.logger.Warn().Err(err).Str("asset_id", e.assetID).Msg("Series pull failed")

		e.seriesErr = err

		return
	}

	e.historySeries = points
	e.seriesErr = nil
}

// mergedLocked re-derives the full current map from the present values of
// all three sources; precedence is independent of arrival order.
func (e *Engine) mergedLocked() []models.DeviceTelemetry {
	return Merge(e.history, e.latest, e.liveListLocked())
}

func (e *Engine) liveListLocked() []models.DeviceTelemetry {
	if len(e.liveOrder) == 0 {
		return nil
	}

	records := make([]models.DeviceTelemetry, 0, len(e.liveOrder))
	for _, deviceID := range e.liveOrder {
		records = append(records, e.live[deviceID])
	}

	return records
}

// persist writes a non-empty merged snapshot verbatim under the asset's
// cache key. Empty results never clobber a previous good snapshot.
func (e *Engine) persist(ctx context.Context, assetID string, merged []models.DeviceTelemetry) {
	if len(merged) == 0 || assetID == "" {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	e.cache.Put(ctx, assetID, merged)
}
