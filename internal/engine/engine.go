// Package engine orchestrates criteria extraction, filtering,
// aggregation, anomaly detection, and recommendations for one request.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oceanlens/argo-engine/internal/analysis"
	"github.com/oceanlens/argo-engine/internal/cache"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// ErrUnknownRegion rejects comparison requests naming regions outside
// the fixed region table.
var ErrUnknownRegion = errors.New("unknown region")

// FloatSource provides float lookups. *storage.FloatRepository
// satisfies it.
type FloatSource interface {
	FindByPredicate(ctx context.Context, pred storage.FloatPredicate) ([]*storage.Float, error)
	GetByWMOID(ctx context.Context, wmoID string) (*storage.Float, error)
}

// MeasurementStore bundles the measurement reads the engine needs.
// *storage.MeasurementRepository satisfies it.
type MeasurementStore interface {
	analysis.MeasurementSource
	analysis.MeasurementCounter
}

// Config holds engine settings.
type Config struct {
	// ResultLimit caps the filtered float set before any pagination.
	ResultLimit int
	// DetectAnomalies controls the anomaly scan on query results.
	DetectAnomalies bool
	// CacheResults enables query-result caching.
	CacheResults bool
	// CacheTTL is the query-result cache TTL.
	CacheTTL time.Duration
	// MaxRecommendations bounds the suggestion list.
	MaxRecommendations int
	// Detector configures anomaly detection.
	Detector analysis.DetectorConfig
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		ResultLimit:        100,
		DetectAnomalies:    true,
		CacheResults:       true,
		CacheTTL:           5 * time.Minute,
		MaxRecommendations: 5,
		Detector:           analysis.DefaultDetectorConfig(),
	}
}

// Metrics tracks engine activity.
type Metrics struct {
	Queries       int64 `json:"queries"`
	Comparisons   int64 `json:"comparisons"`
	CacheHits     int64 `json:"cacheHits"`
	Irrelevant    int64 `json:"irrelevant"`
	AnomaliesSeen int64 `json:"anomaliesSeen"`
}

// Engine is the stateless per-request query engine. The only shared
// resource is the read-only store, so concurrent requests need no
// mutual exclusion.
type Engine struct {
	floats      FloatSource
	aggregator  *analysis.Aggregator
	detector    *analysis.Detector
	recommender *analysis.Recommender
	summarizer  *analysis.Summarizer
	normalizer  *query.Normalizer
	extractor   *query.Chain
	cache       cache.Client
	logger      *observability.Logger
	config      Config

	mu      sync.Mutex
	metrics Metrics
}

// New creates an engine. Zero config fields fall back to defaults;
// cacheClient may be nil to disable caching.
func New(
	logger *observability.Logger,
	floats FloatSource,
	profiles analysis.ProfileSource,
	measurements MeasurementStore,
	extractor *query.Chain,
	cacheClient cache.Client,
	cfg Config,
) *Engine {
	def := DefaultConfig()
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = def.ResultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = def.MaxRecommendations
	}
	if cacheClient == nil {
		cfg.CacheResults = false
	}

	return &Engine{
		floats:      floats,
		aggregator:  analysis.NewAggregator(logger, measurements),
		detector:    analysis.NewDetector(logger, measurements, cfg.Detector),
		recommender: analysis.NewRecommender(cfg.MaxRecommendations),
		summarizer:  analysis.NewSummarizer(logger, profiles, measurements),
		normalizer:  query.NewNormalizer(),
		extractor:   extractor,
		cache:       cacheClient,
		logger:      logger.WithComponent("engine"),
		config:      cfg,
	}
}

// FloatSummary is the caller-facing float projection.
type FloatSummary struct {
	WMOID         string              `json:"wmoId"`
	Status        storage.FloatStatus `json:"status"`
	Institution   string              `json:"institution"`
	PlatformType  string              `json:"platformType"`
	ProjectName   string              `json:"projectName"`
	DeploymentLat float64             `json:"deploymentLat"`
	DeploymentLon float64             `json:"deploymentLon"`
	LastUpdate    time.Time           `json:"lastUpdate"`
}

// QueryResponse is the full result of one query.
type QueryResponse struct {
	Criteria        query.Criteria        `json:"criteria"`
	Floats          []FloatSummary        `json:"floats"`
	DataSummary     *analysis.DataSummary `json:"dataSummary"`
	Anomalies       []analysis.Anomaly    `json:"anomalies"`
	Recommendations []string              `json:"recommendations"`
	Insight         string                `json:"insight"`
	Irrelevant      bool                  `json:"irrelevant,omitempty"`
	Cached          bool                  `json:"cached,omitempty"`
	LatencyMs       int64                 `json:"latencyMs"`
}

// RegionSummary is one region's share of a comparison.
type RegionSummary struct {
	Region      string                `json:"region"`
	BBox        storage.BoundingBox   `json:"bbox"`
	DataSummary *analysis.DataSummary `json:"dataSummary"`
}

// ComparisonResponse is the result of a region comparison.
type ComparisonResponse struct {
	Regions     []RegionSummary               `json:"regions"`
	Comparisons []analysis.VariableComparison `json:"comparisons"`
	LatencyMs   int64                         `json:"latencyMs"`
}

// Response unions the possible outcomes of a natural-language
// question.
type Response struct {
	Kind       string              `json:"kind"` // query or comparison
	Query      *QueryResponse      `json:"query,omitempty"`
	Comparison *ComparisonResponse `json:"comparison,omitempty"`
}

// Ask answers a natural-language question. Criteria extraction runs
// through the strategy chain; comparison intent routes to Compare,
// everything else to Query.
func (e *Engine) Ask(ctx context.Context, question string) (*Response, error) {
	criteria, err := e.extractor.Extract(ctx, question)
	if err != nil {
		// The keyword strategy never fails, so the chain as a whole
		// should not either.
		return nil, fmt.Errorf("extract criteria: %w", err)
	}

	if regions, ok := criteria.ComparisonRegionsFromText(); ok {
		comparison, err := e.Compare(ctx, regions, criteria.Variables)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: "comparison", Comparison: comparison}, nil
	}

	queryResp, err := e.Query(ctx, criteria, e.config.ResultLimit)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: "query", Query: queryResp}, nil
}

// Query validates criteria, filters floats, and assembles the
// statistical summary, anomalies, and recommendations. Either the
// full response is returned or an error; never a partial result.
func (e *Engine) Query(ctx context.Context, criteria query.Criteria, limit int) (*QueryResponse, error) {
	start := time.Now()

	e.mu.Lock()
	e.metrics.Queries++
	e.mu.Unlock()

	normalized, err := e.normalizer.Normalize(criteria)
	if err != nil {
		return nil, err
	}

	if normalized.IsEmpty() {
		e.mu.Lock()
		e.metrics.Irrelevant++
		e.mu.Unlock()

		return &QueryResponse{
			Criteria:        normalized,
			Floats:          []FloatSummary{},
			DataSummary:     &analysis.DataSummary{},
			Anomalies:       []analysis.Anomaly{},
			Recommendations: []string{"Ask about ocean float data, for example temperature in the Pacific Ocean"},
			Insight:         "The question does not appear to be about ocean float data.",
			Irrelevant:      true,
			LatencyMs:       time.Since(start).Milliseconds(),
		}, nil
	}

	if limit <= 0 || limit > e.config.ResultLimit {
		limit = e.config.ResultLimit
	}

	cacheKey := queryCacheKey(normalized, limit)
	if cached := e.cachedQuery(ctx, cacheKey); cached != nil {
		cached.LatencyMs = time.Since(start).Milliseconds()
		return cached, nil
	}

	pred, err := buildPredicate(normalized, limit)
	if err != nil {
		return nil, err
	}

	floats, err := e.floats.FindByPredicate(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("filter floats: %w", err)
	}

	floatIDs := make([]int64, len(floats))
	summaries := make([]FloatSummary, len(floats))
	for i, f := range floats {
		floatIDs[i] = f.ID
		summaries[i] = summarizeFloat(f)
	}

	// The data summary, the variable aggregation, and the anomaly scan
	// are independent reads; run them concurrently and join before
	// assembling the response.
	var (
		wg          sync.WaitGroup
		dataSummary *analysis.DataSummary
		stats       map[storage.Variable]analysis.AggregateStats
		anomalies   []analysis.Anomaly
		errs        = make([]error, 3)
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		dataSummary, errs[0] = e.summarizer.Summarize(ctx, floatIDs)
	}()
	go func() {
		defer wg.Done()
		stats, errs[1] = e.aggregator.Statistics(ctx, floatIDs, normalized.Variables)
	}()
	go func() {
		defer wg.Done()
		if e.config.DetectAnomalies {
			anomalies, errs[2] = e.detector.Detect(ctx, floatIDs)
		}
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("assemble response: %w", err)
		}
	}

	if len(stats) > 0 {
		dataSummary.VariableStatistics = stats
	}
	if anomalies == nil {
		anomalies = []analysis.Anomaly{}
	}

	recommendations := e.recommender.Generate(analysis.RecommendationInput{
		AnomalyCount: len(anomalies),
		FloatCount:   len(floats),
		Variables:    normalized.Variables,
		HasRegion:    normalized.LocationName != "" || normalized.BBox != nil,
		HasDates:     normalized.StartDate != nil || normalized.EndDate != nil,
	})

	resp := &QueryResponse{
		Criteria:        normalized,
		Floats:          summaries,
		DataSummary:     dataSummary,
		Anomalies:       anomalies,
		Recommendations: recommendations,
		Insight:         analysis.BuildInsight(dataSummary, len(anomalies)),
		LatencyMs:       time.Since(start).Milliseconds(),
	}

	e.mu.Lock()
	e.metrics.AnomaliesSeen += int64(len(anomalies))
	e.mu.Unlock()

	e.storeQuery(ctx, cacheKey, resp)

	e.logger.WithContext(ctx).Info().
		Int("floats", len(floats)).
		Int("anomalies", len(anomalies)).
		Dur("latency", time.Since(start)).
		Msg("Query complete")

	return resp, nil
}

// Compare runs the filter and aggregation pipeline independently per
// region and diffs the aggregates of every region pair. Empty
// variable lists default to temperature and salinity.
func (e *Engine) Compare(ctx context.Context, regions []string, variables []storage.Variable) (*ComparisonResponse, error) {
	start := time.Now()

	e.mu.Lock()
	e.metrics.Comparisons++
	e.mu.Unlock()

	if len(regions) < 2 {
		return nil, query.NewValidationError("regions", "at least two regions are required")
	}
	if len(variables) == 0 {
		variables = analysis.DefaultComparisonVariables
	}

	type regionResult struct {
		summary RegionSummary
		stats   map[storage.Variable]analysis.AggregateStats
	}

	results := make([]regionResult, len(regions))
	errs := make([]error, len(regions))
	var wg sync.WaitGroup

	for i, region := range regions {
		bbox, ok := query.ResolveRegion(region)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, region)
		}

		wg.Add(1)
		go func(idx int, name string, box storage.BoundingBox) {
			defer wg.Done()

			summary, stats, err := e.regionPipeline(ctx, box, variables)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = regionResult{
				summary: RegionSummary{Region: name, BBox: box, DataSummary: summary},
				stats:   stats,
			}
		}(i, region, bbox)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("compare regions: %w", err)
		}
	}

	resp := &ComparisonResponse{
		Regions:     make([]RegionSummary, len(results)),
		Comparisons: []analysis.VariableComparison{},
	}
	for i, r := range results {
		resp.Regions[i] = r.summary
	}
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			resp.Comparisons = append(resp.Comparisons, analysis.CompareAggregates(
				regions[i], regions[j], results[i].stats, results[j].stats)...)
		}
	}
	resp.LatencyMs = time.Since(start).Milliseconds()

	e.logger.WithContext(ctx).Info().
		Strs("regions", regions).
		Int("comparisons", len(resp.Comparisons)).
		Dur("latency", time.Since(start)).
		Msg("Comparison complete")

	return resp, nil
}

// GetFloat retrieves one float by WMO id.
func (e *Engine) GetFloat(ctx context.Context, wmoID string) (*storage.Float, error) {
	return e.floats.GetByWMOID(ctx, wmoID)
}

// GetMetrics returns a snapshot of engine activity.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// regionPipeline runs filtering, summarization, and aggregation for
// one region of a comparison.
func (e *Engine) regionPipeline(ctx context.Context, bbox storage.BoundingBox, variables []storage.Variable) (*analysis.DataSummary, map[storage.Variable]analysis.AggregateStats, error) {
	box := bbox
	floats, err := e.floats.FindByPredicate(ctx, storage.FloatPredicate{
		BBox:      &box,
		Variables: variables,
		Limit:     e.config.ResultLimit,
	})
	if err != nil {
		return nil, nil, err
	}

	floatIDs := make([]int64, len(floats))
	for i, f := range floats {
		floatIDs[i] = f.ID
	}

	var (
		wg      sync.WaitGroup
		summary *analysis.DataSummary
		stats   map[storage.Variable]analysis.AggregateStats
		errs    = make([]error, 2)
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		summary, errs[0] = e.summarizer.Summarize(ctx, floatIDs)
	}()
	go func() {
		defer wg.Done()
		stats, errs[1] = e.aggregator.Statistics(ctx, floatIDs, variables)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	if len(stats) > 0 {
		summary.VariableStatistics = stats
	}
	return summary, stats, nil
}

// buildPredicate translates normalized criteria into the storage
// predicate: explicit boxes win over named regions, depth meters are
// converted to pressure dbar, and the float-id sentinel becomes an
// exact WMO match.
func buildPredicate(c query.Criteria, limit int) (storage.FloatPredicate, error) {
	pred := storage.FloatPredicate{
		Status: c.Status,
		Limit:  limit,
	}

	if c.BBox != nil {
		box := *c.BBox
		pred.BBox = &box
	} else if c.LocationName != "" {
		if bbox, ok := query.ResolveRegion(c.LocationName); ok {
			pred.BBox = &bbox
		}
		// Unrecognized names apply no spatial restriction.
	}

	pred.StartDate = c.StartDate
	pred.EndDate = c.EndDate
	pred.Variables = c.Variables

	if c.DepthRange != nil {
		min, max := c.DepthRange.ToPressure()
		pred.MinPressure = &min
		pred.MaxPressure = &max
	}

	if wmoID, ok := c.FloatIDFromText(); ok {
		pred.WMOID = wmoID
	} else {
		pred.TextSearch = c.TextSearch
	}

	return pred, nil
}

// summarizeFloat projects a float entity for callers.
func summarizeFloat(f *storage.Float) FloatSummary {
	return FloatSummary{
		WMOID:         f.WMOID,
		Status:        f.Status,
		Institution:   f.Institution,
		PlatformType:  f.PlatformType,
		ProjectName:   f.ProjectName,
		DeploymentLat: f.DeploymentLat,
		DeploymentLon: f.DeploymentLon,
		LastUpdate:    f.LastUpdate,
	}
}

// queryCacheKey hashes the canonical criteria encoding so equivalent
// queries share one cache entry.
func queryCacheKey(c query.Criteria, limit int) string {
	payload, err := json.Marshal(struct {
		Criteria query.Criteria `json:"criteria"`
		Limit    int            `json:"limit"`
	}{c, limit})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return cache.Key("query", hex.EncodeToString(sum[:]))
}

// cachedQuery returns a cached response, or nil on miss or disabled
// caching.
func (e *Engine) cachedQuery(ctx context.Context, key string) *QueryResponse {
	if !e.config.CacheResults || key == "" {
		return nil
	}

	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.WithContext(ctx).Warn().Err(err).Msg("Cache read failed")
		}
		return nil
	}

	var resp QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		e.logger.WithContext(ctx).Warn().Err(err).Msg("Cache entry corrupt, ignoring")
		return nil
	}

	e.mu.Lock()
	e.metrics.CacheHits++
	e.mu.Unlock()

	resp.Cached = true
	return &resp
}

// storeQuery writes a response to the cache; failures only log.
func (e *Engine) storeQuery(ctx context.Context, key string, resp *QueryResponse) {
	if !e.config.CacheResults || key == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.config.CacheTTL); err != nil {
		e.logger.WithContext(ctx).Warn().Err(err).Msg("Cache write failed")
	}
}
