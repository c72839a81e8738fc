package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// ProfileSource provides the profile reads the summarizer needs.
// *storage.ProfileRepository satisfies it.
type ProfileSource interface {
	CountByFloats(ctx context.Context, floatIDs []int64) (int, error)
	DateRange(ctx context.Context, floatIDs []int64) (*storage.DateRange, error)
	SpatialExtent(ctx context.Context, floatIDs []int64) (*storage.SpatialExtent, error)
}

// MeasurementCounter counts measurements for a float set.
// *storage.MeasurementRepository satisfies it.
type MeasurementCounter interface {
	CountByFloats(ctx context.Context, floatIDs []int64) (int, error)
}

// DataSummary describes a filtered result set.
type DataSummary struct {
	FloatCount         int                                  `json:"floatCount"`
	ProfileCount       int                                  `json:"profileCount"`
	MeasurementCount   int                                  `json:"measurementCount"`
	DateRange          *storage.DateRange                   `json:"dateRange,omitempty"`
	SpatialExtent      *storage.SpatialExtent               `json:"spatialExtent,omitempty"`
	VariableStatistics map[storage.Variable]AggregateStats  `json:"variableStatistics,omitempty"`
}

// Summarizer assembles data summaries for filtered float sets.
type Summarizer struct {
	profiles     ProfileSource
	measurements MeasurementCounter
	logger       *observability.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(logger *observability.Logger, profiles ProfileSource, measurements MeasurementCounter) *Summarizer {
	return &Summarizer{
		profiles:     profiles,
		measurements: measurements,
		logger:       logger.WithComponent("summarizer"),
	}
}

// Summarize gathers counts, the date range, and the spatial extent of
// the float set. The four reads are independent and run concurrently.
// The caller attaches variable statistics afterwards.
func (s *Summarizer) Summarize(ctx context.Context, floatIDs []int64) (*DataSummary, error) {
	summary := &DataSummary{FloatCount: len(floatIDs)}
	if len(floatIDs) == 0 {
		return summary, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		summary.ProfileCount, errs[0] = s.profiles.CountByFloats(ctx, floatIDs)
	}()
	go func() {
		defer wg.Done()
		summary.MeasurementCount, errs[1] = s.measurements.CountByFloats(ctx, floatIDs)
	}()
	go func() {
		defer wg.Done()
		summary.DateRange, errs[2] = s.profiles.DateRange(ctx, floatIDs)
	}()
	go func() {
		defer wg.Done()
		summary.SpatialExtent, errs[3] = s.profiles.SpatialExtent(ctx, floatIDs)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// BuildInsight renders a one-line human-readable description of the
// result set.
func BuildInsight(summary *DataSummary, anomalyCount int) string {
	if summary == nil || summary.FloatCount == 0 {
		return "No floats matched your criteria. Try broadening the search."
	}

	insight := fmt.Sprintf("Found %d float(s) with %d profile(s) and %d measurement(s) matching your criteria.",
		summary.FloatCount, summary.ProfileCount, summary.MeasurementCount)

	if anomalyCount > 0 {
		insight += fmt.Sprintf(" %d anomalous reading(s) detected.", anomalyCount)
	}

	return insight
}
