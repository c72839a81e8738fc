// Package analysis computes statistics, anomalies, comparisons, and
// follow-up recommendations over filtered float sets.
package analysis

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// MeasurementSource provides the measurement reads the analysis
// stages need. *storage.MeasurementRepository satisfies it.
type MeasurementSource interface {
	Values(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]float64, error)
	BaselineSamples(ctx context.Context, floatIDs []int64, variable storage.Variable, since time.Time, limit int) ([]float64, error)
	LatestValues(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]storage.LatestValue, error)
}

// AggregateStats holds per-variable statistics over a filtered set.
type AggregateStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
}

// Aggregator computes per-variable statistics.
type Aggregator struct {
	source MeasurementSource
	logger *observability.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(logger *observability.Logger, source MeasurementSource) *Aggregator {
	return &Aggregator{
		source: source,
		logger: logger.WithComponent("aggregator"),
	}
}

// Statistics computes count, mean, min, max, and sample standard
// deviation for each requested variable over every measurement of the
// given floats. Variables with zero matching values are omitted from
// the result entirely. Per-variable reductions run concurrently; the
// output depends only on the stored values, so repeated invocations
// on the same set are identical.
func (a *Aggregator) Statistics(ctx context.Context, floatIDs []int64, variables []storage.Variable) (map[storage.Variable]AggregateStats, error) {
	if len(floatIDs) == 0 || len(variables) == 0 {
		return map[storage.Variable]AggregateStats{}, nil
	}

	results := make(map[storage.Variable]AggregateStats, len(variables))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, variable := range variables {
		wg.Add(1)
		go func(v storage.Variable) {
			defer wg.Done()

			values, err := a.source.Values(ctx, floatIDs, v)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if len(values) == 0 {
				return
			}
			results[v] = computeStats(values)
		}(variable)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	a.logger.Debug().
		Int("floats", len(floatIDs)).
		Int("variables_requested", len(variables)).
		Int("variables_present", len(results)).
		Msg("Aggregation complete")

	return results, nil
}

// computeStats reduces a non-empty value slice to aggregate
// statistics.
func computeStats(values []float64) AggregateStats {
	min, max := values[0], values[0]
	sum := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(values))

	return AggregateStats{
		Count:  len(values),
		Mean:   mean,
		Min:    min,
		Max:    max,
		StdDev: sampleStdDev(values, mean),
	}
}

// sampleStdDev returns the sample standard deviation (divisor N-1),
// or 0 for fewer than two values.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// meanOf returns the arithmetic mean of a non-empty slice.
func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sortedVariables returns the map's keys in fixed scan order so
// serialized output is deterministic.
func sortedVariables(stats map[storage.Variable]AggregateStats) []storage.Variable {
	vars := make([]storage.Variable, 0, len(stats))
	for v := range stats {
		vars = append(vars, v)
	}
	order := make(map[storage.Variable]int, len(storage.KnownVariables))
	for i, v := range storage.KnownVariables {
		order[v] = i
	}
	sort.Slice(vars, func(i, j int) bool {
		oi, iok := order[vars[i]]
		oj, jok := order[vars[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return vars[i] < vars[j]
	})
	return vars
}
