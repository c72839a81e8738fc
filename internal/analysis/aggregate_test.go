package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/storage"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
}

// fakeMeasurementSource serves canned values per variable.
type fakeMeasurementSource struct {
	values   map[storage.Variable][]float64
	baseline map[storage.Variable][]float64
	latest   map[storage.Variable][]storage.LatestValue
	err      error
}

func (f *fakeMeasurementSource) Values(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values[variable], nil
}

func (f *fakeMeasurementSource) BaselineSamples(ctx context.Context, floatIDs []int64, variable storage.Variable, since time.Time, limit int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	samples := f.baseline[variable]
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}

func (f *fakeMeasurementSource) LatestValues(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]storage.LatestValue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.latest[variable], nil
}

func TestAggregator_Statistics(t *testing.T) {
	source := &fakeMeasurementSource{
		values: map[storage.Variable][]float64{
			storage.VariableTemperature: {10, 12, 14, 16, 18},
			storage.VariableSalinity:    {35, 35},
		},
	}
	aggregator := NewAggregator(testLogger(), source)

	stats, err := aggregator.Statistics(context.Background(), []int64{1, 2},
		[]storage.Variable{storage.VariableTemperature, storage.VariableSalinity, storage.VariableNitrate})
	require.NoError(t, err)

	temp, ok := stats[storage.VariableTemperature]
	require.True(t, ok)
	assert.Equal(t, 5, temp.Count)
	assert.InDelta(t, 14.0, temp.Mean, 1e-9)
	assert.InDelta(t, 10.0, temp.Min, 1e-9)
	assert.InDelta(t, 18.0, temp.Max, 1e-9)
	// Sample standard deviation with divisor N-1.
	assert.InDelta(t, 3.1622776601, temp.StdDev, 1e-6)

	sal, ok := stats[storage.VariableSalinity]
	require.True(t, ok)
	assert.Equal(t, 2, sal.Count)
	assert.InDelta(t, 0.0, sal.StdDev, 1e-9)

	// Variables with no values are omitted, not zero-filled.
	_, ok = stats[storage.VariableNitrate]
	assert.False(t, ok)
}

func TestAggregator_Statistics_Deterministic(t *testing.T) {
	source := &fakeMeasurementSource{
		values: map[storage.Variable][]float64{
			storage.VariableTemperature: {3.2, 7.7, 1.1, 9.4},
			storage.VariableSalinity:    {34.1, 34.9, 35.4},
		},
	}
	aggregator := NewAggregator(testLogger(), source)
	variables := []storage.Variable{storage.VariableTemperature, storage.VariableSalinity}

	first, err := aggregator.Statistics(context.Background(), []int64{1}, variables)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := aggregator.Statistics(context.Background(), []int64{1}, variables)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAggregator_Statistics_EmptyInputs(t *testing.T) {
	aggregator := NewAggregator(testLogger(), &fakeMeasurementSource{})

	stats, err := aggregator.Statistics(context.Background(), nil, []storage.Variable{storage.VariableTemperature})
	require.NoError(t, err)
	assert.Empty(t, stats)

	stats, err = aggregator.Statistics(context.Background(), []int64{1}, nil)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestAggregator_Statistics_PropagatesError(t *testing.T) {
	source := &fakeMeasurementSource{err: errors.New("connection lost")}
	aggregator := NewAggregator(testLogger(), source)

	_, err := aggregator.Statistics(context.Background(), []int64{1}, []storage.Variable{storage.VariableTemperature})
	assert.Error(t, err)
}

func TestSampleStdDev(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"single value", []float64{5}, 0},
		{"two values", []float64{2, 4}, 1.4142135623},
		{"identical values", []float64{7, 7, 7, 7}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mean := meanOf(tc.values)
			assert.InDelta(t, tc.expected, sampleStdDev(tc.values, mean), 1e-6)
		})
	}
}
