package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanlens/argo-engine/internal/storage"
)

// tenSamples yields a baseline with mean 10 and a known spread.
func tenSamples() []float64 {
	return []float64{9, 9, 9, 9, 9, 11, 11, 11, 11, 11}
}

func TestEvaluate(t *testing.T) {
	// Baseline mean 10, standard deviation 1, threshold 2.0.
	tests := []struct {
		name      string
		value     float64
		direction string
		anomalous bool
	}{
		{"exactly at threshold is not anomalous", 12.0, DirectionHigh, false},
		{"just above threshold", 12.01, DirectionHigh, true},
		{"just below negative threshold", 7.99, DirectionLow, true},
		{"exactly at negative threshold", 8.0, DirectionLow, false},
		{"at the mean", 10.0, DirectionLow, false},
		{"well within", 10.5, DirectionHigh, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			z, direction, anomalous := Evaluate(tc.value, 10.0, 1.0, 2.0)
			assert.Equal(t, tc.anomalous, anomalous)
			assert.Equal(t, tc.direction, direction)
			assert.GreaterOrEqual(t, z, 0.0)
		})
	}
}

func TestDetector_Detect_FlagsDeviantReading(t *testing.T) {
	source := &fakeMeasurementSource{
		baseline: map[storage.Variable][]float64{
			storage.VariableTemperature: tenSamples(),
		},
		latest: map[storage.Variable][]storage.LatestValue{
			storage.VariableTemperature: {
				{FloatID: 1, WMOID: "5900001", Value: 18.0},
				{FloatID: 2, WMOID: "5900002", Value: 10.2},
			},
		},
	}
	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())

	anomalies, err := detector.Detect(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	a := anomalies[0]
	assert.Equal(t, "5900001", a.WMOID)
	assert.Equal(t, storage.VariableTemperature, a.Variable)
	assert.Equal(t, DirectionHigh, a.Direction)
	assert.InDelta(t, 18.0, a.Observed, 1e-9)
	assert.InDelta(t, 10.0, a.BaselineMean, 1e-9)
	assert.Greater(t, a.ZScore, 2.0)
	assert.Equal(t, "Possible marine heatwave or warm water intrusion", a.Annotation)
}

func TestDetector_Detect_Annotations(t *testing.T) {
	source := &fakeMeasurementSource{
		baseline: map[storage.Variable][]float64{
			storage.VariableSalinity:        tenSamples(),
			storage.VariableDissolvedOxygen: tenSamples(),
		},
		latest: map[storage.Variable][]storage.LatestValue{
			storage.VariableSalinity: {
				{FloatID: 1, WMOID: "5900001", Value: 2.0},  // low
				{FloatID: 2, WMOID: "5900002", Value: 20.0}, // high
			},
			storage.VariableDissolvedOxygen: {
				{FloatID: 1, WMOID: "5900001", Value: 1.0}, // low
			},
		},
	}
	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())

	anomalies, err := detector.Detect(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, anomalies, 3)

	byKey := make(map[string]Anomaly)
	for _, a := range anomalies {
		byKey[string(a.Variable)+"/"+a.Direction] = a
	}

	assert.Equal(t, "Possible freshwater input or precipitation event", byKey["salinity/low"].Annotation)
	assert.Empty(t, byKey["salinity/high"].Annotation)
	assert.Equal(t, "Possible hypoxic conditions or biological activity", byKey["dissolved_oxygen/low"].Annotation)
}

func TestDetector_Detect_SkipsSmallBaseline(t *testing.T) {
	source := &fakeMeasurementSource{
		baseline: map[storage.Variable][]float64{
			storage.VariableTemperature: {9, 11, 9, 11, 9, 11, 9, 11, 9}, // 9 samples
		},
		latest: map[storage.Variable][]storage.LatestValue{
			storage.VariableTemperature: {
				{FloatID: 1, WMOID: "5900001", Value: 100.0},
			},
		},
	}
	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())

	anomalies, err := detector.Detect(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetector_Detect_SkipsZeroVariance(t *testing.T) {
	source := &fakeMeasurementSource{
		baseline: map[storage.Variable][]float64{
			storage.VariableTemperature: {10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
		},
		latest: map[storage.Variable][]storage.LatestValue{
			storage.VariableTemperature: {
				{FloatID: 1, WMOID: "5900001", Value: 100.0},
			},
		},
	}
	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())

	anomalies, err := detector.Detect(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetector_Detect_DeterministicOrdering(t *testing.T) {
	source := &fakeMeasurementSource{
		baseline: map[storage.Variable][]float64{
			storage.VariableTemperature: tenSamples(),
			storage.VariableSalinity:    tenSamples(),
		},
		latest: map[storage.Variable][]storage.LatestValue{
			storage.VariableTemperature: {
				{FloatID: 2, WMOID: "5900002", Value: 15.0},
				{FloatID: 1, WMOID: "5900001", Value: 20.0},
				{FloatID: 3, WMOID: "5900003", Value: 15.0}, // same z as 5900002
			},
			storage.VariableSalinity: {
				{FloatID: 1, WMOID: "5900001", Value: 30.0},
			},
		},
	}
	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())

	expected := []struct {
		wmoID    string
		variable storage.Variable
	}{
		// Temperature first (variable scan order), z descending, WMO id
		// ascending on ties; salinity after.
		{"5900001", storage.VariableTemperature},
		{"5900002", storage.VariableTemperature},
		{"5900003", storage.VariableTemperature},
		{"5900001", storage.VariableSalinity},
	}

	for i := 0; i < 5; i++ {
		anomalies, err := detector.Detect(context.Background(), []int64{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, anomalies, len(expected))
		for j, want := range expected {
			assert.Equal(t, want.wmoID, anomalies[j].WMOID, "row %d", j)
			assert.Equal(t, want.variable, anomalies[j].Variable, "row %d", j)
		}
	}
}

func TestDetector_Detect_EmptyFloatSet(t *testing.T) {
	detector := NewDetector(testLogger(), &fakeMeasurementSource{}, DefaultDetectorConfig())

	anomalies, err := detector.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetector_BaselineWindow(t *testing.T) {
	var capturedSince time.Time
	source := &sinceCapturingSource{since: &capturedSince}

	detector := NewDetector(testLogger(), source, DefaultDetectorConfig())
	detector.now = func() time.Time {
		return time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	}

	_, err := detector.Detect(context.Background(), []int64{1, 7})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), capturedSince)

	// The baseline read is scoped to the filtered float set.
	assert.Equal(t, []int64{1, 7}, source.floatIDs)
}

// sinceCapturingSource records the baseline window start and float set
// it is asked for.
type sinceCapturingSource struct {
	since    *time.Time
	floatIDs []int64
	mu       sync.Mutex
}

func (s *sinceCapturingSource) Values(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]float64, error) {
	return nil, nil
}

func (s *sinceCapturingSource) BaselineSamples(ctx context.Context, floatIDs []int64, variable storage.Variable, since time.Time, limit int) ([]float64, error) {
	s.mu.Lock()
	*s.since = since
	s.floatIDs = append([]int64(nil), floatIDs...)
	s.mu.Unlock()
	return nil, nil
}

func (s *sinceCapturingSource) LatestValues(ctx context.Context, floatIDs []int64, variable storage.Variable) ([]storage.LatestValue, error) {
	return nil, nil
}
