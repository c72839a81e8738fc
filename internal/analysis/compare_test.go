package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanlens/argo-engine/internal/storage"
)

func TestCompareAggregates(t *testing.T) {
	pacific := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 10, Mean: 18.5},
		storage.VariableSalinity:    {Count: 10, Mean: 34.2},
	}
	atlantic := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 8, Mean: 15.0},
		storage.VariableSalinity:    {Count: 8, Mean: 35.1},
	}

	comparisons := CompareAggregates("pacific", "atlantic", pacific, atlantic)
	require.Len(t, comparisons, 2)

	temp := comparisons[0]
	assert.Equal(t, storage.VariableTemperature, temp.Variable)
	assert.InDelta(t, 3.5, temp.MeanDifference, 1e-9)
	assert.Equal(t, "pacific", temp.Higher)

	sal := comparisons[1]
	assert.Equal(t, storage.VariableSalinity, sal.Variable)
	assert.InDelta(t, -0.9, sal.MeanDifference, 1e-9)
	assert.Equal(t, "atlantic", sal.Higher)
}

func TestCompareAggregates_SwapFlipsSignKeepsHigher(t *testing.T) {
	first := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 5, Mean: 20.0},
	}
	second := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 5, Mean: 17.0},
	}

	forward := CompareAggregates("indian", "arctic", first, second)
	backward := CompareAggregates("arctic", "indian", second, first)
	require.Len(t, forward, 1)
	require.Len(t, backward, 1)

	assert.InDelta(t, forward[0].MeanDifference, -backward[0].MeanDifference, 1e-9)
	assert.Equal(t, "indian", forward[0].Higher)
	assert.Equal(t, "indian", backward[0].Higher)
}

func TestCompareAggregates_EqualMeans(t *testing.T) {
	stats := map[storage.Variable]AggregateStats{
		storage.VariableSalinity: {Count: 3, Mean: 35.0},
	}

	comparisons := CompareAggregates("pacific", "atlantic", stats, stats)
	require.Len(t, comparisons, 1)
	assert.Equal(t, ComparisonEqual, comparisons[0].Higher)
	assert.InDelta(t, 0.0, comparisons[0].MeanDifference, 1e-9)
}

func TestCompareAggregates_OnlySharedVariables(t *testing.T) {
	first := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 5, Mean: 20.0},
		storage.VariableNitrate:     {Count: 5, Mean: 4.0},
	}
	second := map[storage.Variable]AggregateStats{
		storage.VariableTemperature: {Count: 5, Mean: 19.0},
	}

	comparisons := CompareAggregates("pacific", "atlantic", first, second)
	require.Len(t, comparisons, 1)
	assert.Equal(t, storage.VariableTemperature, comparisons[0].Variable)
}
