package analysis

import (
	"github.com/oceanlens/argo-engine/internal/storage"
)

// ComparisonEqual labels a variable whose means are exactly equal in
// both regions, instead of silently crediting one side.
const ComparisonEqual = "equal"

// VariableComparison diffs one variable's aggregates between two
// regions.
type VariableComparison struct {
	Variable       storage.Variable `json:"variable"`
	FirstRegion    string           `json:"firstRegion"`
	SecondRegion   string           `json:"secondRegion"`
	FirstMean      float64          `json:"firstMean"`
	SecondMean     float64          `json:"secondMean"`
	MeanDifference float64          `json:"meanDifference"`
	Higher         string           `json:"higher"`
}

// CompareAggregates diffs two regions' aggregate statistics. Only
// variables present in both regions are compared; rows follow the
// fixed variable scan order. MeanDifference is signed
// (first minus second) and Higher names the region with the larger
// mean, or "equal" when the means match exactly. Swapping the regions
// flips the sign but reports the same Higher label.
func CompareAggregates(firstRegion, secondRegion string, first, second map[storage.Variable]AggregateStats) []VariableComparison {
	var comparisons []VariableComparison

	for _, variable := range sortedVariables(first) {
		firstStats := first[variable]
		secondStats, ok := second[variable]
		if !ok {
			continue
		}

		diff := firstStats.Mean - secondStats.Mean
		higher := ComparisonEqual
		switch {
		case diff > 0:
			higher = firstRegion
		case diff < 0:
			higher = secondRegion
		}

		comparisons = append(comparisons, VariableComparison{
			Variable:       variable,
			FirstRegion:    firstRegion,
			SecondRegion:   secondRegion,
			FirstMean:      firstStats.Mean,
			SecondMean:     secondStats.Mean,
			MeanDifference: diff,
			Higher:         higher,
		})
	}

	return comparisons
}

// DefaultComparisonVariables is used when a comparison request names
// no variables.
var DefaultComparisonVariables = []storage.Variable{
	storage.VariableTemperature,
	storage.VariableSalinity,
}
