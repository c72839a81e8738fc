package analysis

import (
	"github.com/oceanlens/argo-engine/internal/storage"
)

// largeResultThreshold is the float count above which narrowing by
// region is suggested.
const largeResultThreshold = 10

// RecommendationInput summarizes a completed query for the
// recommendation generator.
type RecommendationInput struct {
	AnomalyCount int
	FloatCount   int
	Variables    []storage.Variable
	HasRegion    bool
	HasDates     bool
}

// Recommender produces bounded, ordered follow-up suggestions.
type Recommender struct {
	maxRecommendations int
}

// NewRecommender creates a recommender. A non-positive max falls back
// to 5.
func NewRecommender(maxRecommendations int) *Recommender {
	if maxRecommendations <= 0 {
		maxRecommendations = 5
	}
	return &Recommender{maxRecommendations: maxRecommendations}
}

// variableSuggestions holds the per-variable follow-up suggestions.
var variableSuggestions = map[storage.Variable]string{
	storage.VariableTemperature:     "Analyze thermocline depth variations across the matched profiles",
	storage.VariableSalinity:        "Examine salinity gradients for water mass identification",
	storage.VariableDissolvedOxygen: "Monitor dissolved oxygen levels for marine ecosystem health",
}

// Generate builds at most the configured number of suggestions using
// a fixed priority order: anomaly follow-ups, narrowing large result
// sets, per-variable analyses, then geographic and temporal scoping.
// Accumulation stops as soon as the cap is reached.
func (r *Recommender) Generate(input RecommendationInput) []string {
	var recommendations []string

	add := func(s string) bool {
		if len(recommendations) >= r.maxRecommendations {
			return false
		}
		recommendations = append(recommendations, s)
		return true
	}

	if input.AnomalyCount > 0 {
		add("Investigate flagged floats against independent observation sources")
		add("Check regional current patterns for the anomalous period")
		add("Review sensor calibration history for the flagged floats")
	}

	if input.FloatCount > largeResultThreshold {
		add("Narrow the search to a specific region for more focused analysis")
	}

	if input.FloatCount == 0 {
		add("Try expanding your search criteria")
		add("Consider broader geographic regions")
	}

	for _, variable := range input.Variables {
		if suggestion, ok := variableSuggestions[variable]; ok {
			add(suggestion)
		}
	}

	if !input.HasRegion {
		add("Specify an ocean region to focus the geographic scope")
	}

	if !input.HasDates {
		add("Add a date range to focus on a specific time period")
	}

	return recommendations
}
