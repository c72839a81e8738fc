// Package query provides search-criteria normalization and the
// deterministic keyword fallback for natural-language questions.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/oceanlens/argo-engine/internal/storage"
)

// DepthToPressureRatio approximates dbar per meter of seawater.
const DepthToPressureRatio = 1.02

// Sentinel prefixes embedded in the free-text field to route special
// intents downstream.
const (
	FloatIDSentinel    = "FLOAT_ID:"
	ComparisonSentinel = "COMPARISON:"
)

// DepthRange is a requested depth interval in meters.
type DepthRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ToPressure converts the depth interval to a pressure interval in
// dbar.
func (d DepthRange) ToPressure() (min, max float64) {
	return d.Min * DepthToPressureRatio, d.Max * DepthToPressureRatio
}

// Criteria is the normalized search input for the engine.
type Criteria struct {
	LocationName string               `json:"locationName,omitempty"`
	BBox         *storage.BoundingBox `json:"bbox,omitempty"`
	StartDate    *time.Time           `json:"startDate,omitempty"`
	EndDate      *time.Time           `json:"endDate,omitempty"`
	Variables    []storage.Variable   `json:"variables,omitempty"`
	DepthRange   *DepthRange          `json:"depthRange,omitempty"`
	TextSearch   string               `json:"textSearch,omitempty"`
	Status       storage.FloatStatus  `json:"status,omitempty"`
}

// IsEmpty reports whether no criterion is set. Empty criteria signal
// an irrelevant question, not an error.
func (c Criteria) IsEmpty() bool {
	return c.LocationName == "" &&
		c.BBox == nil &&
		c.StartDate == nil &&
		c.EndDate == nil &&
		len(c.Variables) == 0 &&
		c.DepthRange == nil &&
		c.TextSearch == "" &&
		c.Status == ""
}

// FloatIDFromText extracts the float id carried by a FLOAT_ID
// sentinel, if present.
func (c Criteria) FloatIDFromText() (string, bool) {
	if strings.HasPrefix(c.TextSearch, FloatIDSentinel) {
		return strings.TrimPrefix(c.TextSearch, FloatIDSentinel), true
	}
	return "", false
}

// ComparisonRegionsFromText extracts the region names carried by a
// COMPARISON sentinel, if present.
func (c Criteria) ComparisonRegionsFromText() ([]string, bool) {
	if !strings.HasPrefix(c.TextSearch, ComparisonSentinel) {
		return nil, false
	}
	raw := strings.TrimPrefix(c.TextSearch, ComparisonSentinel)
	var regions []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			regions = append(regions, part)
		}
	}
	return regions, len(regions) >= 2
}

// ValidationError reports a malformed criteria field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
