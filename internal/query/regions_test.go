package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanlens/argo-engine/internal/storage"
)

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected storage.BoundingBox
		found    bool
	}{
		{
			name:     "pacific",
			input:    "pacific",
			expected: storage.BoundingBox{MinLon: -180, MinLat: -60, MaxLon: -70, MaxLat: 60},
			found:    true,
		},
		{
			name:     "case insensitive substring",
			input:    "the North Atlantic Ocean",
			expected: storage.BoundingBox{MinLon: -80, MinLat: -60, MaxLon: 20, MaxLat: 70},
			found:    true,
		},
		{
			name:     "arctic above polar circle",
			input:    "Arctic",
			expected: storage.BoundingBox{MinLon: -180, MinLat: 66, MaxLon: 180, MaxLat: 90},
			found:    true,
		},
		{
			name:     "south alias resolves to southern",
			input:    "south",
			expected: storage.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: -60},
			found:    true,
		},
		{
			name:  "unknown region applies no restriction",
			input: "mediterranean",
			found: false,
		},
		{
			name:  "empty name",
			input: "   ",
			found: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bbox, found := ResolveRegion(tc.input)
			require.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.expected, bbox)
			}
		})
	}
}

func TestRegionNames_DistinctBoxes(t *testing.T) {
	names := RegionNames()

	// The "south" alias shares the southern box and must not appear twice.
	assert.Equal(t, []string{"pacific", "atlantic", "indian", "arctic", "southern"}, names)
}

func TestDetectOceans(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"single ocean", "temperature in the pacific", []string{"pacific"}},
		{"two oceans", "compare the atlantic and the indian ocean", []string{"atlantic", "indian"}},
		{"southern not double counted", "the southern ocean is cold", []string{"southern"}},
		{"no oceans", "temperature near the equator", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetectOceans(tc.text))
		})
	}
}
