package query

import (
	"strings"

	"github.com/oceanlens/argo-engine/internal/storage"
)

// Region pairs a named ocean region with its bounding box.
type Region struct {
	Name string
	BBox storage.BoundingBox
}

// regionTable holds the fixed named regions in matching order: a
// location name is matched as a case-insensitive substring and the
// first match wins.
var regionTable = []Region{
	{Name: "pacific", BBox: storage.BoundingBox{MinLon: -180, MinLat: -60, MaxLon: -70, MaxLat: 60}},
	{Name: "atlantic", BBox: storage.BoundingBox{MinLon: -80, MinLat: -60, MaxLon: 20, MaxLat: 70}},
	{Name: "indian", BBox: storage.BoundingBox{MinLon: 20, MinLat: -60, MaxLon: 120, MaxLat: 30}},
	{Name: "arctic", BBox: storage.BoundingBox{MinLon: -180, MinLat: 66, MaxLon: 180, MaxLat: 90}},
	{Name: "southern", BBox: storage.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: -60}},
	{Name: "south", BBox: storage.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: -60}},
}

// ResolveRegion maps a location name to a bounding box. Unrecognized
// names return false and apply no spatial restriction.
func ResolveRegion(locationName string) (storage.BoundingBox, bool) {
	name := strings.ToLower(strings.TrimSpace(locationName))
	if name == "" {
		return storage.BoundingBox{}, false
	}
	for _, region := range regionTable {
		if strings.Contains(name, region.Name) {
			return region.BBox, true
		}
	}
	return storage.BoundingBox{}, false
}

// RegionNames returns the distinct named regions in matching order.
func RegionNames() []string {
	names := make([]string, 0, len(regionTable))
	seen := make(map[storage.BoundingBox]bool)
	for _, region := range regionTable {
		if seen[region.BBox] {
			continue
		}
		seen[region.BBox] = true
		names = append(names, region.Name)
	}
	return names
}

// DetectOceans returns the distinct ocean names mentioned in the
// text, in mention-scan order.
func DetectOceans(text string) []string {
	lower := strings.ToLower(text)
	var oceans []string
	seen := make(map[string]bool)
	for _, region := range regionTable {
		if region.Name == "south" {
			// Alias of "southern"; the substring test would double count.
			continue
		}
		if strings.Contains(lower, region.Name) && !seen[region.Name] {
			seen[region.Name] = true
			oceans = append(oceans, region.Name)
		}
	}
	return oceans
}
