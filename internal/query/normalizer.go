package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oceanlens/argo-engine/internal/storage"
)

// Normalizer validates raw criteria and performs deterministic
// keyword-based extraction when no upstream extractor result is
// available.
type Normalizer struct {
	variableKeywords map[storage.Variable][]string
	statusKeywords   map[string]storage.FloatStatus
	domainKeywords   []string
	offTopicKeywords []string
	casualPhrases    []string
	comparisonWords  []string
	floatIDPatterns  []*regexp.Regexp
	yearPattern      *regexp.Regexp
}

// NewNormalizer creates a normalizer with the fixed keyword tables.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		variableKeywords: buildVariableKeywords(),
		statusKeywords:   buildStatusKeywords(),
		domainKeywords:   buildDomainKeywords(),
		offTopicKeywords: buildOffTopicKeywords(),
		casualPhrases:    buildCasualPhrases(),
		comparisonWords:  []string{"compare", "between", "versus", "vs"},
		floatIDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`float\s+(?:id\s+)?(\d+)`),
			regexp.MustCompile(`float\s+#(\d+)`),
			regexp.MustCompile(`\bwmo\s+(?:id\s+)?(\d+)`),
			regexp.MustCompile(`\bid\s+(\d+)`),
		},
		yearPattern: regexp.MustCompile(`\b(19|20)\d{2}\b`),
	}
}

// buildVariableKeywords maps each measured variable to the question
// keywords that select it. Iteration happens in fixed scan order, not
// over this map.
func buildVariableKeywords() map[storage.Variable][]string {
	return map[storage.Variable][]string{
		storage.VariableTemperature:     {"temperature", "temp", "warm", "cold", "heat"},
		storage.VariableSalinity:        {"salinity", "salt", "saline"},
		storage.VariablePressure:        {"pressure", "depth", "deep"},
		storage.VariableDissolvedOxygen: {"oxygen", "o2"},
		storage.VariablePH:              {"ph", "acidity"},
		storage.VariableNitrate:         {"nitrate", "nitrogen"},
		storage.VariableChlorophyll:     {"chlorophyll", "chl"},
	}
}

// variableScanOrder fixes the order variables are extracted in, so
// fallback extraction is deterministic.
var variableScanOrder = []storage.Variable{
	storage.VariableTemperature,
	storage.VariableSalinity,
	storage.VariablePressure,
	storage.VariableDissolvedOxygen,
	storage.VariablePH,
	storage.VariableNitrate,
	storage.VariableChlorophyll,
}

func buildStatusKeywords() map[string]storage.FloatStatus {
	return map[string]storage.FloatStatus{
		"active":      storage.FloatStatusActive,
		"inactive":    storage.FloatStatusInactive,
		"maintenance": storage.FloatStatusMaintenance,
	}
}

func buildDomainKeywords() []string {
	return []string{
		"ocean", "sea", "water", "float", "argo", "buoy", "sensor",
		"temperature", "salinity", "pressure", "depth", "oxygen", "ph",
		"nitrate", "chlorophyll", "measurement", "profile", "marine", "data",
		"pacific", "atlantic", "indian", "arctic", "southern",
	}
}

func buildOffTopicKeywords() []string {
	return []string{
		"weather", "stock", "news", "sports", "movie", "music",
		"recipe", "game", "joke", "story", "song",
	}
}

func buildCasualPhrases() []string {
	return []string{"hello", "hi", "hey", "thanks", "thank you", "bye", "goodbye"}
}

// Validate checks raw criteria for malformed fields. It returns a
// ValidationError naming the offending field.
func (n *Normalizer) Validate(c Criteria) error {
	if c.BBox != nil {
		if c.BBox.MinLon >= c.BBox.MaxLon {
			return NewValidationError("bbox", "minLon must be less than maxLon")
		}
		if c.BBox.MinLat >= c.BBox.MaxLat {
			return NewValidationError("bbox", "minLat must be less than maxLat")
		}
	}

	if c.DepthRange != nil {
		if c.DepthRange.Min < 0 || c.DepthRange.Max < 0 {
			return NewValidationError("depthRange", "depth values must be non-negative")
		}
		if c.DepthRange.Min > c.DepthRange.Max {
			return NewValidationError("depthRange", "min depth must not exceed max depth")
		}
	}

	for _, v := range c.Variables {
		if !storage.IsKnownVariable(v) {
			return NewValidationError("variables", "unknown variable "+string(v))
		}
	}

	if c.Status != "" {
		switch c.Status {
		case storage.FloatStatusActive, storage.FloatStatusInactive, storage.FloatStatusMaintenance:
		default:
			return NewValidationError("status", "unknown status "+string(c.Status))
		}
	}

	return nil
}

// Normalize validates and canonicalizes raw criteria: variable names
// are lowercased and deduplicated, the location name is trimmed.
func (n *Normalizer) Normalize(c Criteria) (Criteria, error) {
	c.LocationName = strings.TrimSpace(c.LocationName)
	c.TextSearch = strings.TrimSpace(c.TextSearch)

	if len(c.Variables) > 0 {
		seen := make(map[storage.Variable]bool)
		canonical := make([]storage.Variable, 0, len(c.Variables))
		for _, v := range c.Variables {
			lv := storage.Variable(strings.ToLower(strings.TrimSpace(string(v))))
			if lv == "" || seen[lv] {
				continue
			}
			seen[lv] = true
			canonical = append(canonical, lv)
		}
		c.Variables = canonical
	}

	if err := n.Validate(c); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// IsIrrelevant reports whether a question is off-domain or a casual
// greeting. Irrelevant questions yield all-empty criteria downstream.
func (n *Normalizer) IsIrrelevant(question string) bool {
	lower := strings.ToLower(question)

	for _, kw := range n.domainKeywords {
		if containsKeyword(lower, kw) {
			return false
		}
	}

	for _, kw := range n.offTopicKeywords {
		if containsKeyword(lower, kw) {
			return true
		}
	}

	if len(strings.Fields(lower)) < 8 {
		for _, phrase := range n.casualPhrases {
			if containsKeyword(lower, phrase) {
				return true
			}
		}
	}

	return false
}

// ExtractFromQuestion derives criteria from a question using only the
// keyword tables. It never fails; irrelevant questions produce empty
// criteria.
func (n *Normalizer) ExtractFromQuestion(question string) Criteria {
	lower := strings.ToLower(question)

	// A float id lookup short-circuits every other criterion,
	// including the irrelevance check: "hi, wmo 5900001" is a lookup,
	// not a greeting.
	for _, pattern := range n.floatIDPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			return Criteria{TextSearch: FloatIDSentinel + m[1]}
		}
	}

	if n.IsIrrelevant(question) {
		return Criteria{}
	}

	var c Criteria

	for _, v := range variableScanOrder {
		for _, kw := range n.variableKeywords[v] {
			if containsKeyword(lower, kw) {
				c.Variables = append(c.Variables, v)
				break
			}
		}
	}

	oceans := DetectOceans(lower)

	if len(oceans) >= 2 {
		for _, word := range n.comparisonWords {
			if containsKeyword(lower, word) {
				c.TextSearch = ComparisonSentinel + strings.Join(oceans, ",")
				return c
			}
		}
	}

	if len(oceans) > 0 {
		c.LocationName = oceans[0]
	}

	// "inactive" is checked before "active": the latter is a substring
	// of the former, so scan order matters.
	for _, kw := range []string{"inactive", "maintenance", "active"} {
		if matchesWord(lower, kw) {
			c.Status = n.statusKeywords[kw]
			break
		}
	}

	n.extractDates(lower, &c)

	return c
}

// extractDates pulls a year or a recency phrase out of the question.
func (n *Normalizer) extractDates(lower string, c *Criteria) {
	if match := n.yearPattern.FindString(lower); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
			c.StartDate = &start
			c.EndDate = &end
			return
		}
	}

	for _, phrase := range []string{"last month", "past month", "recent", "last 30 days"} {
		if strings.Contains(lower, phrase) {
			start := time.Now().UTC().AddDate(0, 0, -30)
			c.StartDate = &start
			return
		}
	}
}

// containsKeyword matches short keywords as whole words and longer
// ones as substrings, so "o2" does not fire inside unrelated words.
func containsKeyword(lower, keyword string) bool {
	if len(keyword) > 3 {
		return strings.Contains(lower, keyword)
	}
	return matchesWord(lower, keyword)
}

// matchesWord reports whether keyword appears as a whole word.
func matchesWord(lower, keyword string) bool {
	for _, field := range strings.FieldsFunc(lower, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if field == keyword {
			return true
		}
	}
	return false
}
