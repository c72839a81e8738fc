package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// Anomaly directions.
const (
	DirectionHigh = "high"
	DirectionLow  = "low"
)

// Anomaly is an ephemeral record of a float whose latest reading
// deviates from the recent baseline. Anomalies are computed per
// request and never persisted.
type Anomaly struct {
	FloatID        int64            `json:"floatId"`
	WMOID          string           `json:"wmoId"`
	Variable       storage.Variable `json:"variable"`
	Observed       float64          `json:"observed"`
	BaselineMean   float64          `json:"baselineMean"`
	BaselineStdDev float64          `json:"baselineStdDev"`
	ZScore         float64          `json:"zScore"`
	Direction      string           `json:"direction"`
	Annotation     string           `json:"annotation,omitempty"`
}

// annotationKey pairs a variable with a deviation direction.
type annotationKey struct {
	variable  storage.Variable
	direction string
}

// annotations holds the fixed scientific notes attached to known
// (variable, direction) combinations.
var annotations = map[annotationKey]string{
	{storage.VariableTemperature, DirectionHigh}:    "Possible marine heatwave or warm water intrusion",
	{storage.VariableSalinity, DirectionLow}:        "Possible freshwater input or precipitation event",
	{storage.VariableDissolvedOxygen, DirectionLow}: "Possible hypoxic conditions or biological activity",
}

// DetectorConfig holds anomaly detection settings.
type DetectorConfig struct {
	// BaselineWindow is how far back baseline samples reach.
	BaselineWindow time.Duration
	// BaselineSampleCap bounds the baseline sample size for cost control.
	BaselineSampleCap int
	// MinBaselineSamples is the minimum baseline size; smaller baselines
	// skip the variable silently.
	MinBaselineSamples int
	// ZScoreThreshold flags readings with z strictly above it.
	ZScoreThreshold float64
}

// DefaultDetectorConfig returns the standard detection settings.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BaselineWindow:     30 * 24 * time.Hour,
		BaselineSampleCap:  1000,
		MinBaselineSamples: 10,
		ZScoreThreshold:    2.0,
	}
}

// Detector flags floats whose latest surface-most reading deviates
// from a recent baseline.
type Detector struct {
	source MeasurementSource
	logger *observability.Logger
	config DetectorConfig
	now    func() time.Time
}

// NewDetector creates a detector. Zero config fields fall back to the
// defaults.
func NewDetector(logger *observability.Logger, source MeasurementSource, cfg DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if cfg.BaselineWindow <= 0 {
		cfg.BaselineWindow = def.BaselineWindow
	}
	if cfg.BaselineSampleCap <= 0 {
		cfg.BaselineSampleCap = def.BaselineSampleCap
	}
	if cfg.MinBaselineSamples <= 0 {
		cfg.MinBaselineSamples = def.MinBaselineSamples
	}
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = def.ZScoreThreshold
	}
	return &Detector{
		source: source,
		logger: logger.WithComponent("anomaly-detector"),
		config: cfg,
		now:    time.Now,
	}
}

// Detect scans the eligible variables (temperature, salinity,
// dissolved oxygen) over the given floats. Variables run
// concurrently; output ordering is deterministic: variable scan
// order, then z-score descending, ties broken by WMO id ascending.
func (d *Detector) Detect(ctx context.Context, floatIDs []int64) ([]Anomaly, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}

	since := d.now().Add(-d.config.BaselineWindow)
	perVariable := make([][]Anomaly, len(storage.AnomalyVariables))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, variable := range storage.AnomalyVariables {
		wg.Add(1)
		go func(idx int, v storage.Variable) {
			defer wg.Done()

			found, err := d.detectVariable(ctx, floatIDs, v, since)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			perVariable[idx] = found
		}(i, variable)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	var anomalies []Anomaly
	for _, found := range perVariable {
		sort.Slice(found, func(i, j int) bool {
			if found[i].ZScore != found[j].ZScore {
				return found[i].ZScore > found[j].ZScore
			}
			return found[i].WMOID < found[j].WMOID
		})
		anomalies = append(anomalies, found...)
	}

	d.logger.Debug().
		Int("floats", len(floatIDs)).
		Int("anomalies", len(anomalies)).
		Msg("Anomaly scan complete")

	return anomalies, nil
}

// detectVariable runs the baseline and latest-value reads for one
// variable and evaluates each float against the baseline.
func (d *Detector) detectVariable(ctx context.Context, floatIDs []int64, variable storage.Variable, since time.Time) ([]Anomaly, error) {
	// The baseline read and the latest-value read are independent.
	var baseline []float64
	var latest []storage.LatestValue
	var baselineErr, latestErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		baseline, baselineErr = d.source.BaselineSamples(ctx, floatIDs, variable, since, d.config.BaselineSampleCap)
	}()
	go func() {
		defer wg.Done()
		latest, latestErr = d.source.LatestValues(ctx, floatIDs, variable)
	}()
	wg.Wait()

	if baselineErr != nil {
		return nil, baselineErr
	}
	if latestErr != nil {
		return nil, latestErr
	}

	if len(baseline) < d.config.MinBaselineSamples {
		d.logger.Debug().
			Str("variable", string(variable)).
			Int("samples", len(baseline)).
			Msg("Baseline too small, variable skipped")
		return nil, nil
	}

	mean := meanOf(baseline)
	stdDev := sampleStdDev(baseline, mean)
	if stdDev == 0 {
		d.logger.Debug().
			Str("variable", string(variable)).
			Msg("Zero baseline variance, variable skipped")
		return nil, nil
	}

	var found []Anomaly
	for _, lv := range latest {
		z, direction, anomalous := Evaluate(lv.Value, mean, stdDev, d.config.ZScoreThreshold)
		if !anomalous {
			continue
		}
		found = append(found, Anomaly{
			FloatID:        lv.FloatID,
			WMOID:          lv.WMOID,
			Variable:       variable,
			Observed:       lv.Value,
			BaselineMean:   mean,
			BaselineStdDev: stdDev,
			ZScore:         z,
			Direction:      direction,
			Annotation:     annotations[annotationKey{variable, direction}],
		})
	}
	return found, nil
}

// Evaluate computes the z-score of a value against a baseline and
// reports whether it is anomalous. A z-score exactly at the threshold
// is not anomalous. Direction is high when the value exceeds the
// baseline mean, low otherwise.
func Evaluate(value, mean, stdDev, threshold float64) (z float64, direction string, anomalous bool) {
	z = (value - mean) / stdDev
	direction = DirectionLow
	if value > mean {
		direction = DirectionHigh
	}
	if z < 0 {
		z = -z
	}
	return z, direction, z > threshold
}
