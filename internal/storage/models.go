// Package storage provides database models and repositories for Argo
// float observations.
package storage

import (
	"time"
)

// FloatStatus represents the operational status of a float.
type FloatStatus string

const (
	FloatStatusActive      FloatStatus = "active"
	FloatStatusInactive    FloatStatus = "inactive"
	FloatStatusMaintenance FloatStatus = "maintenance"
)

// DataMode represents the provenance stage of a profile.
type DataMode string

const (
	DataModeRealTime DataMode = "R"
	DataModeAdjusted DataMode = "A"
	DataModeDelayed  DataMode = "D"
)

// Variable identifies a measured oceanographic quantity.
type Variable string

const (
	VariableTemperature     Variable = "temperature"
	VariableSalinity        Variable = "salinity"
	VariablePressure        Variable = "pressure"
	VariableDissolvedOxygen Variable = "dissolved_oxygen"
	VariablePH              Variable = "ph"
	VariableNitrate         Variable = "nitrate"
	VariableChlorophyll     Variable = "chlorophyll"
)

// KnownVariables lists the optional measured variables in their fixed
// scan order. Aggregation and anomaly output iterate in this order.
var KnownVariables = []Variable{
	VariableTemperature,
	VariableSalinity,
	VariableDissolvedOxygen,
	VariablePH,
	VariableNitrate,
	VariableChlorophyll,
}

// AnomalyVariables lists the variables eligible for anomaly scanning,
// in scan order.
var AnomalyVariables = []Variable{
	VariableTemperature,
	VariableSalinity,
	VariableDissolvedOxygen,
}

// variableColumns maps variables to their measurement table columns.
// Pressure is included so criteria naming it resolve to the mandatory
// pressure column.
var variableColumns = map[Variable]string{
	VariablePressure:        "pressure",
	VariableTemperature:     "temperature",
	VariableSalinity:        "salinity",
	VariableDissolvedOxygen: "dissolved_oxygen",
	VariablePH:              "ph",
	VariableNitrate:         "nitrate",
	VariableChlorophyll:     "chlorophyll",
}

// IsKnownVariable reports whether v is one of the measured variables.
func IsKnownVariable(v Variable) bool {
	_, ok := variableColumns[v]
	return ok
}

// ColumnFor returns the measurement column for a variable. The bool is
// false for unknown variables, which callers must reject before
// building SQL.
func ColumnFor(v Variable) (string, bool) {
	col, ok := variableColumns[v]
	return col, ok
}

// Float represents one autonomous profiling float.
type Float struct {
	ID             int64       `json:"id"`
	WMOID          string      `json:"wmoId"`
	Status         FloatStatus `json:"status"`
	Institution    string      `json:"institution"`
	PlatformType   string      `json:"platformType"`
	ProjectName    string      `json:"projectName"`
	PIName         string      `json:"piName"`
	DeploymentLat  float64     `json:"deploymentLat"`
	DeploymentLon  float64     `json:"deploymentLon"`
	DeploymentDate time.Time   `json:"deploymentDate"`
	LastUpdate     time.Time   `json:"lastUpdate"`
}

// Profile represents one vertical cycle of a float.
type Profile struct {
	ID          int64     `json:"id"`
	FloatID     int64     `json:"floatId"`
	CycleNumber int       `json:"cycleNumber"`
	Timestamp   time.Time `json:"timestamp"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Direction   string    `json:"direction"`
	DataMode    DataMode  `json:"dataMode"`
}

// Measurement represents one depth-indexed reading within a profile.
// Pressure is always present; the named variables are optional.
type Measurement struct {
	ID               int64    `json:"id"`
	ProfileID        int64    `json:"profileId"`
	Pressure         float64  `json:"pressure"`
	Depth            *float64 `json:"depth,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Salinity         *float64 `json:"salinity,omitempty"`
	DissolvedOxygen  *float64 `json:"dissolvedOxygen,omitempty"`
	PH               *float64 `json:"ph,omitempty"`
	Nitrate          *float64 `json:"nitrate,omitempty"`
	Chlorophyll      *float64 `json:"chlorophyll,omitempty"`
	MeasurementOrder int      `json:"measurementOrder"`
}

// variableAccessors dispatches variable names to measurement fields
// without reflection.
var variableAccessors = map[Variable]func(*Measurement) *float64{
	VariablePressure:        func(m *Measurement) *float64 { return &m.Pressure },
	VariableTemperature:     func(m *Measurement) *float64 { return m.Temperature },
	VariableSalinity:        func(m *Measurement) *float64 { return m.Salinity },
	VariableDissolvedOxygen: func(m *Measurement) *float64 { return m.DissolvedOxygen },
	VariablePH:              func(m *Measurement) *float64 { return m.PH },
	VariableNitrate:         func(m *Measurement) *float64 { return m.Nitrate },
	VariableChlorophyll:     func(m *Measurement) *float64 { return m.Chlorophyll },
}

// Value returns the measurement's value for a variable, or nil when
// the variable is unknown or not recorded.
func (m *Measurement) Value(v Variable) *float64 {
	accessor, ok := variableAccessors[v]
	if !ok {
		return nil
	}
	return accessor(m)
}

// BoundingBox is an inclusive longitude/latitude rectangle.
type BoundingBox struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// Contains reports whether the point lies inside the box, bounds
// inclusive.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// FloatPredicate describes the storage-level filter for float lookup.
// All set fields compose as an intersection; Variables keeps OR
// semantics internally (a float needs at least one of them recorded).
// Pressure bounds are in dbar, already converted from depth meters.
type FloatPredicate struct {
	Status      FloatStatus
	WMOID       string
	BBox        *BoundingBox
	StartDate   *time.Time
	EndDate     *time.Time
	Variables   []Variable
	MinPressure *float64
	MaxPressure *float64
	TextSearch  string
	Limit       int
}

// DateRange holds the earliest and latest profile timestamps of a set.
type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// SpatialExtent holds the geographic envelope of a profile set.
type SpatialExtent struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// LatestValue is one float's most recent surface-most reading for a
// variable.
type LatestValue struct {
	FloatID int64
	WMOID   string
	Value   float64
}
