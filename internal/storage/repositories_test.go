package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

// newTestDB opens an in-memory SQLite database with the schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db, "sqlite"))
	return db
}

// seedFixture loads three floats with known positions and readings.
//
//	5900001  active    CSIRO  Pacific (-150, 10)   two profiles, temperature and salinity
//	5900002  inactive  WHOI   Atlantic (-40, 30)   one profile, dissolved oxygen only
//	5900003  active    INCOIS Indian (80, -10)     one profile, temperature and salinity
func seedFixture(t *testing.T, db *sql.DB) (a, b, c *Float) {
	t.Helper()
	ctx := context.Background()
	w := NewWriter(db, "sqlite")

	deployed := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	a = &Float{
		WMOID: "5900001", Status: FloatStatusActive,
		Institution: "CSIRO", PlatformType: "APEX", ProjectName: "Argo Australia", PIName: "S. Wijffels",
		DeploymentLat: 10, DeploymentLon: -150, DeploymentDate: deployed, LastUpdate: deployed,
	}
	b = &Float{
		WMOID: "5900002", Status: FloatStatusInactive,
		Institution: "WHOI", PlatformType: "SOLO-II", ProjectName: "Argo US", PIName: "B. Owens",
		DeploymentLat: 30, DeploymentLon: -40, DeploymentDate: deployed, LastUpdate: deployed,
	}
	c = &Float{
		WMOID: "5900003", Status: FloatStatusActive,
		Institution: "INCOIS", PlatformType: "ARVOR", ProjectName: "Indian Argo", PIName: "M. Ravichandran",
		DeploymentLat: -10, DeploymentLon: 80, DeploymentDate: deployed, LastUpdate: deployed,
	}
	for _, f := range []*Float{a, b, c} {
		require.NoError(t, w.InsertFloat(ctx, f))
	}

	type reading struct {
		pressure float64
		temp     *float64
		salinity *float64
		oxygen   *float64
	}
	addProfile := func(f *Float, cycle int, ts time.Time, readings []reading) {
		p := &Profile{
			FloatID: f.ID, CycleNumber: cycle, Timestamp: ts,
			Latitude: f.DeploymentLat, Longitude: f.DeploymentLon,
			Direction: "A", DataMode: DataModeRealTime,
		}
		require.NoError(t, w.InsertProfile(ctx, p))
		for i, r := range readings {
			m := &Measurement{
				ProfileID: p.ID, Pressure: r.pressure,
				Temperature: r.temp, Salinity: r.salinity, DissolvedOxygen: r.oxygen,
				MeasurementOrder: i,
			}
			require.NoError(t, w.InsertMeasurement(ctx, m))
		}
	}

	addProfile(a, 1, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), []reading{
		{pressure: 0, temp: fptr(15.0), salinity: fptr(35.0)},
		{pressure: 100, temp: fptr(10.0)},
	})
	addProfile(a, 2, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), []reading{
		{pressure: 5, temp: fptr(16.0)},
		{pressure: 50, temp: fptr(12.0), salinity: fptr(34.5)},
	})
	addProfile(b, 1, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), []reading{
		{pressure: 0, oxygen: fptr(220.0)},
		{pressure: 100, oxygen: fptr(180.0)},
	})
	addProfile(c, 1, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), []reading{
		{pressure: 0, temp: fptr(28.0), salinity: fptr(36.0)},
	})

	return a, b, c
}

func wmoIDs(floats []*Float) []string {
	ids := make([]string, len(floats))
	for i, f := range floats {
		ids[i] = f.WMOID
	}
	return ids
}

func TestFloatRepository_GetByWMOID(t *testing.T) {
	db := newTestDB(t)
	seedFixture(t, db)
	repo := NewFloatRepository(db)

	f, err := repo.GetByWMOID(context.Background(), "5900002")
	require.NoError(t, err)
	assert.Equal(t, "WHOI", f.Institution)
	assert.Equal(t, FloatStatusInactive, f.Status)

	_, err = repo.GetByWMOID(context.Background(), "9999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFloatRepository_FindByPredicate(t *testing.T) {
	db := newTestDB(t)
	seedFixture(t, db)
	repo := NewFloatRepository(db)
	ctx := context.Background()

	jan2026 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		pred FloatPredicate
		want []string
	}{
		{
			name: "no filters returns everything",
			pred: FloatPredicate{},
			want: []string{"5900001", "5900002", "5900003"},
		},
		{
			name: "status filter",
			pred: FloatPredicate{Status: FloatStatusActive},
			want: []string{"5900001", "5900003"},
		},
		{
			name: "wmo id filter",
			pred: FloatPredicate{WMOID: "5900003"},
			want: []string{"5900003"},
		},
		{
			name: "pacific bounding box",
			pred: FloatPredicate{BBox: &BoundingBox{MinLon: -180, MinLat: -70, MaxLon: -60, MaxLat: 60}},
			want: []string{"5900001"},
		},
		{
			name: "profiles since 2026",
			pred: FloatPredicate{StartDate: &jan2026},
			want: []string{"5900001", "5900003"},
		},
		{
			name: "dissolved oxygen recorded",
			pred: FloatPredicate{Variables: []Variable{VariableDissolvedOxygen}},
			want: []string{"5900002"},
		},
		{
			name: "variable list keeps OR semantics",
			pred: FloatPredicate{Variables: []Variable{VariableTemperature, VariableDissolvedOxygen}},
			want: []string{"5900001", "5900002", "5900003"},
		},
		{
			name: "pressure band",
			pred: FloatPredicate{MinPressure: fptr(90), MaxPressure: fptr(110)},
			want: []string{"5900001", "5900002"},
		},
		{
			name: "text search on institution",
			pred: FloatPredicate{TextSearch: "whoi"},
			want: []string{"5900002"},
		},
		{
			name: "text search on project name",
			pred: FloatPredicate{TextSearch: "indian argo"},
			want: []string{"5900003"},
		},
		{
			name: "filters intersect",
			pred: FloatPredicate{Status: FloatStatusActive, Variables: []Variable{VariableSalinity}, StartDate: &jan2026},
			want: []string{"5900001", "5900003"},
		},
		{
			name: "limit caps the result",
			pred: FloatPredicate{Limit: 1},
			want: []string{"5900001"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			floats, err := repo.FindByPredicate(ctx, tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, wmoIDs(floats))
		})
	}
}

func TestProfileRepository_Aggregates(t *testing.T) {
	db := newTestDB(t)
	a, b, _ := seedFixture(t, db)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	count, err := repo.CountByFloats(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	dr, err := repo.DateRange(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.NotNil(t, dr)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), dr.Earliest.UTC())
	assert.Equal(t, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), dr.Latest.UTC())

	extent, err := repo.SpatialExtent(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.NotNil(t, extent)
	assert.InDelta(t, -150.0, extent.MinLon, 1e-9)
	assert.InDelta(t, -40.0, extent.MaxLon, 1e-9)
	assert.InDelta(t, 10.0, extent.MinLat, 1e-9)
	assert.InDelta(t, 30.0, extent.MaxLat, 1e-9)
}

func TestProfileRepository_EmptyFloatSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	count, err := repo.CountByFloats(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	dr, err := repo.DateRange(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, dr)

	extent, err := repo.SpatialExtent(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, extent)
}

func TestProfileRepository_ListByFloat(t *testing.T) {
	db := newTestDB(t)
	a, _, _ := seedFixture(t, db)
	repo := NewProfileRepository(db)

	profiles, err := repo.ListByFloat(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, 1, profiles[0].CycleNumber)
	assert.Equal(t, 2, profiles[1].CycleNumber)
}

func TestMeasurementRepository_Values(t *testing.T) {
	db := newTestDB(t)
	a, _, _ := seedFixture(t, db)
	repo := NewMeasurementRepository(db)

	temps, err := repo.Values(context.Background(), []int64{a.ID}, VariableTemperature)
	require.NoError(t, err)
	assert.Equal(t, []float64{15.0, 10.0, 16.0, 12.0}, temps)

	// Null readings are excluded.
	sals, err := repo.Values(context.Background(), []int64{a.ID}, VariableSalinity)
	require.NoError(t, err)
	assert.Equal(t, []float64{35.0, 34.5}, sals)

	_, err = repo.Values(context.Background(), []int64{a.ID}, Variable("turbidity"))
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestMeasurementRepository_CountByFloats(t *testing.T) {
	db := newTestDB(t)
	a, b, _ := seedFixture(t, db)
	repo := NewMeasurementRepository(db)

	count, err := repo.CountByFloats(context.Background(), []int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestMeasurementRepository_BaselineSamples(t *testing.T) {
	db := newTestDB(t)
	a, _, c := seedFixture(t, db)
	repo := NewMeasurementRepository(db)
	ctx := context.Background()

	since := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	// Only the February and March 2026 profiles qualify.
	values, err := repo.BaselineSamples(ctx, []int64{a.ID, c.ID}, VariableTemperature, since, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{16.0, 12.0, 28.0}, values)

	capped, err := repo.BaselineSamples(ctx, []int64{a.ID, c.ID}, VariableTemperature, since, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	// The baseline never reaches outside the given float set.
	scoped, err := repo.BaselineSamples(ctx, []int64{a.ID}, VariableTemperature, since, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{16.0, 12.0}, scoped)

	empty, err := repo.BaselineSamples(ctx, nil, VariableTemperature, since, 100)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMeasurementRepository_LatestValues(t *testing.T) {
	db := newTestDB(t)
	a, b, c := seedFixture(t, db)
	repo := NewMeasurementRepository(db)
	ctx := context.Background()

	// For each float the newest profile wins, and within it the
	// minimum-pressure reading.
	latest, err := repo.LatestValues(ctx, []int64{a.ID, b.ID, c.ID}, VariableTemperature)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byWMO := make(map[string]float64, len(latest))
	for _, lv := range latest {
		byWMO[lv.WMOID] = lv.Value
	}
	assert.InDelta(t, 16.0, byWMO["5900001"], 1e-9)
	assert.InDelta(t, 28.0, byWMO["5900003"], 1e-9)

	oxygen, err := repo.LatestValues(ctx, []int64{b.ID}, VariableDissolvedOxygen)
	require.NoError(t, err)
	require.Len(t, oxygen, 1)
	assert.InDelta(t, 220.0, oxygen[0].Value, 1e-9)
}

func TestMeasurementRepository_ListByProfile(t *testing.T) {
	db := newTestDB(t)
	a, _, _ := seedFixture(t, db)
	profiles, err := NewProfileRepository(db).ListByFloat(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, profiles)

	measurements, err := NewMeasurementRepository(db).ListByProfile(context.Background(), profiles[0].ID)
	require.NoError(t, err)
	require.Len(t, measurements, 2)
	assert.InDelta(t, 0.0, measurements[0].Pressure, 1e-9)
	require.NotNil(t, measurements[0].Temperature)
	assert.InDelta(t, 15.0, *measurements[0].Temperature, 1e-9)
	assert.Nil(t, measurements[1].Salinity)
}
