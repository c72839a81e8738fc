package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrUnknownVariable = errors.New("unknown variable")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const floatColumns = `id, wmo_id, status, institution, platform_type, project_name,
	pi_name, deployment_lat, deployment_lon, deployment_date, last_update`

const floatColumnsQualified = `f.id, f.wmo_id, f.status, f.institution, f.platform_type,
	f.project_name, f.pi_name, f.deployment_lat, f.deployment_lon, f.deployment_date, f.last_update`

// FloatRepository handles float read operations.
type FloatRepository struct {
	db DB
}

// NewFloatRepository creates a new float repository.
func NewFloatRepository(db DB) *FloatRepository {
	return &FloatRepository{db: db}
}

// GetByWMOID retrieves a float by its WMO registry id.
func (r *FloatRepository) GetByWMOID(ctx context.Context, wmoID string) (*Float, error) {
	query := fmt.Sprintf(`SELECT %s FROM floats WHERE wmo_id = $1`, floatColumns)
	f := &Float{}
	err := r.db.QueryRowContext(ctx, query, wmoID).Scan(
		&f.ID, &f.WMOID, &f.Status, &f.Institution, &f.PlatformType, &f.ProjectName,
		&f.PIName, &f.DeploymentLat, &f.DeploymentLon, &f.DeploymentDate, &f.LastUpdate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// FindByPredicate retrieves floats matching the predicate. Filters
// compose as an intersection; the variable list keeps OR semantics
// (at least one requested variable recorded). Results are capped at
// the predicate limit; row order past the cap carries no meaning.
func (r *FloatRepository) FindByPredicate(ctx context.Context, pred FloatPredicate) ([]*Float, error) {
	query, args, err := buildFloatQuery(pred)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find floats: %w", err)
	}
	defer rows.Close()

	var floats []*Float
	for rows.Next() {
		f := &Float{}
		if err := rows.Scan(
			&f.ID, &f.WMOID, &f.Status, &f.Institution, &f.PlatformType, &f.ProjectName,
			&f.PIName, &f.DeploymentLat, &f.DeploymentLon, &f.DeploymentDate, &f.LastUpdate,
		); err != nil {
			return nil, err
		}
		floats = append(floats, f)
	}
	return floats, rows.Err()
}

// buildFloatQuery translates a predicate into SQL. Conditions follow
// the predicate field order: status first for selectivity, then WMO
// id, spatial, temporal, variable availability, pressure, and text.
func buildFloatQuery(pred FloatPredicate) (string, []interface{}, error) {
	var conds []string
	var args []interface{}

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if pred.Status != "" {
		conds = append(conds, fmt.Sprintf("f.status = %s", next(string(pred.Status))))
	}

	if pred.WMOID != "" {
		conds = append(conds, fmt.Sprintf("f.wmo_id = %s", next(pred.WMOID)))
	}

	if pred.BBox != nil {
		b := pred.BBox
		conds = append(conds, fmt.Sprintf(
			`f.id IN (SELECT p.float_id FROM profiles p
				WHERE p.longitude >= %s AND p.longitude <= %s
				AND p.latitude >= %s AND p.latitude <= %s)`,
			next(b.MinLon), next(b.MaxLon), next(b.MinLat), next(b.MaxLat)))
	}

	if pred.StartDate != nil || pred.EndDate != nil {
		var tconds []string
		if pred.StartDate != nil {
			tconds = append(tconds, fmt.Sprintf("p.timestamp >= %s", next(*pred.StartDate)))
		}
		if pred.EndDate != nil {
			tconds = append(tconds, fmt.Sprintf("p.timestamp <= %s", next(*pred.EndDate)))
		}
		conds = append(conds, fmt.Sprintf(
			"f.id IN (SELECT p.float_id FROM profiles p WHERE %s)",
			strings.Join(tconds, " AND ")))
	}

	if len(pred.Variables) > 0 {
		var vconds []string
		for _, v := range pred.Variables {
			col, ok := ColumnFor(v)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s", ErrUnknownVariable, v)
			}
			vconds = append(vconds, fmt.Sprintf("m.%s IS NOT NULL", col))
		}
		conds = append(conds, fmt.Sprintf(
			`f.id IN (SELECT p.float_id FROM profiles p
				JOIN measurements m ON m.profile_id = p.id
				WHERE %s)`,
			strings.Join(vconds, " OR ")))
	}

	if pred.MinPressure != nil && pred.MaxPressure != nil {
		conds = append(conds, fmt.Sprintf(
			`f.id IN (SELECT p.float_id FROM profiles p
				JOIN measurements m ON m.profile_id = p.id
				WHERE m.pressure >= %s AND m.pressure <= %s)`,
			next(*pred.MinPressure), next(*pred.MaxPressure)))
	}

	if pred.TextSearch != "" {
		term := "%" + strings.ToLower(pred.TextSearch) + "%"
		ph := next(term)
		var tconds []string
		for _, col := range []string{"institution", "project_name", "pi_name", "platform_type", "wmo_id"} {
			tconds = append(tconds, fmt.Sprintf("LOWER(f.%s) LIKE %s", col, ph))
		}
		conds = append(conds, "("+strings.Join(tconds, " OR ")+")")
	}

	query := fmt.Sprintf("SELECT %s FROM floats f", floatColumnsQualified)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY f.id"

	limit := pred.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %s", next(limit))

	return query, args, nil
}

// ProfileRepository handles profile read operations.
type ProfileRepository struct {
	db DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ListByFloat retrieves all profiles of a float ordered by cycle.
func (r *ProfileRepository) ListByFloat(ctx context.Context, floatID int64) ([]*Profile, error) {
	query := `
		SELECT id, float_id, cycle_number, timestamp, latitude, longitude, direction, data_mode
		FROM profiles WHERE float_id = $1 ORDER BY cycle_number
	`
	rows, err := r.db.QueryContext(ctx, query, floatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p := &Profile{}
		if err := rows.Scan(
			&p.ID, &p.FloatID, &p.CycleNumber, &p.Timestamp,
			&p.Latitude, &p.Longitude, &p.Direction, &p.DataMode,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountByFloats counts the profiles belonging to the given floats.
func (r *ProfileRepository) CountByFloats(ctx context.Context, floatIDs []int64) (int, error) {
	if len(floatIDs) == 0 {
		return 0, nil
	}
	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf("SELECT COUNT(*) FROM profiles WHERE float_id IN (%s)", in)

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// DateRange returns the earliest and latest profile timestamps of the
// given floats, or nil when they have no profiles. The bounds are read
// as raw column selections rather than MIN/MAX aggregates: aggregate
// expressions lose the column's declared type, which the sqlite driver
// needs to parse timestamps on Scan.
func (r *ProfileRepository) DateRange(ctx context.Context, floatIDs []int64) (*DateRange, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(floatIDs, 0)

	earliest, ok, err := r.boundaryTimestamp(ctx, in, args, "ASC")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	latest, _, err := r.boundaryTimestamp(ctx, in, args, "DESC")
	if err != nil {
		return nil, err
	}
	return &DateRange{Earliest: earliest, Latest: latest}, nil
}

// boundaryTimestamp selects the first profile timestamp of the float
// set in the given order. The bool is false when the set has no
// profiles.
func (r *ProfileRepository) boundaryTimestamp(ctx context.Context, in string, args []interface{}, order string) (time.Time, bool, error) {
	query := fmt.Sprintf(
		"SELECT timestamp FROM profiles WHERE float_id IN (%s) ORDER BY timestamp %s LIMIT 1", in, order)

	var ts time.Time
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// SpatialExtent returns the geographic envelope of the given floats'
// profiles, or nil when they have no profiles.
func (r *ProfileRepository) SpatialExtent(ctx context.Context, floatIDs []int64) (*SpatialExtent, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf(
		`SELECT MIN(latitude), MAX(latitude), MIN(longitude), MAX(longitude)
		FROM profiles WHERE float_id IN (%s)`, in)

	var minLat, maxLat, minLon, maxLon sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&minLat, &maxLat, &minLon, &maxLon); err != nil {
		return nil, err
	}
	if !minLat.Valid {
		return nil, nil
	}
	return &SpatialExtent{
		MinLat: minLat.Float64,
		MaxLat: maxLat.Float64,
		MinLon: minLon.Float64,
		MaxLon: maxLon.Float64,
	}, nil
}

// MeasurementRepository handles measurement read operations.
type MeasurementRepository struct {
	db DB
}

// NewMeasurementRepository creates a new measurement repository.
func NewMeasurementRepository(db DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// CountByFloats counts the measurements belonging to the given floats.
func (r *MeasurementRepository) CountByFloats(ctx context.Context, floatIDs []int64) (int, error) {
	if len(floatIDs) == 0 {
		return 0, nil
	}
	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM measurements m
		JOIN profiles p ON m.profile_id = p.id
		WHERE p.float_id IN (%s)`, in)

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Values returns all non-null values of a variable across every
// measurement of the given floats, in stable (measurement id) order.
func (r *MeasurementRepository) Values(ctx context.Context, floatIDs []int64, variable Variable) ([]float64, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}
	col, ok := ColumnFor(variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}

	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf(
		`SELECT m.%s FROM measurements m
		JOIN profiles p ON m.profile_id = p.id
		WHERE p.float_id IN (%s) AND m.%s IS NOT NULL
		ORDER BY m.id`, col, in, col)

	return r.scanValues(ctx, query, args)
}

// BaselineSamples returns recent non-null values of a variable across
// the given floats, capped at limit for cost control. The baseline is
// scoped to the filtered float set, not the whole store.
func (r *MeasurementRepository) BaselineSamples(ctx context.Context, floatIDs []int64, variable Variable, since time.Time, limit int) ([]float64, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}
	col, ok := ColumnFor(variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}

	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf(
		`SELECT m.%s FROM measurements m
		JOIN profiles p ON m.profile_id = p.id
		WHERE p.float_id IN (%s) AND p.timestamp >= $%d AND m.%s IS NOT NULL
		ORDER BY p.timestamp DESC, m.id
		LIMIT $%d`, col, in, len(args)+1, col, len(args)+2)
	args = append(args, since, limit)

	return r.scanValues(ctx, query, args)
}

// LatestValues returns, per float, the value of a variable from its
// most recent profile. Within that profile the minimum-pressure row
// wins, so the reading is the surface-most one rather than the
// deepest.
func (r *MeasurementRepository) LatestValues(ctx context.Context, floatIDs []int64, variable Variable) ([]LatestValue, error) {
	if len(floatIDs) == 0 {
		return nil, nil
	}
	col, ok := ColumnFor(variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}

	in, args := inClause(floatIDs, 0)
	query := fmt.Sprintf(
		`SELECT f.id, f.wmo_id, m.%s, m.pressure FROM floats f
		JOIN profiles p ON p.float_id = f.id
		JOIN measurements m ON m.profile_id = p.id
		WHERE f.id IN (%s)
		AND p.id = (SELECT p2.id FROM profiles p2 WHERE p2.float_id = f.id
			ORDER BY p2.timestamp DESC, p2.id DESC LIMIT 1)
		AND m.%s IS NOT NULL
		ORDER BY f.id, m.pressure ASC, m.id`, col, in, col)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var latest []LatestValue
	seen := make(map[int64]bool)
	for rows.Next() {
		var lv LatestValue
		var pressure float64
		if err := rows.Scan(&lv.FloatID, &lv.WMOID, &lv.Value, &pressure); err != nil {
			return nil, err
		}
		if seen[lv.FloatID] {
			continue
		}
		seen[lv.FloatID] = true
		latest = append(latest, lv)
	}
	return latest, rows.Err()
}

// ListByProfile retrieves all measurements of a profile in recorded
// order.
func (r *MeasurementRepository) ListByProfile(ctx context.Context, profileID int64) ([]*Measurement, error) {
	query := `
		SELECT id, profile_id, pressure, depth, temperature, salinity,
			dissolved_oxygen, ph, nitrate, chlorophyll, measurement_order
		FROM measurements WHERE profile_id = $1 ORDER BY measurement_order
	`
	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []*Measurement
	for rows.Next() {
		m := &Measurement{}
		if err := rows.Scan(
			&m.ID, &m.ProfileID, &m.Pressure, &m.Depth, &m.Temperature, &m.Salinity,
			&m.DissolvedOxygen, &m.PH, &m.Nitrate, &m.Chlorophyll, &m.MeasurementOrder,
		); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

func (r *MeasurementRepository) scanValues(ctx context.Context, query string, args []interface{}) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// inClause builds a numbered placeholder list for an IN condition,
// starting after offset existing arguments.
func inClause(ids []int64, offset int) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", offset+i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// Repositories bundles all repositories.
type Repositories struct {
	Floats       *FloatRepository
	Profiles     *ProfileRepository
	Measurements *MeasurementRepository
}

// NewRepositories creates all repositories with a shared connection.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Floats:       NewFloatRepository(db),
		Profiles:     NewProfileRepository(db),
		Measurements: NewMeasurementRepository(db),
	}
}
