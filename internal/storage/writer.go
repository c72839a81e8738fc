package storage

import (
	"context"
	"fmt"
)

// Writer inserts floats, profiles, and measurements. The query engine
// never writes; only the ingestion tooling and tests use this type.
type Writer struct {
	db     DB
	driver string
}

// NewWriter creates a writer for the given driver ("sqlite" or
// "postgres"); the driver decides how generated ids are returned.
func NewWriter(db DB, driver string) *Writer {
	return &Writer{db: db, driver: driver}
}

// InsertFloat inserts a float and sets its generated id.
func (w *Writer) InsertFloat(ctx context.Context, f *Float) error {
	query := `
		INSERT INTO floats (wmo_id, status, institution, platform_type, project_name,
			pi_name, deployment_lat, deployment_lon, deployment_date, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	args := []interface{}{
		f.WMOID, f.Status, f.Institution, f.PlatformType, f.ProjectName,
		f.PIName, f.DeploymentLat, f.DeploymentLon, f.DeploymentDate, f.LastUpdate,
	}

	id, err := w.insert(ctx, query, args)
	if err != nil {
		return fmt.Errorf("insert float %s: %w", f.WMOID, err)
	}
	f.ID = id
	return nil
}

// InsertProfile inserts a profile and sets its generated id.
func (w *Writer) InsertProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (float_id, cycle_number, timestamp, latitude, longitude, direction, data_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	args := []interface{}{
		p.FloatID, p.CycleNumber, p.Timestamp, p.Latitude, p.Longitude, p.Direction, p.DataMode,
	}

	id, err := w.insert(ctx, query, args)
	if err != nil {
		return fmt.Errorf("insert profile cycle %d: %w", p.CycleNumber, err)
	}
	p.ID = id
	return nil
}

// InsertMeasurement inserts a measurement and sets its generated id.
func (w *Writer) InsertMeasurement(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO measurements (profile_id, pressure, depth, temperature, salinity,
			dissolved_oxygen, ph, nitrate, chlorophyll, measurement_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	args := []interface{}{
		m.ProfileID, m.Pressure, m.Depth, m.Temperature, m.Salinity,
		m.DissolvedOxygen, m.PH, m.Nitrate, m.Chlorophyll, m.MeasurementOrder,
	}

	id, err := w.insert(ctx, query, args)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	m.ID = id
	return nil
}

func (w *Writer) insert(ctx context.Context, query string, args []interface{}) (int64, error) {
	if w.driver == "postgres" {
		var id int64
		err := w.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	result, err := w.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
