// Package main provides a deterministic synthetic data seeder for the
// Argo engine. It fills the configured database with floats, profiles,
// and measurements so the API and CLI have something to query in
// development.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/oceanlens/argo-engine/internal/config"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

var (
	cfgFile          string
	seed             int64
	floatCount       int
	profilesPerFloat int
	levelsPerProfile int
)

var institutions = []string{
	"CSIRO", "WHOI", "JAMSTEC", "INCOIS", "Ifremer", "NOAA PMEL",
}

var projects = []string{
	"Argo Australia", "Argo US", "Argo Japan", "Argo India", "Argo France", "Argo Core",
}

var platformTypes = []string{
	"APEX", "NAVIS_A", "ARVOR", "PROVOR", "SOLO-II",
}

var piNames = []string{
	"S. Wijffels", "B. Owens", "T. Suga", "M. Ravichandran", "V. Thierry", "G. Johnson",
}

var rootCmd = &cobra.Command{
	Use:   "argo-seed",
	Short: "Seed the Argo engine database with deterministic synthetic data",
	Long: `argo-seed generates a reproducible set of floats spread across the
known ocean regions, each with recent profiles and depth-indexed
measurements. The same --seed always produces the same data.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.Flags().Int64Var(&seed, "seed", 42, "random seed for reproducible data")
	rootCmd.Flags().IntVar(&floatCount, "floats", 60, "number of floats to create")
	rootCmd.Flags().IntVar(&profilesPerFloat, "profiles", 12, "profiles per float")
	rootCmd.Flags().IntVar(&levelsPerProfile, "levels", 20, "measurement levels per profile")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      "console",
		ServiceName: "argo-seed",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := storage.Open(ctx, storage.OpenConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := storage.EnsureSchema(ctx, db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	writer := storage.NewWriter(db, cfg.Database.Driver)
	rng := rand.New(rand.NewSource(seed))

	logger.Info().
		Int64("seed", seed).
		Int("floats", floatCount).
		Int("profiles_per_float", profilesPerFloat).
		Msg("Seeding database")

	progress := mpb.New(mpb.WithWidth(64))
	floatBar := newBar(progress, "floats", int64(floatCount))
	profileBar := newBar(progress, "profiles", int64(floatCount*profilesPerFloat))
	measureBar := newBar(progress, "measurements", int64(floatCount*profilesPerFloat*levelsPerProfile))

	regions := query.RegionNames()
	now := time.Now().UTC()

	for i := 0; i < floatCount; i++ {
		region := regions[i%len(regions)]
		bbox, _ := query.ResolveRegion(region)

		lat := bbox.MinLat + rng.Float64()*(bbox.MaxLat-bbox.MinLat)
		lon := bbox.MinLon + rng.Float64()*(bbox.MaxLon-bbox.MinLon)

		status := storage.FloatStatusActive
		switch {
		case i%11 == 0:
			status = storage.FloatStatusInactive
		case i%13 == 0:
			status = storage.FloatStatusMaintenance
		}

		float := &storage.Float{
			WMOID:          fmt.Sprintf("%d", 5900000+i),
			Status:         status,
			Institution:    institutions[i%len(institutions)],
			PlatformType:   platformTypes[i%len(platformTypes)],
			ProjectName:    projects[i%len(projects)],
			PIName:         piNames[i%len(piNames)],
			DeploymentLat:  lat,
			DeploymentLon:  lon,
			DeploymentDate: now.AddDate(-2, 0, -i),
			LastUpdate:     now.AddDate(0, 0, -(i % 10)),
		}
		if err := writer.InsertFloat(ctx, float); err != nil {
			return err
		}
		floatBar.Increment()

		for cycle := 1; cycle <= profilesPerFloat; cycle++ {
			// Profiles drift slightly around the deployment point and
			// get newer as the cycle number grows; the last one lands
			// within the anomaly baseline window.
			profile := &storage.Profile{
				FloatID:     float.ID,
				CycleNumber: cycle,
				Timestamp:   now.AddDate(0, 0, -3*(profilesPerFloat-cycle)).Add(-time.Duration(i) * time.Minute),
				Latitude:    clampLat(lat + rng.Float64()*0.5 - 0.25),
				Longitude:   lon + rng.Float64()*0.5 - 0.25,
				Direction:   "A",
				DataMode:    storage.DataModeDelayed,
			}
			if err := writer.InsertProfile(ctx, profile); err != nil {
				return err
			}
			profileBar.Increment()

			for level := 0; level < levelsPerProfile; level++ {
				pressure := float64(level) * 50.0
				temp := surfaceTemperature(lat, rng) - pressure*0.01
				sal := 34.5 + rng.Float64()*1.5 - pressure*0.0002
				oxy := 220.0 - pressure*0.05 + rng.Float64()*10

				// A few floats get an implausibly warm latest surface
				// reading so anomaly detection has something to find.
				if cycle == profilesPerFloat && level == 0 && i%17 == 0 {
					temp += 8.0
				}

				m := &storage.Measurement{
					ProfileID:        profile.ID,
					Pressure:         pressure,
					Depth:            ptr(pressure / 1.02),
					Temperature:      ptr(temp),
					Salinity:         ptr(sal),
					DissolvedOxygen:  ptr(oxy),
					MeasurementOrder: level,
				}
				if i%5 == 0 {
					m.PH = ptr(8.1 - pressure*0.0001)
					m.Nitrate = ptr(5.0 + pressure*0.01)
					m.Chlorophyll = ptr(0.4 * (1.0 - pressure/1000.0))
				}
				if err := writer.InsertMeasurement(ctx, m); err != nil {
					return err
				}
				measureBar.Increment()
			}
		}
	}

	progress.Wait()
	logger.Info().Msg("Seeding complete")
	return nil
}

func newBar(progress *mpb.Progress, name string, total int64) *mpb.Bar {
	return progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 10}), " done"),
		),
	)
}

// surfaceTemperature approximates sea surface temperature by latitude.
func surfaceTemperature(lat float64, rng *rand.Rand) float64 {
	base := 28.0 - 0.3*abs(lat)
	if base < -1.5 {
		base = -1.5
	}
	return base + rng.Float64()*2
}

func clampLat(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func ptr(v float64) *float64 { return &v }
