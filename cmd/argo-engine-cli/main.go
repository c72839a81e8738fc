// Package main provides the Argo engine CLI entrypoint.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oceanlens/argo-engine/internal/analysis"
	"github.com/oceanlens/argo-engine/internal/cache"
	"github.com/oceanlens/argo-engine/internal/config"
	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "argo-engine-cli",
	Short: "Argo engine CLI for querying ocean float data",
	Long: `Argo engine CLI answers questions about Argo ocean float deployments.

Use this tool to:
- Ask natural-language questions about float data
- Compare measurement statistics across ocean regions
- Scan regions for anomalous surface readings
- Inspect individual floats and the known region table

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := "warn"
		if verbose {
			logLevel = cfg.Observability.LogLevel
		}
		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: "argo-engine-cli",
		})

		ui = NewUI(outputJSON, noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newAnomaliesCmd())
	rootCmd.AddCommand(newFloatCmd())
	rootCmd.AddCommand(newRegionsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newQueryCmd creates the query subcommand.
func newQueryCmd() *cobra.Command {
	var question string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ask a natural-language question about float data",
		Long: `Query extracts search criteria from the question, filters floats,
and reports statistics, anomalies, and follow-up suggestions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			eng, db, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			sp := ui.Spinner("Answering question...")
			resp, err := eng.Ask(ctx, question)
			ui.StopSpinner(sp)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if resp.Kind == "comparison" {
				printComparison(resp.Comparison)
				return nil
			}
			printQueryResponse(resp.Query)
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer (required)")

	_ = cmd.MarkFlagRequired("question")

	return cmd
}

// newCompareCmd creates the compare subcommand.
func newCompareCmd() *cobra.Command {
	var (
		regions   []string
		variables []string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare measurement statistics across ocean regions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			eng, db, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			vars := make([]storage.Variable, 0, len(variables))
			for _, v := range variables {
				vars = append(vars, storage.Variable(strings.ToLower(strings.TrimSpace(v))))
			}

			sp := ui.Spinner(fmt.Sprintf("Comparing %s...", strings.Join(regions, " vs ")))
			resp, err := eng.Compare(ctx, regions, vars)
			ui.StopSpinner(sp)
			if err != nil {
				return fmt.Errorf("comparison failed: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			printComparison(resp)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&regions, "regions", nil, "two or more region names (required)")
	cmd.Flags().StringSliceVar(&variables, "variables", nil, "variables to compare (default: temperature, salinity)")

	_ = cmd.MarkFlagRequired("regions")

	return cmd
}

// newAnomaliesCmd creates the anomalies subcommand.
func newAnomaliesCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Scan regions for anomalous surface readings",
		Long: `Anomalies scans one region, or every known region when none is
given, and reports floats whose latest readings deviate from the
recent baseline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			eng, db, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			regions := []string{region}
			if region == "" {
				regions = query.RegionNames()
			}

			bar := ui.ProgressBar(len(regions), "Scanning regions")
			type regionAnomalies struct {
				Region    string             `json:"region"`
				Anomalies []analysis.Anomaly `json:"anomalies"`
			}
			results := make([]regionAnomalies, 0, len(regions))

			for _, name := range regions {
				resp, err := eng.Query(ctx, query.Criteria{LocationName: name}, 0)
				if err != nil {
					return fmt.Errorf("scan region %s: %w", name, err)
				}
				results = append(results, regionAnomalies{Region: name, Anomalies: resp.Anomalies})
				if bar != nil {
					_ = bar.Add(1)
				}
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			total := 0
			for _, r := range results {
				if len(r.Anomalies) == 0 {
					continue
				}
				total += len(r.Anomalies)
				ui.Section(r.Region)
				for _, a := range r.Anomalies {
					ui.Warning("float %s: %s %.3f (baseline %.3f ± %.3f, z=%.2f, %s)",
						a.WMOID, a.Variable, a.Observed, a.BaselineMean, a.BaselineStdDev, a.ZScore, a.Direction)
					if a.Annotation != "" {
						ui.KeyValue("note", a.Annotation)
					}
				}
			}

			if total == 0 {
				ui.Success("No anomalies detected")
			} else {
				ui.Info("%d anomalous reading(s) across %d region(s)", total, len(regions))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "region to scan (default: all known regions)")

	return cmd
}

// newFloatCmd creates the float subcommand.
func newFloatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "float <wmoId>",
		Short: "Show details for one float by WMO identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			eng, db, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			float, err := eng.GetFloat(ctx, args[0])
			if err != nil {
				return fmt.Errorf("float lookup: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(float)
			}

			ui.Section(fmt.Sprintf("Float %s", float.WMOID))
			ui.KeyValue("status", float.Status)
			ui.KeyValue("institution", float.Institution)
			ui.KeyValue("platform", float.PlatformType)
			ui.KeyValue("project", float.ProjectName)
			ui.KeyValue("PI", float.PIName)
			ui.KeyValue("deployed", fmt.Sprintf("%.3f, %.3f on %s",
				float.DeploymentLat, float.DeploymentLon, float.DeploymentDate.Format("2006-01-02")))
			ui.KeyValue("last update", float.LastUpdate.Format(time.RFC3339))
			return nil
		},
	}

	return cmd
}

// newRegionsCmd creates the regions subcommand.
func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the known ocean regions and their bounding boxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := query.RegionNames()

			if outputJSON {
				type regionEntry struct {
					Name string              `json:"name"`
					BBox storage.BoundingBox `json:"bbox"`
				}
				entries := make([]regionEntry, 0, len(names))
				for _, name := range names {
					bbox, _ := query.ResolveRegion(name)
					entries = append(entries, regionEntry{Name: name, BBox: bbox})
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			ui.Section("Known regions")
			for _, name := range names {
				bbox, _ := query.ResolveRegion(name)
				ui.KeyValue(name, fmt.Sprintf("lon [%.0f, %.0f] lat [%.0f, %.0f]",
					bbox.MinLon, bbox.MaxLon, bbox.MinLat, bbox.MaxLat))
			}
			return nil
		},
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.Encode(map[string]string{"version": "0.1.0"})
				return
			}
			fmt.Println("argo-engine-cli v0.1.0")
		},
	}
}

// printQueryResponse renders a query result for the terminal.
func printQueryResponse(resp *engine.QueryResponse) {
	ui.Info("%s", resp.Insight)

	if len(resp.Floats) > 0 {
		ui.Section("Floats")
		for _, f := range resp.Floats {
			ui.KeyValue(f.WMOID, fmt.Sprintf("%s, %s (%s)", f.Institution, f.ProjectName, f.Status))
		}
	}

	if resp.DataSummary != nil && len(resp.DataSummary.VariableStatistics) > 0 {
		ui.Section("Statistics")
		for variable, stats := range resp.DataSummary.VariableStatistics {
			ui.KeyValue(string(variable), fmt.Sprintf("n=%d mean=%.3f min=%.3f max=%.3f σ=%.3f",
				stats.Count, stats.Mean, stats.Min, stats.Max, stats.StdDev))
		}
	}

	if len(resp.Anomalies) > 0 {
		ui.Section("Anomalies")
		for _, a := range resp.Anomalies {
			ui.Warning("float %s: %s %.3f (z=%.2f, %s)", a.WMOID, a.Variable, a.Observed, a.ZScore, a.Direction)
		}
	}

	if len(resp.Recommendations) > 0 {
		ui.Section("Suggestions")
		for _, rec := range resp.Recommendations {
			ui.KeyValue("•", rec)
		}
	}

	ui.Success("Done in %dms", resp.LatencyMs)
}

// printComparison renders a comparison result for the terminal.
func printComparison(resp *engine.ComparisonResponse) {
	ui.Section("Regions")
	for _, region := range resp.Regions {
		summary := "no data"
		if region.DataSummary != nil {
			summary = fmt.Sprintf("%d floats, %d profiles",
				region.DataSummary.FloatCount, region.DataSummary.ProfileCount)
		}
		ui.KeyValue(region.Region, summary)
	}

	ui.Section("Comparisons")
	for _, c := range resp.Comparisons {
		verdict := "equal"
		if c.Higher != analysis.ComparisonEqual {
			verdict = c.Higher + " is higher"
		}
		ui.KeyValue(string(c.Variable), fmt.Sprintf("%s %.3f vs %s %.3f (Δ %.3f, %s)",
			c.FirstRegion, c.FirstMean, c.SecondRegion, c.SecondMean, c.MeanDifference, verdict))
	}

	ui.Success("Done in %dms", resp.LatencyMs)
}

// buildEngine opens the database and assembles a local engine.
func buildEngine(ctx context.Context) (*engine.Engine, *sql.DB, error) {
	db, err := storage.Open(ctx, storage.OpenConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.IsDevelopment() {
		if err := storage.EnsureSchema(ctx, db, cfg.Database.Driver); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	repos := storage.NewRepositories(db)

	normalizer := query.NewNormalizer()
	extractors := []query.Extractor{}
	if cfg.Extractor.Enabled {
		extractors = append(extractors, query.NewRemoteExtractor(query.RemoteExtractorConfig{
			URL:     cfg.Extractor.URL,
			Timeout: cfg.Extractor.Timeout,
		}))
	}
	extractors = append(extractors, query.NewKeywordExtractor(normalizer))
	chain := query.NewChain(logger, normalizer, extractors...)

	eng := engine.New(logger, repos.Floats, repos.Profiles, repos.Measurements, chain,
		cache.NewMemoryClient(cfg.Cache.MaxEntries), engine.Config{
			ResultLimit:        cfg.Engine.ResultLimit,
			DetectAnomalies:    true,
			CacheResults:       cfg.Cache.Enabled,
			CacheTTL:           cfg.Cache.TTL,
			MaxRecommendations: cfg.Engine.MaxRecommendations,
			Detector: analysis.DetectorConfig{
				BaselineWindow:     cfg.Engine.BaselineWindow,
				BaselineSampleCap:  cfg.Engine.BaselineSampleCap,
				MinBaselineSamples: cfg.Engine.MinBaselineSamples,
				ZScoreThreshold:    cfg.Engine.ZScoreThreshold,
			},
		})

	return eng, db, nil
}
