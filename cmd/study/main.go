package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"survsim/adapters/excel"
	"survsim/adapters/postgres"
	"survsim/adapters/report"
	"survsim/adapters/rng"
	"survsim/app"
	"survsim/domain/study"
	"survsim/internal"
	"survsim/internal/config"
	"survsim/internal/survival"
	"survsim/ports"
)

func main() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "survsim",
		Short: "Monte Carlo study of censoring-rate effects on Cox PH estimation",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newReplicateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var seed int64
	var transform string
	var skipReports bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full study once and write the report artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := internal.NewDefaultLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Study.Seed = seed
			}

			service := app.NewStudyService(rng.NewAdapter(), logger)
			result, err := service.Run(ctx, app.RunRequest{
				Config:    cfg.Study,
				Transform: survival.TimeTransform(transform),
			})
			if err != nil {
				return err
			}

			for _, failed := range result.FailedConditions() {
				logger.Warn("condition %s/%s failed: %s", failed.Design, failed.Condition, failed.Err)
			}

			if !skipReports {
				writers := []ports.ReportWriter{
					excel.NewWriter(excel.WriterConfig{Dir: cfg.Report.Dir}),
					report.NewWriter(report.WriterConfig{Dir: cfg.Report.Dir}),
				}
				for _, w := range writers {
					path, err := w.Write(result)
					if err != nil {
						return err
					}
					logger.Info("artifact written: %s", path)
				}
			}

			if cfg.Database.Enabled {
				db, err := postgres.Connect(ctx, cfg.Database.URL)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := postgres.NewResultRepository(db).SaveResult(ctx, result); err != nil {
					return err
				}
				logger.Info("run archived: %s", result.RunID)
			}

			return printJSON(summaryView(result))
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "base RNG seed")
	cmd.Flags().StringVar(&transform, "transform", string(survival.TransformRank), "time transform for the PH test (rank or identity)")
	cmd.Flags().BoolVar(&skipReports, "no-reports", false, "skip writing workbook and markdown artifacts")
	return cmd
}

func newReplicateCmd() *cobra.Command {
	var replicates int
	var parallelism int

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Repeat the study across independently seeded replicates and aggregate bias/SD",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := internal.NewDefaultLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("replicates") {
				cfg.Replication.Replicates = replicates
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Replication.Parallelism = parallelism
			}

			adapter := rng.NewAdapter()
			service := app.NewReplicationService(app.NewStudyService(adapter, logger), adapter, logger)
			result, err := service.Run(ctx, app.ReplicationRequest{
				Config:      cfg.Study,
				Replicates:  cfg.Replication.Replicates,
				Parallelism: cfg.Replication.Parallelism,
				Transform:   survival.TransformRank,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().IntVar(&replicates, "replicates", 100, "number of Monte Carlo replicates")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "maximum concurrent replicates")
	return cmd
}

// conditionRow trims the full result down to the table the terminal needs
type conditionRow struct {
	Design           string  `json:"design"`
	Condition        string  `json:"condition"`
	CensoredFraction float64 `json:"censored_fraction"`
	Covariate        string  `json:"covariate,omitempty"`
	TrueValue        float64 `json:"true_value,omitempty"`
	Estimate         float64 `json:"estimate,omitempty"`
	SE               float64 `json:"se,omitempty"`
	PHGlobalP        float64 `json:"ph_global_p,omitempty"`
	Err              string  `json:"error,omitempty"`
}

func summaryView(result *study.Result) []conditionRow {
	var rows []conditionRow
	for _, cond := range result.Conditions {
		if cond.Failed() {
			rows = append(rows, conditionRow{
				Design:           cond.Design.String(),
				Condition:        cond.Condition.String(),
				CensoredFraction: cond.CensoredFraction,
				Err:              cond.Err,
			})
			continue
		}
		for _, coef := range cond.Coefficients {
			rows = append(rows, conditionRow{
				Design:           cond.Design.String(),
				Condition:        cond.Condition.String(),
				CensoredFraction: cond.CensoredFraction,
				Covariate:        coef.CovName,
				TrueValue:        coef.TrueValue,
				Estimate:         coef.Estimate,
				SE:               coef.SE,
				PHGlobalP:        cond.PHTest.GlobalP,
			})
		}
	}
	return rows
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
