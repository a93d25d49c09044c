package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"survsim/domain/core"
	"survsim/domain/study"
	"survsim/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Study       study.Config
	Report      ReportConfig
	Database    DatabaseConfig
	Replication ReplicationConfig
}

// ReportConfig holds reporting-layer output settings
type ReportConfig struct {
	Dir string
}

// DatabaseConfig holds the optional result-archive connection settings.
// The archive is disabled unless a URL is configured.
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ReplicationConfig holds Monte Carlo replication settings
type ReplicationConfig struct {
	Replicates  int
	Parallelism int
}

// Load reads configuration from environment variables, starting from the
// published study defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Study: study.DefaultConfig(),
		Report: ReportConfig{
			Dir: envString("SURVSIM_REPORT_DIR", "reports"),
		},
		Replication: ReplicationConfig{
			Replicates:  envInt("SURVSIM_REPLICATES", 100),
			Parallelism: envInt("SURVSIM_PARALLELISM", 4),
		},
	}

	cfg.Study.N = envInt("SURVSIM_N", cfg.Study.N)
	cfg.Study.Shape = envFloat("SURVSIM_SHAPE", cfg.Study.Shape)
	cfg.Study.ScaleBase = envFloat("SURVSIM_SCALE_BASE", cfg.Study.ScaleBase)
	cfg.Study.BetaTreatment = envFloat("SURVSIM_BETA_TREATMENT", cfg.Study.BetaTreatment)
	cfg.Study.BetaCovariate = envFloat("SURVSIM_BETA_COVARIATE", cfg.Study.BetaCovariate)
	cfg.Study.HorizonDays = envFloat("SURVSIM_HORIZON_DAYS", cfg.Study.HorizonDays)
	cfg.Study.Seed = envInt64("SURVSIM_SEED", cfg.Study.Seed)

	if raw := os.Getenv("SURVSIM_CENSORING_MEANS"); raw != "" {
		sd := envFloat("SURVSIM_CENSORING_SD", 40)
		conds, err := parseConditions(raw, sd)
		if err != nil {
			return nil, err
		}
		cfg.Study.Conditions = conds
	}

	if url := os.Getenv("SURVSIM_DATABASE_URL"); url != "" {
		cfg.Database = DatabaseConfig{URL: url, Enabled: true}
	}

	if err := cfg.Study.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid study configuration")
	}
	if cfg.Replication.Replicates < 1 {
		return nil, errors.ConfigInvalid("SURVSIM_REPLICATES must be at least 1")
	}
	if cfg.Replication.Parallelism < 1 {
		return nil, errors.ConfigInvalid("SURVSIM_PARALLELISM must be at least 1")
	}
	return cfg, nil
}

// parseConditions builds censoring conditions from a comma-separated list of
// means; "inf" disables random censoring for that arm.
func parseConditions(raw string, sd float64) ([]study.CensoringCondition, error) {
	parts := strings.Split(raw, ",")
	conds := make([]study.CensoringCondition, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		label := "condition_" + strconv.Itoa(i+1)
		if strings.EqualFold(p, "inf") {
			conds = append(conds, study.CensoringCondition{
				Label:      core.ConditionKey(label),
				Mean:       study.Days(math.Inf(1)),
				SD:         sd,
				SkipRandom: true,
			})
			continue
		}
		mean, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.ConfigInvalid("SURVSIM_CENSORING_MEANS entry " + p + " is not a number")
		}
		conds = append(conds, study.CensoringCondition{
			Label: core.ConditionKey(label),
			Mean:  study.Days(mean),
			SD:    sd,
		})
	}
	return conds, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
