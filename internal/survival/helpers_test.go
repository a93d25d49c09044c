package survival

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"survsim/domain/core"
	"survsim/domain/study"
	"survsim/internal/censoring"
	"survsim/internal/sampler"
)

// simulate draws one cohort under the published parameters and derives the
// observed dataset for the given censoring condition.
func simulate(t *testing.T, withCovariate bool, cond study.CensoringCondition, seed int64) (*study.Dataset, study.Config, study.Design) {
	t.Helper()
	return simulate2(t, study.DefaultConfig(), withCovariate, cond, seed)
}

// simulate2 is simulate with explicit generating parameters
func simulate2(t *testing.T, cfg study.Config, withCovariate bool, cond study.CensoringCondition, seed int64) (*study.Dataset, study.Config, study.Design) {
	t.Helper()

	cfg.Seed = seed
	design := cfg.Designs[0]
	if withCovariate {
		design = cfg.Designs[1]
	}

	cohort, err := sampler.NewGenerator(cfg, design, rand.New(rand.NewSource(seed))).Cohort(core.RunID("fit-test"))
	require.NoError(t, err)

	engine, err := censoring.NewEngine(cfg.HorizonDays)
	require.NoError(t, err)
	ds, err := engine.Apply(rand.New(rand.NewSource(seed+1)), cohort, cond)
	require.NoError(t, err)
	return ds, cfg, design
}

func covNamesFor(withCovariate bool) []string {
	if withCovariate {
		return []string{"treatment", "cigarettes_per_day"}
	}
	return []string{"treatment"}
}

// handDataset builds a small fully specified dataset for exact-value tests
func handDataset(obs []study.Observation) *study.Dataset {
	return &study.Dataset{Condition: "hand", Design: "one-covariate", Observations: obs}
}
