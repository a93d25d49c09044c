package app

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survsim/adapters/rng"
	"survsim/domain/study"
	"survsim/internal/errors"
)

func smallReplicationConfig() study.Config {
	cfg := study.DefaultConfig()
	cfg.N = 160
	cfg.Designs = cfg.Designs[:1]
	cfg.Conditions = []study.CensoringCondition{
		{Label: "none", Mean: study.Days(math.Inf(1)), SD: 40, SkipRandom: true},
		{Label: "moderate", Mean: 120, SD: 40},
	}
	return cfg
}

func newReplicationService() *ReplicationService {
	adapter := rng.NewAdapter()
	return NewReplicationService(NewStudyService(adapter, nil), adapter, nil)
}

func TestReplicationService_ReplicateSeeds_Deterministic(t *testing.T) {
	svc := newReplicationService()

	first, err := svc.ReplicateSeeds(context.Background(), 8, 42)
	require.NoError(t, err)
	second, err := svc.ReplicateSeeds(context.Background(), 8, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seen := make(map[int64]bool)
	for _, s := range first {
		assert.False(t, seen[s], "replicates must draw from distinct sub-streams")
		seen[s] = true
	}

	other, err := svc.ReplicateSeeds(context.Background(), 8, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestReplicationService_Run_DeterministicAcrossSchedules(t *testing.T) {
	svc := newReplicationService()
	cfg := smallReplicationConfig()

	serial, err := svc.Run(context.Background(), ReplicationRequest{Config: cfg, Replicates: 4, Parallelism: 1})
	require.NoError(t, err)
	parallel, err := svc.Run(context.Background(), ReplicationRequest{Config: cfg, Replicates: 4, Parallelism: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Aggregates, parallel.Aggregates,
		"aggregates must not depend on goroutine scheduling")
}

func TestReplicationService_Run_Aggregates(t *testing.T) {
	svc := newReplicationService()
	cfg := smallReplicationConfig()

	const replicates = 4
	result, err := svc.Run(context.Background(), ReplicationRequest{Config: cfg, Replicates: replicates, Parallelism: 2})
	require.NoError(t, err)
	assert.Equal(t, replicates, result.Replicates)
	require.Len(t, result.Aggregates, len(cfg.Conditions)) // one covariate per condition

	for _, agg := range result.Aggregates {
		assert.Equal(t, "treatment", agg.CovName)
		assert.InDelta(t, -cfg.Shape*cfg.BetaTreatment, agg.TrueValue, 1e-12)
		assert.Equal(t, replicates, agg.Replicates)
		assert.Zero(t, agg.Failures)
		assert.InDelta(t, agg.MeanEstimate-agg.TrueValue, agg.MeanBias, 1e-12)
		assert.Positive(t, agg.EmpiricalSD, "independent replicates cannot agree exactly")
		assert.Positive(t, agg.MeanModelSE)
	}
}

func TestReplicationService_Run_RejectsBadInputs(t *testing.T) {
	svc := newReplicationService()

	_, err := svc.Run(context.Background(), ReplicationRequest{Config: smallReplicationConfig(), Replicates: 0})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err))

	cfg := smallReplicationConfig()
	cfg.N = 0
	_, err = svc.Run(context.Background(), ReplicationRequest{Config: cfg, Replicates: 2})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err))
}
