package app

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"survsim/domain/core"
	"survsim/domain/study"
	"survsim/internal"
	"survsim/internal/errors"
	"survsim/internal/survival"
	"survsim/ports"
)

// ReplicationService repeats the full study across independently seeded
// replicates to estimate bias and sampling variability of the Cox
// coefficients at each censoring level. Replicate i always draws its seed
// from the same sub-stream of the base seed, so results do not depend on
// goroutine scheduling.
type ReplicationService struct {
	study   *StudyService
	rngPort ports.RNGPort
	logger  *internal.Logger
}

// ReplicationRequest defines the inputs of a replicated study
type ReplicationRequest struct {
	Config      study.Config
	Replicates  int
	Parallelism int
	Transform   survival.TimeTransform
}

// CoefficientAggregate summarizes one Cox coefficient under one condition
// across all successful replicates.
type CoefficientAggregate struct {
	Design       core.DesignKey    `json:"design"`
	Condition    core.ConditionKey `json:"condition"`
	CovName      string            `json:"covariate"`
	TrueValue    float64           `json:"true_value"`
	MeanEstimate float64           `json:"mean_estimate"`
	MeanBias     float64           `json:"mean_bias"`
	EmpiricalSD  float64           `json:"empirical_sd"`
	MeanModelSE  float64           `json:"mean_model_se"`
	Replicates   int               `json:"replicates"`
	Failures     int               `json:"failures"`
}

// ReplicationResult is the aggregated output of a replicated study
type ReplicationResult struct {
	Aggregates []CoefficientAggregate `json:"aggregates"`
	Replicates int                    `json:"replicates"`
	RuntimeMs  int64                  `json:"runtime_ms"`
}

// NewReplicationService creates a replication service on top of a study service
func NewReplicationService(studyService *StudyService, rngPort ports.RNGPort, logger *internal.Logger) *ReplicationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReplicationService{study: studyService, rngPort: rngPort, logger: logger}
}

// Run executes the replicated study with bounded parallelism
func (s *ReplicationService) Run(ctx context.Context, req ReplicationRequest) (*ReplicationResult, error) {
	startTime := time.Now()

	if req.Replicates < 1 {
		return nil, errors.InvalidParameterf("replicate count must be at least 1, got %d", req.Replicates)
	}
	parallelism := req.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if err := req.Config.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidParameter(err.Error()), "replicated study rejected")
	}

	results := make([]*study.Result, req.Replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := 0; i < req.Replicates; i++ {
		i := i
		g.Go(func() error {
			seed, err := s.replicateSeed(gctx, i, req.Config.Seed)
			if err != nil {
				return err
			}
			cfg := req.Config
			cfg.Seed = seed
			res, err := s.study.Run(gctx, RunRequest{Config: cfg, Transform: req.Transform})
			if err != nil {
				return errors.Wrapf(err, "replicate %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ReplicationResult{
		Aggregates: s.aggregate(req.Config, results),
		Replicates: req.Replicates,
		RuntimeMs:  time.Since(startTime).Milliseconds(),
	}
	s.logger.Info("replication done: %d replicates in %dms", req.Replicates, out.RuntimeMs)
	return out, nil
}

// ReplicateSeeds exposes the derived seed per replicate, mostly for tests of
// the determinism contract.
func (s *ReplicationService) ReplicateSeeds(ctx context.Context, count int, baseSeed int64) ([]int64, error) {
	seeds := make([]int64, count)
	for i := range seeds {
		seed, err := s.replicateSeed(ctx, i, baseSeed)
		if err != nil {
			return nil, err
		}
		seeds[i] = seed
	}
	return seeds, nil
}

func (s *ReplicationService) replicateSeed(ctx context.Context, i int, baseSeed int64) (int64, error) {
	stream, err := s.rngPort.Stream(ctx, "replicate", i, baseSeed)
	if err != nil {
		return 0, err
	}
	return stream.Int63(), nil
}

// aggregate walks the replicates in index order so the output is identical
// for a given base seed no matter how the replicates were scheduled.
func (s *ReplicationService) aggregate(cfg study.Config, results []*study.Result) []CoefficientAggregate {
	type cell struct {
		trueValue float64
		sumEst    float64
		sumEstSq  float64
		sumSE     float64
		count     int
		failures  int
	}
	var order []string
	cells := make(map[string]*cell)

	for _, res := range results {
		if res == nil {
			continue
		}
		for _, cond := range res.Conditions {
			if cond.Failed() {
				key := cond.Design.String() + "|" + cond.Condition.String() + "|"
				if _, ok := cells[key]; !ok {
					cells[key] = &cell{}
					order = append(order, key)
				}
				cells[key].failures++
				continue
			}
			for _, coef := range cond.Coefficients {
				key := cond.Design.String() + "|" + cond.Condition.String() + "|" + coef.CovName
				c, ok := cells[key]
				if !ok {
					c = &cell{trueValue: coef.TrueValue}
					cells[key] = c
					order = append(order, key)
				}
				c.sumEst += coef.Estimate
				c.sumEstSq += coef.Estimate * coef.Estimate
				c.sumSE += coef.SE
				c.count++
			}
		}
	}

	var aggs []CoefficientAggregate
	for _, key := range order {
		c := cells[key]
		design, condition, covName := splitKey(key)
		agg := CoefficientAggregate{
			Design:     core.DesignKey(design),
			Condition:  core.ConditionKey(condition),
			CovName:    covName,
			TrueValue:  c.trueValue,
			Replicates: c.count,
			Failures:   c.failures,
		}
		if c.count > 0 {
			mean := c.sumEst / float64(c.count)
			agg.MeanEstimate = mean
			agg.MeanBias = mean - c.trueValue
			agg.MeanModelSE = c.sumSE / float64(c.count)
			if c.count > 1 {
				ss := c.sumEstSq - float64(c.count)*mean*mean
				if ss > 0 {
					agg.EmpiricalSD = math.Sqrt(ss / float64(c.count-1))
				}
			}
		}
		aggs = append(aggs, agg)
	}
	return aggs
}

func splitKey(key string) (design, condition, covName string) {
	first := -1
	second := -1
	for i, r := range key {
		if r == '|' {
			if first < 0 {
				first = i
			} else {
				second = i
				break
			}
		}
	}
	return key[:first], key[first+1 : second], key[second+1:]
}
