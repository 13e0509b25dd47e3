package tuning

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Refine hill-climbs from the TopK trials of a finished search. Round r
// starts from the r-th best trial and gets Policy's budget.
type Refine struct {
	Tuner    Tuner
	Policy   AttemptPolicy
	Attempts int
	TopK     int
	Free     int
	Logger   *zap.Logger
}

// RefineResult pairs each refined start with its outcome.
type RefineResult struct {
	Start   Trial      `json:"start"`
	Refined Trial      `json:"refined"`
	Report  TuneReport `json:"report"`
}

func (r Refine) Run(ctx context.Context, trials []Trial, fitness FitnessFn) ([]RefineResult, Trial, error) {
	if r.Tuner == nil {
		return nil, Trial{}, errors.New("tuner is required")
	}
	if len(trials) == 0 {
		return nil, Trial{}, errors.New("no trials to refine")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := r.Policy
	if policy == nil {
		policy = FixedAttemptPolicy{}
	}
	topK := r.TopK
	if topK <= 0 {
		topK = 1
	}
	if topK > len(trials) {
		topK = len(trials)
	}

	ranked := Ranked(trials)[:topK]
	results := make([]RefineResult, 0, topK)
	best, _ := Best(trials)
	for round, start := range ranked {
		attempts := policy.Attempts(r.Attempts, Round{Rank: round, Rounds: topK, FreeParams: r.Free})
		params, report, err := r.Tuner.Tune(ctx, start.Params, attempts, fitness)
		if err != nil {
			return nil, Trial{}, err
		}
		final, err := fitness(ctx, params)
		if err != nil {
			return nil, Trial{}, err
		}
		refined := Trial{Index: start.Index, ID: uuid.NewString(), Params: params, Report: final}
		results = append(results, RefineResult{Start: start, Refined: refined, Report: report})
		logger.Info("refined trial",
			zap.String("tuner", r.Tuner.Name()),
			zap.String("policy", policy.Name()),
			zap.Int("round", round),
			zap.Int("attempts", attempts),
			zap.Float64("start_error", start.Report.Error),
			zap.Float64("refined_error", final.Error),
		)
		if final.Error < best.Report.Error {
			best = refined
		}
	}
	return results, best, nil
}
