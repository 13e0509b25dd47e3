package tuning

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"quadcpg/internal/model"
)

// RandomSearch evaluates the warm-start points followed by uniform samples
// from Space until Samples trials have run.
type RandomSearch struct {
	Rand      *rand.Rand
	Space     SearchSpace
	Base      model.CouplingParams
	WarmStart []model.CouplingParams
	Samples   int
	Workers   int
	Logger    *zap.Logger
	OnTrial   TrialFn
}

// SearchResult holds every trial in evaluation order and the best one.
type SearchResult struct {
	Trials []Trial `json:"trials"`
	Best   Trial   `json:"best"`
}

func (s *RandomSearch) Name() string {
	return "random_search"
}

// Candidates returns the vectors the search will evaluate.
func (s *RandomSearch) Candidates() ([]model.CouplingParams, error) {
	if s == nil || s.Rand == nil {
		return nil, errors.New("random source is required")
	}
	if s.Samples <= 0 {
		return nil, errors.New("samples must be > 0")
	}
	if err := s.Space.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.CouplingParams, 0, s.Samples)
	for _, p := range s.WarmStart {
		if len(out) == s.Samples {
			break
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	for len(out) < s.Samples {
		p, err := s.Space.Sample(s.Rand, s.Base)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RandomSearch) Search(ctx context.Context, fitness FitnessFn) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	candidates, err := s.Candidates()
	if err != nil {
		return SearchResult{}, err
	}
	logger.Info("search started",
		zap.String("algorithm", s.Name()),
		zap.Int("samples", len(candidates)),
		zap.Int("warm_start", min(len(s.WarmStart), len(candidates))),
		zap.Int("workers", s.Workers),
	)

	trials, err := evaluateAll(ctx, s.Workers, 0, candidates, fitness, func(t Trial) {
		logger.Debug("trial finished",
			zap.Int("index", t.Index),
			zap.String("trial_id", t.ID),
			zap.Float64("error", t.Report.Error),
			zap.Bool("degenerate", t.Report.Degenerate),
		)
		if s.OnTrial != nil {
			s.OnTrial(t)
		}
	})
	if err != nil {
		return SearchResult{}, err
	}
	best, _ := Best(trials)
	logger.Info("search finished", zap.String("best_trial", best.ID), zap.Float64("best_error", best.Report.Error))
	return SearchResult{Trials: trials, Best: best}, nil
}

// Ranked returns trials ordered by error, best first.
func Ranked(trials []Trial) []Trial {
	out := append([]Trial(nil), trials...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Report.Error < out[j].Report.Error
	})
	return out
}
