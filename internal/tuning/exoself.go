package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"quadcpg/internal/model"
)

// Exoself is a stochastic hill climber over the free coupling parameters.
// Each attempt perturbs one or more base vectors and keeps the candidate
// with the lowest error.
type Exoself struct {
	Rand               *rand.Rand
	Steps              int
	StepSize           float64
	PerturbationRange  float64
	AnnealingFactor    float64
	MinImprovement     float64
	GoalError          float64
	CandidateSelection string
	// Space limits perturbation to its free parameters and clamps them.
	// A zero Space perturbs every coefficient without bounds.
	Space   SearchSpace
	Workers int
	Logger  *zap.Logger
	OnTrial TrialFn
	mu      sync.Mutex
}

const (
	CandidateSelectBestSoFar = "best_so_far"
	CandidateSelectOriginal  = "original"
	CandidateSelectDynamicA  = "dynamic"
	CandidateSelectDynamic   = "dynamic_random"
	CandidateSelectAll       = "all"
	CandidateSelectAllRandom = "all_random"
	CandidateSelectRecent    = "recent"
	CandidateSelectRecentRnd = "recent_random"
)

func (e *Exoself) Name() string {
	return "exoself_hillclimb"
}

func (e *Exoself) validate(fitness FitnessFn) error {
	if e == nil || e.Rand == nil {
		return errors.New("random source is required")
	}
	if e.Steps <= 0 {
		return errors.New("steps must be > 0")
	}
	if e.StepSize <= 0 {
		return errors.New("step size must be > 0")
	}
	if e.PerturbationRange < 0 {
		return errors.New("perturbation range must be >= 0")
	}
	if e.AnnealingFactor < 0 {
		return errors.New("annealing factor must be >= 0")
	}
	if e.MinImprovement < 0 {
		return errors.New("min improvement must be >= 0")
	}
	if e.GoalError < 0 {
		return errors.New("goal error must be >= 0")
	}
	if fitness == nil {
		return errors.New("fitness function is required")
	}
	if _, err := candidateModes(NormalizeCandidateSelectionName(e.CandidateSelection)); err != nil {
		return err
	}
	return e.Space.Validate()
}

func (e *Exoself) Tune(ctx context.Context, params model.CouplingParams, attempts int, fitness FitnessFn) (model.CouplingParams, TuneReport, error) {
	report := TuneReport{AttemptsPlanned: max(attempts, 0)}
	if err := ctx.Err(); err != nil {
		return model.CouplingParams{}, report, err
	}
	if err := e.validate(fitness); err != nil {
		return model.CouplingParams{}, report, err
	}
	if attempts <= 0 {
		return params, report, nil
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	perturbationRange := e.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := e.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}
	names := e.Space.Free()
	if len(names) == 0 {
		names = model.ParamNames()
	}

	best := params
	bestReport, err := fitness(ctx, best)
	if err != nil {
		return model.CouplingParams{}, report, err
	}
	report.CandidateEvaluations++
	if e.reached(bestReport) {
		report.GoalReached = true
		return best, report, nil
	}
	recent := best
	evaluated := 1

	for a := 0; a < attempts; a++ {
		bases := e.candidateBases(best, params, recent)
		candidates := make([]model.CouplingParams, 0, len(bases))
		for _, base := range bases {
			candidate, err := e.perturbCandidate(ctx, base, names, perturbationRange, annealingFactor)
			if err != nil {
				return model.CouplingParams{}, report, err
			}
			candidates = append(candidates, candidate)
		}
		trials, err := evaluateAll(ctx, e.Workers, evaluated, candidates, fitness, e.OnTrial)
		if err != nil {
			return model.CouplingParams{}, report, err
		}
		evaluated += len(trials)
		report.AttemptsExecuted++
		report.CandidateEvaluations += len(trials)

		localBest, localReport := best, bestReport
		for _, t := range trials {
			if t.Report.Error < localReport.Error-e.MinImprovement {
				localBest, localReport = t.Params, t.Report
			}
		}
		recent = localBest
		if localReport.Error < bestReport.Error-e.MinImprovement {
			best, bestReport = localBest, localReport
			report.AcceptedCandidates++
			logger.Debug("hill climb improved", zap.Int("attempt", a), zap.Float64("error", bestReport.Error))
		} else {
			report.RejectedCandidates++
		}
		if e.reached(bestReport) {
			report.GoalReached = true
			break
		}
	}
	return best, report, nil
}

func (e *Exoself) reached(r model.FitnessReport) bool {
	return e.GoalError > 0 && !r.Degenerate && r.Error <= e.GoalError
}

func (e *Exoself) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Intn(n)
}

func (e *Exoself) randFloat64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Float64()
}

func NormalizeCandidateSelectionName(name string) string {
	if name == "" {
		return CandidateSelectBestSoFar
	}
	return name
}

// candidateModes returns which of best, original and recent a mode draws
// from, and whether the pool is randomly subset.
func candidateModes(mode string) ([]string, error) {
	switch mode {
	case CandidateSelectBestSoFar:
		return []string{"best"}, nil
	case CandidateSelectOriginal:
		return []string{"original"}, nil
	case CandidateSelectDynamicA, CandidateSelectDynamic:
		return []string{"best", "original"}, nil
	case CandidateSelectRecent, CandidateSelectRecentRnd:
		return []string{"recent"}, nil
	case CandidateSelectAll, CandidateSelectAllRandom:
		return []string{"best", "original", "recent"}, nil
	default:
		return nil, errors.New("unsupported candidate selection")
	}
}

func isRandomSelection(mode string) bool {
	switch mode {
	case CandidateSelectDynamic, CandidateSelectAllRandom, CandidateSelectRecentRnd:
		return true
	default:
		return false
	}
}

func (e *Exoself) candidateBases(best, original, recent model.CouplingParams) []model.CouplingParams {
	mode := NormalizeCandidateSelectionName(e.CandidateSelection)
	sources, _ := candidateModes(mode)
	pool := make([]model.CouplingParams, 0, len(sources))
	for _, src := range sources {
		switch src {
		case "best":
			pool = append(pool, best)
		case "original":
			pool = append(pool, original)
		case "recent":
			pool = append(pool, recent)
		}
	}
	if isRandomSelection(mode) {
		return e.randomSubset(pool)
	}
	return pool
}

func (e *Exoself) randomSubset(pool []model.CouplingParams) []model.CouplingParams {
	if len(pool) <= 1 {
		return pool
	}
	mutationP := 1 / math.Sqrt(float64(len(pool)))
	chosen := make([]model.CouplingParams, 0, len(pool))
	for i := range pool {
		if e.randFloat64() < mutationP {
			chosen = append(chosen, pool[i])
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	return []model.CouplingParams{pool[e.randIntn(len(pool))]}
}

func (e *Exoself) perturbCandidate(ctx context.Context, base model.CouplingParams, names []string, perturbationRange, annealingFactor float64) (model.CouplingParams, error) {
	candidate := base
	for s := 0; s < e.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return model.CouplingParams{}, err
		}
		name := names[e.randIntn(len(names))]
		v, _ := candidate.Get(name)
		spread := e.StepSize * perturbationRange * math.Pow(annealingFactor, float64(s))
		delta := (e.randFloat64()*2 - 1) * spread
		var err error
		if candidate, err = candidate.With(name, v+delta); err != nil {
			return model.CouplingParams{}, err
		}
	}
	return e.Space.Clamp(candidate), nil
}
