package tuning

import (
	"context"

	"quadcpg/internal/model"
)

// FitnessFn scores one parameter vector. Lower Error is better.
type FitnessFn func(ctx context.Context, params model.CouplingParams) (model.FitnessReport, error)

// Trial is one scored parameter vector.
type Trial struct {
	Index  int                  `json:"index"`
	ID     string               `json:"id"`
	Params model.CouplingParams `json:"params"`
	Report model.FitnessReport  `json:"report"`
}

// TrialFn observes finished trials. It is called from worker goroutines.
type TrialFn func(Trial)

type TuneReport struct {
	AttemptsPlanned      int  `json:"attempts_planned"`
	AttemptsExecuted     int  `json:"attempts_executed"`
	CandidateEvaluations int  `json:"candidate_evaluations"`
	AcceptedCandidates   int  `json:"accepted_candidates"`
	RejectedCandidates   int  `json:"rejected_candidates"`
	GoalReached          bool `json:"goal_reached"`
}

type Tuner interface {
	Name() string
	Tune(ctx context.Context, params model.CouplingParams, attempts int, fitness FitnessFn) (model.CouplingParams, TuneReport, error)
}
