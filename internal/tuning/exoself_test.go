package tuning

import (
	"context"
	"math/rand"
	"testing"

	"quadcpg/internal/model"
)

func TestExoselfReducesError(t *testing.T) {
	start := model.ReferenceParams()
	tuner := &Exoself{
		Rand:     rand.New(rand.NewSource(1)),
		Steps:    2,
		StepSize: 0.3,
		Space:    DefaultSearchSpace(),
		Workers:  2,
	}
	before, _ := bowl(context.Background(), start)
	tuned, report, err := tuner.Tune(context.Background(), start, 60, bowl)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	after, _ := bowl(context.Background(), tuned)
	if after.Error >= before.Error {
		t.Fatalf("expected lower error: before=%f after=%f", before.Error, after.Error)
	}
	if report.AttemptsExecuted != 60 || report.AcceptedCandidates+report.RejectedCandidates != 60 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.CandidateEvaluations != 61 {
		t.Fatalf("expected baseline plus one candidate per attempt, got %d", report.CandidateEvaluations)
	}
	if !DefaultSearchSpace().Contains(tuned) {
		t.Fatalf("tuned params left the search space: %+v", tuned)
	}
}

func TestExoselfStopsAtGoal(t *testing.T) {
	tuner := &Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 0.1, GoalError: 10}
	_, report, err := tuner.Tune(context.Background(), model.ReferenceParams(), 5, bowl)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	if !report.GoalReached || report.AttemptsExecuted != 0 {
		t.Fatalf("expected goal reached before any attempt, got %+v", report)
	}
}

func TestExoselfAllSelectionEvaluatesThreeBases(t *testing.T) {
	tuner := &Exoself{Rand: rand.New(rand.NewSource(3)), Steps: 1, StepSize: 0.1, CandidateSelection: CandidateSelectAll}
	_, report, err := tuner.Tune(context.Background(), model.ReferenceParams(), 4, bowl)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	if report.CandidateEvaluations != 1+4*3 {
		t.Fatalf("expected 13 evaluations, got %d", report.CandidateEvaluations)
	}
}

func TestExoselfInputValidation(t *testing.T) {
	p := model.ReferenceParams()
	ctx := context.Background()
	cases := map[string]*Exoself{
		"nil rand":       {Steps: 1, StepSize: 1},
		"no steps":       {Rand: rand.New(rand.NewSource(1)), StepSize: 1},
		"no step size":   {Rand: rand.New(rand.NewSource(1)), Steps: 1},
		"negative range": {Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1, PerturbationRange: -1},
		"bad selection":  {Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1, CandidateSelection: "lastgen"},
	}
	for name, tuner := range cases {
		if _, _, err := tuner.Tune(ctx, p, 1, bowl); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	ok := &Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1}
	if _, _, err := ok.Tune(ctx, p, 1, nil); err == nil {
		t.Fatal("expected missing fitness error")
	}
	out, report, err := ok.Tune(ctx, p, 0, bowl)
	if err != nil || out != p || report.CandidateEvaluations != 0 {
		t.Fatalf("expected zero attempts to be a no-op, got %+v %v", report, err)
	}
}

func TestRefineImprovesTopTrials(t *testing.T) {
	search := &RandomSearch{Rand: rand.New(rand.NewSource(5)), Space: DefaultSearchSpace(), Samples: 6}
	result, err := search.Search(context.Background(), bowl)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	refine := Refine{
		Tuner:    &Exoself{Rand: rand.New(rand.NewSource(6)), Steps: 1, StepSize: 0.2, Space: DefaultSearchSpace()},
		Policy:   RankDecayAttemptPolicy{Floor: 1},
		Attempts: 20,
		TopK:     2,
		Free:     4,
	}
	rounds, best, err := refine.Run(context.Background(), result.Trials, bowl)
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Report.AttemptsPlanned != 20 || rounds[1].Report.AttemptsPlanned != 10 {
		t.Fatalf("unexpected budgets %d/%d", rounds[0].Report.AttemptsPlanned, rounds[1].Report.AttemptsPlanned)
	}
	for _, r := range rounds {
		if r.Refined.Report.Error > r.Start.Report.Error {
			t.Fatalf("refinement made a trial worse: %f -> %f", r.Start.Report.Error, r.Refined.Report.Error)
		}
	}
	if best.Report.Error > result.Best.Report.Error {
		t.Fatalf("refined best %f worse than search best %f", best.Report.Error, result.Best.Report.Error)
	}
	if _, _, err := (Refine{}).Run(context.Background(), result.Trials, bowl); err == nil {
		t.Fatal("expected missing tuner error")
	}
}
