package storage

import (
	"context"
	"testing"

	"quadcpg/internal/model"
)

func sampleRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              id,
		Scape:           "quadruped",
		Algorithm:       "random_search",
		Samples:         3,
		Seed:            42,
		BestParams:      model.ReferenceParams(),
		BestReport:      model.FitnessReport{Error: 12.5, Phase: 2},
		CreatedAt:       createdAt,
	}
}

func sampleTrial(id, runID string, index int, errValue float64) model.TrialRecord {
	return model.TrialRecord{
		VersionedRecord: Stamp(),
		ID:              id,
		RunID:           runID,
		Index:           index,
		Params:          model.ReferenceParams(),
		Report:          model.FitnessReport{Error: errValue},
		CreatedAt:       "2026-01-01T00:00:00Z",
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.SaveRun(ctx, sampleRun("run-b", "2026-01-02T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("run-a", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.BestParams != model.ReferenceParams() || run.BestReport.Error != 12.5 {
		t.Fatalf("unexpected run %+v", run)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("expected runs ordered by creation, got %+v", runs)
	}

	for i, id := range []string{"t2", "t0", "t1"} {
		index := []int{2, 0, 1}[i]
		if err := store.SaveTrial(ctx, sampleTrial(id, "run-a", index, float64(index))); err != nil {
			t.Fatalf("save trial: %v", err)
		}
	}
	if err := store.SaveTrial(ctx, sampleTrial("other", "run-b", 0, 1)); err != nil {
		t.Fatalf("save trial: %v", err)
	}
	trials, err := store.ListTrials(ctx, "run-a")
	if err != nil {
		t.Fatalf("list trials: %v", err)
	}
	if len(trials) != 3 {
		t.Fatalf("expected 3 trials for run-a, got %d", len(trials))
	}
	for i, trial := range trials {
		if trial.Index != i {
			t.Fatalf("expected trials ordered by index, got %+v", trials)
		}
	}
	trial, ok, err := store.GetTrial(ctx, "t1")
	if err != nil || !ok || trial.Report.Error != 1 {
		t.Fatalf("get trial: %+v ok=%t err=%v", trial, ok, err)
	}

	points := []model.SweepPointRecord{
		{Count: 0, Speed: 0.5, Target: "swing", Seed: 42, Report: model.FitnessReport{Phase: 1}},
		{Count: 5, Speed: 0.5, Target: "swing", Seed: 42, Report: model.FitnessReport{Phase: 3}},
	}
	if err := store.SaveSweep(ctx, "run-a", points); err != nil {
		t.Fatalf("save sweep: %v", err)
	}
	got, ok, err := store.GetSweep(ctx, "run-a")
	if err != nil || !ok || len(got) != 2 || got[1] != points[1] {
		t.Fatalf("get sweep: %+v ok=%t err=%v", got, ok, err)
	}
	if _, ok, err := store.GetSweep(ctx, "run-b"); ok || err != nil {
		t.Fatalf("expected missing sweep, ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), sampleRun("r", "")); err == nil {
		t.Fatal("expected error before init")
	}
}

func TestMemorySweepIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Init(ctx)
	points := []model.SweepPointRecord{{Count: 1}}
	if err := store.SaveSweep(ctx, "r", points); err != nil {
		t.Fatalf("save sweep: %v", err)
	}
	points[0].Count = 9
	got, _, _ := store.GetSweep(ctx, "r")
	if got[0].Count != 1 {
		t.Fatalf("stored sweep aliased caller slice")
	}
}
