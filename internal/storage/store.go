package storage

import (
	"context"

	"quadcpg/internal/model"
)

// Store persists search runs, their trials and damage sweeps.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTrial(ctx context.Context, trial model.TrialRecord) error
	GetTrial(ctx context.Context, id string) (model.TrialRecord, bool, error)
	ListTrials(ctx context.Context, runID string) ([]model.TrialRecord, error)
	SaveSweep(ctx context.Context, runID string, points []model.SweepPointRecord) error
	GetSweep(ctx context.Context, runID string) ([]model.SweepPointRecord, bool, error)
}
