package scape

import (
	"context"

	"go.uber.org/zap"

	"quadcpg/internal/cpg"
	"quadcpg/internal/fitness"
	"quadcpg/internal/model"
	"quadcpg/internal/scapeid"
)

const QuadrupedName = scapeid.Quadruped

// QuadrupedScape simulates all four limbs and scores them together.
type QuadrupedScape struct {
	Sim    cpg.SimulationConfig
	Logger *zap.Logger
}

func (QuadrupedScape) Name() string {
	return QuadrupedName
}

func (s QuadrupedScape) Evaluate(ctx context.Context, params model.CouplingParams) (model.FitnessReport, Trace, error) {
	return evaluate(ctx, QuadrupedName, s.Sim, params, s.Logger, fitness.Quadruped)
}
