package scape

import (
	"context"

	"go.uber.org/zap"

	"quadcpg/internal/cpg"
	"quadcpg/internal/fitness"
	"quadcpg/internal/model"
	"quadcpg/internal/scapeid"
)

const TwoLimbName = scapeid.TwoLimb

// TwoLimbScape scores only the front pair over the leading EvalTime share
// of the run. A zero EvalTime scores the whole trace.
type TwoLimbScape struct {
	Sim      cpg.SimulationConfig
	EvalTime float64
	Logger   *zap.Logger
}

func (TwoLimbScape) Name() string {
	return TwoLimbName
}

func (s TwoLimbScape) Evaluate(ctx context.Context, params model.CouplingParams) (model.FitnessReport, Trace, error) {
	evalTime := s.EvalTime
	return evaluate(ctx, TwoLimbName, s.Sim, params, s.Logger, func(trace model.SimulationTrace) (model.FitnessReport, error) {
		return fitness.TwoLimb(trace, evalTime)
	})
}
