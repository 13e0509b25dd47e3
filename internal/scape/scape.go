// Package scape wraps simulation and scoring into the evaluation surface
// called by search drivers.
package scape

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"quadcpg/internal/cpg"
	"quadcpg/internal/fitness"
	"quadcpg/internal/gait"
	"quadcpg/internal/model"
	"quadcpg/internal/scapeid"
)

// Trace carries evaluation diagnostics next to the report.
type Trace map[string]any

// Trace keys.
const (
	TraceSimulation = "simulation"
	TraceCycles     = "cycles"
	TraceReason     = "degenerate_reason"
	TraceScape      = "scape"
)

// Scape scores one parameter vector. Degenerate traces are reported as the
// penalty with a nil error; the error is reserved for configuration
// failures and cancellation.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, params model.CouplingParams) (model.FitnessReport, Trace, error)
}

type scorer func(model.SimulationTrace) (model.FitnessReport, error)

func evaluate(
	ctx context.Context,
	name string,
	sim cpg.SimulationConfig,
	params model.CouplingParams,
	logger *zap.Logger,
	score scorer,
) (model.FitnessReport, Trace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	simTrace, err := cpg.Simulate(ctx, params, sim)
	if err != nil {
		return model.FitnessReport{}, nil, fmt.Errorf("%s: %w", name, err)
	}

	trace := Trace{
		TraceScape:      name,
		TraceSimulation: simTrace,
		TraceCycles:     cycleCounts(simTrace),
	}
	report, err := score(simTrace)
	switch {
	case errors.Is(err, fitness.ErrDegenerateTrace):
		logger.Warn("degenerate trace scored with penalty",
			zap.String("scape", name),
			zap.Float64("error", report.Error),
			zap.Error(err),
		)
		trace[TraceReason] = err.Error()
		return report, trace, nil
	case err != nil:
		return model.FitnessReport{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("evaluated",
		zap.String("scape", name),
		zap.Float64("error", report.Error),
		zap.Float64("error_phase", report.Phase),
		zap.Float64("error_speed", report.Speed),
		zap.Float64("error_symmetry1", report.Symmetry1),
		zap.Float64("error_symmetry2", report.Symmetry2),
	)
	return report, trace, nil
}

func cycleCounts(trace model.SimulationTrace) map[int]int {
	out := make(map[int]int, len(trace.Limbs))
	for limb, cycles := range gait.ExtractTrace(trace) {
		out[limb] = cycles.Pairs()
	}
	return out
}

// Names lists the registered scapes.
func Names() []string {
	names := []string{QuadrupedName, TwoLimbName}
	sort.Strings(names)
	return names
}

// New returns the scape registered under name.
func New(name string, sim cpg.SimulationConfig, logger *zap.Logger) (Scape, error) {
	switch scapeid.Normalize(name) {
	case "", QuadrupedName:
		return QuadrupedScape{Sim: sim, Logger: logger}, nil
	case TwoLimbName:
		return TwoLimbScape{Sim: sim, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported scape: %s", name)
	}
}

// SimulationOf returns the simulation trace stored in t, if any.
func SimulationOf(t Trace) (model.SimulationTrace, bool) {
	sim, ok := t[TraceSimulation].(model.SimulationTrace)
	return sim, ok
}
