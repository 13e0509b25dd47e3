package tuning

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"quadcpg/internal/cpg"
	"quadcpg/internal/model"
)

// DamageSweep scores a fixed parameter vector over a grid of silenced
// neuron counts, constant speeds and damaged phases.
type DamageSweep struct {
	Params  model.CouplingParams
	Sim     cpg.SimulationConfig
	Counts  []int
	Speeds  []float64
	Targets []cpg.DamageTarget
	// Damage is applied while WindowFrom <= t <= WindowTo.
	WindowFrom float64
	WindowTo   float64
	// Repeats reruns every point with consecutive seeds.
	Repeats int
	Workers int
	Logger  *zap.Logger
}

// SweepPoint is one scored grid cell.
type SweepPoint struct {
	Count  int                 `json:"disable_count"`
	Speed  float64             `json:"speed"`
	Target cpg.DamageTarget    `json:"disable_phase"`
	Seed   int64               `json:"seed"`
	Report model.FitnessReport `json:"report"`
}

// SweepFitnessFn scores one simulation configuration.
type SweepFitnessFn func(ctx context.Context, params model.CouplingParams, sim cpg.SimulationConfig) (model.FitnessReport, error)

// DefaultDamageSweep is the 30 second grid of counts 0..25, speeds 0..1 in
// steps of 1/50, swing and stance, damaged from 5 to 25 seconds.
func DefaultDamageSweep(params model.CouplingParams) DamageSweep {
	sim := cpg.DefaultSimulationConfig()
	sim.Duration = 30
	sweep := DamageSweep{
		Params:     params,
		Sim:        sim,
		Targets:    []cpg.DamageTarget{cpg.TargetSwing, cpg.TargetStance},
		WindowFrom: 5,
		WindowTo:   25,
		Repeats:    1,
	}
	for c := 0; c <= 25; c++ {
		sweep.Counts = append(sweep.Counts, c)
	}
	for s := 0; s <= 50; s++ {
		sweep.Speeds = append(sweep.Speeds, float64(s)/50)
	}
	return sweep
}

// Points expands the grid in target, speed, count, repeat order.
func (s DamageSweep) Points() []SweepPoint {
	repeats := max(s.Repeats, 1)
	out := make([]SweepPoint, 0, len(s.Targets)*len(s.Speeds)*len(s.Counts)*repeats)
	for _, target := range s.Targets {
		for _, speed := range s.Speeds {
			for _, count := range s.Counts {
				for r := 0; r < repeats; r++ {
					out = append(out, SweepPoint{Count: count, Speed: speed, Target: target, Seed: s.Sim.Seed + int64(r)})
				}
			}
		}
	}
	return out
}

func (s DamageSweep) config(p SweepPoint) cpg.SimulationConfig {
	sim := s.Sim
	sim.Seed = p.Seed
	sim.Speed = cpg.Constant{Value: p.Speed}
	sim.Damage = cpg.Scheduled{Fn: cpg.WindowDamage(p.Count, p.Target, s.WindowFrom, s.WindowTo)}
	return sim
}

func (s DamageSweep) Run(ctx context.Context, fitness SweepFitnessFn) ([]SweepPoint, error) {
	if fitness == nil {
		return nil, errors.New("fitness function is required")
	}
	if len(s.Counts) == 0 || len(s.Speeds) == 0 || len(s.Targets) == 0 {
		return nil, errors.New("sweep grid must not be empty")
	}
	if s.WindowTo < s.WindowFrom {
		return nil, errors.New("damage window must end after it starts")
	}
	for _, count := range s.Counts {
		if count < 0 {
			return nil, errors.New("disable counts must be >= 0")
		}
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	points := s.Points()
	logger.Info("damage sweep started", zap.Int("points", len(points)), zap.Int("workers", s.Workers))
	out, err := runPool(ctx, s.Workers, points, func(ctx context.Context, _ int, p SweepPoint) (SweepPoint, error) {
		report, err := fitness(ctx, s.Params, s.config(p))
		if err != nil {
			return SweepPoint{}, err
		}
		p.Report = report
		logger.Debug("sweep point",
			zap.Int("disable_count", p.Count),
			zap.Float64("speed", p.Speed),
			zap.String("disable_phase", string(p.Target)),
			zap.Float64("error_phase", report.Phase),
		)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("damage sweep finished", zap.Int("points", len(out)))
	return out, nil
}
