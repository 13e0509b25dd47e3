package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"quadcpg/internal/cpg"
	"quadcpg/internal/model"
	"quadcpg/internal/stats"
	"quadcpg/internal/tuning"
)

// ExperimentConfig is the YAML experiment file. Values absent from the file
// keep their defaults; command flags override both.
type ExperimentConfig struct {
	Scape      string             `yaml:"scape"`
	ParamsFile string             `yaml:"params_file"`
	Params     map[string]float64 `yaml:"params"`
	EvalTime   float64            `yaml:"eval_time"`
	Simulation SimulationSection  `yaml:"simulation"`
	Search     SearchSection      `yaml:"search"`
	Refine     RefineSection      `yaml:"refine"`
	Sweep      SweepSection       `yaml:"sweep"`
}

type SimulationSection struct {
	Duration     float64        `yaml:"duration"`
	Dt           float64        `yaml:"dt"`
	Tau          float64        `yaml:"tau"`
	StateNeurons int            `yaml:"state_neurons"`
	Radius       float64        `yaml:"radius"`
	Seed         int64          `yaml:"seed"`
	Noise        float64        `yaml:"noise"`
	Speed        SpeedSection   `yaml:"speed"`
	Damage       DamageSection  `yaml:"damage"`
	Gate         cpg.GateConfig `yaml:"gate"`
}

// SpeedSection selects ramp or constant speed.
type SpeedSection struct {
	Mode         string  `yaml:"mode"`
	Value        float64 `yaml:"value"`
	RampDuration float64 `yaml:"ramp_duration"`
}

// DamageSection selects none, progressive, window or external damage.
// External damage follows Steps: from each step's time on, Count neurons
// stay silenced until the next step.
type DamageSection struct {
	Mode   string       `yaml:"mode"`
	Count  int          `yaml:"count"`
	Target string       `yaml:"target"`
	From   float64      `yaml:"from"`
	To     float64      `yaml:"to"`
	Limbs  []int        `yaml:"limbs"`
	Steps  []DamageStep `yaml:"steps"`
}

type DamageStep struct {
	At    float64 `yaml:"at"`
	Count int     `yaml:"count"`
}

// stepSignal returns the silenced-neuron count in effect at t.
func stepSignal(steps []DamageStep) func(t float64) float64 {
	sorted := append([]DamageStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return func(t float64) float64 {
		level := 0.0
		for _, step := range sorted {
			if step.At > t {
				break
			}
			level = float64(step.Count)
		}
		return level
	}
}

type SearchSection struct {
	Samples   int                `yaml:"samples"`
	Seed      int64              `yaml:"seed"`
	Workers   int                `yaml:"workers"`
	WarmStart bool               `yaml:"warm_start"`
	Space     tuning.SearchSpace `yaml:"space"`
}

type RefineSection struct {
	Enabled           bool    `yaml:"enabled"`
	TopK              int     `yaml:"top_k"`
	Attempts          int     `yaml:"attempts"`
	Policy            string  `yaml:"policy"`
	PolicyParam       float64 `yaml:"policy_param"`
	Steps             int     `yaml:"steps"`
	StepSize          float64 `yaml:"step_size"`
	PerturbationRange float64 `yaml:"perturbation_range"`
	AnnealingFactor   float64 `yaml:"annealing_factor"`
	MinImprovement    float64 `yaml:"min_improvement"`
	Selection         string  `yaml:"selection"`
}

type SweepSection struct {
	Duration   float64   `yaml:"duration"`
	Counts     []int     `yaml:"counts"`
	Speeds     []float64 `yaml:"speeds"`
	Targets    []string  `yaml:"targets"`
	WindowFrom *float64  `yaml:"window_from"`
	WindowTo   *float64  `yaml:"window_to"`
	Repeats    int       `yaml:"repeats"`
	Workers    int       `yaml:"workers"`
}

func defaultExperimentConfig() ExperimentConfig {
	sim := cpg.DefaultSimulationConfig()
	return ExperimentConfig{
		Scape:    "quadruped",
		EvalTime: 60,
		Simulation: SimulationSection{
			Duration:     sim.Duration,
			Dt:           sim.Dt,
			Tau:          sim.Tau,
			StateNeurons: sim.StateNeurons,
			Radius:       sim.Radius,
			Seed:         sim.Seed,
			Speed:        SpeedSection{Mode: "ramp"},
			Damage:       DamageSection{Mode: "none"},
			Gate:         sim.Gate,
		},
		Search: SearchSection{
			Samples:   100,
			Seed:      1,
			Workers:   1,
			WarmStart: true,
		},
		Refine: RefineSection{
			TopK:      1,
			Attempts:  3,
			Policy:    "fixed",
			Steps:     5,
			StepSize:  0.1,
			Selection: tuning.CandidateSelectBestSoFar,
		},
		Sweep: SweepSection{Duration: 30, Repeats: 1, Workers: 1},
	}
}

// loadExperimentConfig overlays the YAML file at path on the defaults.
func loadExperimentConfig(path string) (ExperimentConfig, error) {
	cfg := defaultExperimentConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ExperimentConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ExperimentConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// CouplingParams resolves the reference set, then params_file, then the
// inline params overlay.
func (c ExperimentConfig) CouplingParams() (model.CouplingParams, error) {
	params := model.ReferenceParams()
	if c.ParamsFile != "" {
		loaded, err := stats.ReadParams(c.ParamsFile)
		if err != nil {
			return model.CouplingParams{}, err
		}
		params = loaded
	}
	params, err := model.ParamsFromMap(params, c.Params)
	if err != nil {
		return model.CouplingParams{}, err
	}
	return params, params.Validate()
}

// SimulationConfig converts the simulation section.
func (c ExperimentConfig) SimulationConfig() (cpg.SimulationConfig, error) {
	s := c.Simulation
	sim := cpg.SimulationConfig{
		Duration:     s.Duration,
		Dt:           s.Dt,
		Tau:          s.Tau,
		StateNeurons: s.StateNeurons,
		Radius:       s.Radius,
		Seed:         s.Seed,
		Noise:        s.Noise,
		Gate:         s.Gate,
	}

	switch strings.ToLower(s.Speed.Mode) {
	case "", "ramp":
		sim.Speed = cpg.Ramp{Duration: s.Speed.RampDuration}
	case "constant":
		sim.Speed = cpg.Constant{Value: s.Speed.Value}
	default:
		return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.speed.mode", Reason: fmt.Sprintf("unsupported mode %q", s.Speed.Mode)}
	}

	d := s.Damage
	switch strings.ToLower(d.Mode) {
	case "", "none":
	case "progressive", "window":
		target, err := cpg.ParseDamageTarget(d.Target)
		if err != nil {
			return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.target", Reason: err.Error()}
		}
		if d.Count < 0 {
			return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.count", Reason: "must be >= 0"}
		}
		fn := cpg.ProgressiveDamage(d.Count, target)
		if strings.EqualFold(d.Mode, "window") {
			fn = cpg.WindowDamage(d.Count, target, d.From, d.To)
		}
		sim.Damage = cpg.Scheduled{Fn: fn, Limbs: d.Limbs}
	case "external":
		target, err := cpg.ParseDamageTarget(d.Target)
		if err != nil {
			return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.target", Reason: err.Error()}
		}
		if len(d.Steps) == 0 {
			return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.steps", Reason: "external damage needs at least one step"}
		}
		for _, step := range d.Steps {
			if step.Count < 0 {
				return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.steps", Reason: "count must be >= 0"}
			}
		}
		sim.Damage = cpg.Scheduled{Fn: cpg.ExternalDamage(target), Signal: stepSignal(d.Steps), Limbs: d.Limbs}
	default:
		return cpg.SimulationConfig{}, &model.ConfigurationError{Field: "simulation.damage.mode", Reason: fmt.Sprintf("unsupported mode %q", d.Mode)}
	}
	return sim, sim.Validate()
}
