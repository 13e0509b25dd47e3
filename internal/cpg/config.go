package cpg

import (
	"fmt"
	"math"

	"quadcpg/internal/model"
)

const (
	DefaultDuration     = 80.0
	DefaultTau          = 0.01
	DefaultStateNeurons = 300
	DefaultRadius       = 1.0
	DefaultSeed         = 42
	DefaultSampleRate   = 1000.0
)

// SpeedFunc returns the global speed drive in [0,1] at elapsed time t.
type SpeedFunc func(t float64) float64

// SpeedMode selects the speed source. Exactly one of Ramp, Constant or
// Custom.
type SpeedMode interface {
	speedFunc(duration float64) SpeedFunc
}

// Ramp rises linearly from 0 to 1 over Duration seconds. A zero Duration
// uses the simulation duration.
type Ramp struct {
	Duration float64
}

func (r Ramp) speedFunc(duration float64) SpeedFunc {
	d := r.Duration
	if d <= 0 {
		d = duration
	}
	return func(t float64) float64 { return t / d }
}

// Constant holds the speed at Value.
type Constant struct {
	Value float64
}

func (c Constant) speedFunc(float64) SpeedFunc {
	return func(float64) float64 { return c.Value }
}

// Custom delegates to a caller-provided function of elapsed time.
type Custom struct {
	Fn SpeedFunc
}

func (c Custom) speedFunc(float64) SpeedFunc {
	return c.Fn
}

// DamageMode selects damage injection. A nil DamageMode means no damage.
type DamageMode interface {
	damage() Scheduled
}

// Scheduled injects Fn into every swing and stance population of Limbs
// (all limbs when empty). Signal feeds the damage function; nil uses the
// elapsed simulation time.
type Scheduled struct {
	Fn     DamageFunc
	Signal func(t float64) float64
	Limbs  []int
}

func (s Scheduled) damage() Scheduled { return s }

// GateConfig holds the switch knobs. They only need to be large relative to
// the integrator time constant.
type GateConfig struct {
	// Push is the magnitude injected into the switch by a firing detector.
	Push float64 `yaml:"push" json:"push"`
	// Inhibit is the per-neuron current silencing the inactive antagonist.
	Inhibit float64 `yaml:"inhibit" json:"inhibit"`
	// Intercept is the detector firing threshold on state-Offset.
	Intercept float64 `yaml:"intercept" json:"intercept"`
	Offset    float64 `yaml:"offset" json:"offset"`
	// Release is when the initialization pulses stop.
	Release float64 `yaml:"release" json:"release"`
}

// DefaultGateConfig returns the reference switch knobs.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Push:      100,
		Inhibit:   -100,
		Intercept: 0.4,
		Offset:    0.5,
		Release:   0.01,
	}
}

// SimulationConfig describes one simulation run.
type SimulationConfig struct {
	Duration     float64
	Dt           float64
	Tau          float64
	StateNeurons int
	Radius       float64
	Seed         int64
	Noise        float64
	Speed        SpeedMode
	Damage       DamageMode
	Gate         GateConfig
}

// DefaultSimulationConfig returns an 80 second ramped run at 1000 Hz.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Duration:     DefaultDuration,
		Dt:           1 / DefaultSampleRate,
		Tau:          DefaultTau,
		StateNeurons: DefaultStateNeurons,
		Radius:       DefaultRadius,
		Seed:         DefaultSeed,
		Gate:         DefaultGateConfig(),
	}
}

// SampleRate returns samples per second of the resulting trace.
func (c SimulationConfig) SampleRate() float64 {
	return 1 / c.withDefaults().Dt
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	def := DefaultSimulationConfig()
	if c.Duration == 0 {
		c.Duration = def.Duration
	}
	if c.Dt == 0 {
		c.Dt = def.Dt
	}
	if c.Tau == 0 {
		c.Tau = def.Tau
	}
	if c.StateNeurons == 0 {
		c.StateNeurons = def.StateNeurons
	}
	if c.Radius == 0 {
		c.Radius = def.Radius
	}
	if c.Gate == (GateConfig{}) {
		c.Gate = def.Gate
	}
	if c.Speed == nil {
		c.Speed = Ramp{}
	}
	return c
}

// Validate fails fast on malformed configuration.
func (c SimulationConfig) Validate() error {
	c = c.withDefaults()
	checks := []struct {
		field string
		value float64
		ok    bool
	}{
		{"duration", c.Duration, c.Duration > 0},
		{"dt", c.Dt, c.Dt > 0 && c.Dt <= c.Duration},
		{"tau", c.Tau, c.Tau > 0},
		{"radius", c.Radius, c.Radius > 0},
		{"noise", c.Noise, c.Noise >= 0},
		{"gate.push", c.Gate.Push, c.Gate.Push > 0},
		{"gate.inhibit", c.Gate.Inhibit, c.Gate.Inhibit < 0},
		{"gate.release", c.Gate.Release, c.Gate.Release >= 0},
	}
	for _, check := range checks {
		if math.IsNaN(check.value) || math.IsInf(check.value, 0) || !check.ok {
			return &model.ConfigurationError{Field: check.field, Reason: fmt.Sprintf("invalid value %v", check.value)}
		}
	}
	if c.StateNeurons <= 0 {
		return &model.ConfigurationError{Field: "state_neurons", Reason: "must be > 0"}
	}
	if custom, ok := c.Speed.(Custom); ok && custom.Fn == nil {
		return &model.ConfigurationError{Field: "speed", Reason: "custom speed requires a function"}
	}
	if c.Damage != nil {
		d := c.Damage.damage()
		if d.Fn == nil {
			return &model.ConfigurationError{Field: "damage", Reason: "scheduled damage requires a function"}
		}
		for _, limb := range d.Limbs {
			if limb < 1 || limb > LimbCount {
				return &model.ConfigurationError{Field: "damage.limbs", Reason: fmt.Sprintf("unknown limb %d", limb)}
			}
		}
	}
	return nil
}
