// Package cpg assembles the quadruped central pattern generator: four limb
// units with hysteretic switches, the fixed coupling topology, the global
// speed drive and optional damage injection.
package cpg

import (
	"context"
	"fmt"

	"quadcpg/internal/model"
	"quadcpg/internal/nn"
	"quadcpg/internal/solver"
)

// initStanceLimbs receive init_stance_position during the release window.
var initStanceLimbs = []int{2, 4}

// CPG is one assembled model. It owns its network and can be run once.
type CPG struct {
	params model.CouplingParams
	cfg    SimulationConfig
	net    *solver.Network

	limbs []*Limb
	speed *solver.Node

	switchMonitors []*solver.Monitor
	swingMonitors  []*solver.Monitor
	stanceMonitors []*solver.Monitor
	speedMonitor   *solver.Monitor
}

// Build validates params and cfg and assembles the model. Configuration
// errors are reported before anything is simulated.
func Build(params model.CouplingParams, cfg SimulationConfig) (*CPG, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &CPG{
		params: params,
		cfg:    cfg,
		net: solver.NewNetwork(solver.Config{
			Dt:    cfg.Dt,
			Seed:  cfg.Seed,
			Noise: cfg.Noise,
		}),
	}

	for i := 0; i < LimbCount; i++ {
		c.limbs = append(c.limbs, newLimb(c.net, i+1, initialPhases[i], params, cfg))
	}
	c.wireCoupling()
	c.wireInitStance()
	c.wireSpeed()
	c.wireDamage()
	c.wireMonitors()

	if err := c.net.Err(); err != nil {
		return nil, fmt.Errorf("assemble cpg: %w", err)
	}
	return c, nil
}

// Limbs returns the limb units ordered by index.
func (c *CPG) Limbs() []*Limb {
	return append([]*Limb(nil), c.limbs...)
}

// Config returns the effective simulation configuration.
func (c *CPG) Config() SimulationConfig {
	return c.cfg
}

func (c *CPG) limb(index int) *Limb {
	return c.limbs[index-1]
}

func (c *CPG) wireCoupling() {
	tau := c.cfg.Tau
	for _, edge := range Edges() {
		from, to := c.limb(edge.From), c.limb(edge.To)
		w := edge.Class.Weights(c.params)
		c.net.Connect(from.Swing, to.Swing, coupling(w.SwSw, tau), tau)
		c.net.Connect(from.Swing, to.Stance, coupling(w.SwSt, tau), tau)
		c.net.Connect(from.Stance, to.Swing, coupling(w.StSw, tau), tau)
		c.net.Connect(from.Stance, to.Stance, coupling(w.StSt, tau), tau)
	}
}

func coupling(weight, tau float64) solver.Transfer {
	return func(x float64) float64 {
		return nn.CouplingTransfer(weight, tau, x)
	}
}

func (c *CPG) wireInitStance() {
	position := c.params.InitStancePosition
	release := c.cfg.Gate.Release
	node := c.net.AddNode("init_stance", func(t float64) float64 {
		if t < release {
			return position
		}
		return 0
	})
	for _, index := range initStanceLimbs {
		c.net.Connect(node, c.limb(index).Stance, solver.Identity, c.cfg.Tau)
	}
}

func (c *CPG) wireSpeed() {
	speed := c.cfg.Speed.speedFunc(c.cfg.Duration)
	c.speed = c.net.AddNode("speed", speed)

	tau := c.cfg.Tau
	swingGain, stanceGain := c.params.SpeedSwing, c.params.SpeedStance
	for _, limb := range c.limbs {
		c.net.Connect(c.speed, limb.Swing, func(s float64) float64 {
			return nn.SpeedDrive(swingGain, tau, s)
		}, tau)
		c.net.Connect(c.speed, limb.Stance, func(s float64) float64 {
			return nn.SpeedDrive(stanceGain, tau, s)
		}, tau)
	}
}

func (c *CPG) wireDamage() {
	if c.cfg.Damage == nil {
		return
	}
	d := c.cfg.Damage.damage()
	signal := d.Signal
	label := "dmg"
	if signal == nil {
		signal = func(t float64) float64 { return t }
		label = "sim_time"
	}
	source := c.net.AddNode(label, signal)

	limbs := d.Limbs
	if len(limbs) == 0 {
		for _, limb := range c.limbs {
			limbs = append(limbs, limb.Index)
		}
	}
	neurons, duration, fn := c.cfg.StateNeurons, c.cfg.Duration, d.Fn
	for _, index := range limbs {
		for _, phase := range []model.Phase{model.PhaseSwing, model.PhaseStance} {
			tag := model.PhaseTag{Limb: index, Phase: phase}
			c.net.ConnectNeurons(source, c.limb(index).Population(phase), func(x float64) []float64 {
				return fn(x, neurons, duration, tag)
			}, 0)
		}
	}
}

func (c *CPG) wireMonitors() {
	tau := c.cfg.Tau
	for _, limb := range c.limbs {
		c.switchMonitors = append(c.switchMonitors, c.net.Monitor(limb.Switch.S, tau))
		c.swingMonitors = append(c.swingMonitors, c.net.Monitor(limb.Swing, tau))
		c.stanceMonitors = append(c.stanceMonitors, c.net.Monitor(limb.Stance, tau))
	}
	c.speedMonitor = c.net.Monitor(c.speed, tau)
}

// Run simulates the configured duration and returns the monitored trace.
func (c *CPG) Run(ctx context.Context) (model.SimulationTrace, error) {
	if err := c.net.Run(ctx, c.cfg.Duration); err != nil {
		return model.SimulationTrace{}, fmt.Errorf("simulate cpg: %w", err)
	}
	trace := model.SimulationTrace{
		SampleRate: 1 / c.cfg.Dt,
		Duration:   c.cfg.Duration,
		Speed:      c.speedMonitor.Data(),
	}
	for i, limb := range c.limbs {
		trace.Limbs = append(trace.Limbs, model.LimbTrace{
			Limb:   limb.Index,
			Switch: c.switchMonitors[i].Data(),
			Swing:  c.swingMonitors[i].Data(),
			Stance: c.stanceMonitors[i].Data(),
		})
	}
	return trace, nil
}

// Simulate builds a model for params and runs it.
func Simulate(ctx context.Context, params model.CouplingParams, cfg SimulationConfig) (model.SimulationTrace, error) {
	c, err := Build(params, cfg)
	if err != nil {
		return model.SimulationTrace{}, err
	}
	return c.Run(ctx)
}
