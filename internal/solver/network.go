// Package solver integrates networks of scalar populations connected by
// low-pass synapses. It is the rate-level stand-in for a population-coded
// simulator: every population decodes its filtered input directly, clipped
// to its radius and scaled by the fraction of neurons that are not silenced
// by neuron-level inputs.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	// DefaultDt is the integration step in seconds.
	DefaultDt = 0.001
	// DefaultSilenceCutoff is the neuron input current at or below which a
	// neuron stops contributing to its population.
	DefaultSilenceCutoff = -1.0

	ctxCheckInterval = 1000
)

var ErrNetworkFinalized = errors.New("network already running")

// Config controls integration of a Network.
type Config struct {
	Dt            float64
	Seed          int64
	Noise         float64
	SilenceCutoff float64
}

// Signal is anything a connection or monitor can read from.
type Signal interface {
	Label() string
	Value() float64
}

// Transfer maps a source value to a scalar contribution.
type Transfer func(x float64) float64

// NeuronTransfer maps a source value to one input current per target neuron.
type NeuronTransfer func(x float64) []float64

// Identity passes its input through unchanged.
func Identity(x float64) float64 { return x }

type connection struct {
	src      Signal
	dst      *Ensemble
	fn       Transfer
	decay    float64
	state    float64
	filtered bool
}

type neuronConnection struct {
	src      Signal
	dst      *Ensemble
	fn       NeuronTransfer
	decay    float64
	state    []float64
	filtered bool
}

// Network is a set of ensembles, nodes, connections and monitors integrated
// with a fixed step. A network is single-threaded and must not be shared.
type Network struct {
	cfg  Config
	rand *rand.Rand

	ensembles []*Ensemble
	nodes     []*Node
	conns     []*connection
	neurons   []*neuronConnection
	monitors    []*Monitor

	time    float64
	steps   int
	started bool
	err     error
}

// NewNetwork returns an empty network.
func NewNetwork(cfg Config) *Network {
	if cfg.Dt <= 0 {
		cfg.Dt = DefaultDt
	}
	if cfg.SilenceCutoff == 0 {
		cfg.SilenceCutoff = DefaultSilenceCutoff
	}
	if cfg.Noise < 0 {
		cfg.Noise = 0
	}
	return &Network{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Dt returns the integration step.
func (n *Network) Dt() float64 { return n.cfg.Dt }

// Time returns the simulated time in seconds.
func (n *Network) Time() float64 { return n.time }

// Err returns the first construction error, if any.
func (n *Network) Err() error { return n.err }

func (n *Network) fail(err error) {
	if n.err == nil {
		n.err = err
	}
}

func (n *Network) mutable(op string) bool {
	if n.started {
		n.fail(fmt.Errorf("%s: %w", op, ErrNetworkFinalized))
		return false
	}
	return true
}

// AddEnsemble adds a population described by spec.
func (n *Network) AddEnsemble(spec EnsembleSpec) *Ensemble {
	e := newEnsemble(spec)
	if !n.mutable("add ensemble " + spec.Label) {
		return e
	}
	n.ensembles = append(n.ensembles, e)
	return e
}

// AddNode adds an exogenous input evaluated at every step.
func (n *Network) AddNode(label string, fn func(t float64) float64) *Node {
	node := &Node{label: label, fn: fn}
	if fn == nil {
		n.fail(fmt.Errorf("node %s: function is required", label))
		return node
	}
	if !n.mutable("add node " + label) {
		return node
	}
	n.nodes = append(n.nodes, node)
	return node
}

// Connect adds fn(src) to the input of dst through a low-pass synapse with
// time constant synapse. A synapse of zero applies the value directly.
func (n *Network) Connect(src Signal, dst *Ensemble, fn Transfer, synapse float64) {
	if src == nil || dst == nil {
		n.fail(errors.New("connect: source and target are required"))
		return
	}
	if fn == nil {
		fn = Identity
	}
	if synapse < 0 {
		n.fail(fmt.Errorf("connect %s->%s: synapse must be >= 0", src.Label(), dst.Label()))
		return
	}
	if !n.mutable("connect " + src.Label() + "->" + dst.Label()) {
		return
	}
	n.conns = append(n.conns, &connection{
		src:      src,
		dst:      dst,
		fn:       fn,
		decay:    decayFor(synapse, n.cfg.Dt),
		filtered: synapse > 0,
	})
}

// ConnectNeurons adds fn(src) to the per-neuron input currents of dst.
func (n *Network) ConnectNeurons(src Signal, dst *Ensemble, fn NeuronTransfer, synapse float64) {
	if src == nil || dst == nil || fn == nil {
		n.fail(errors.New("connect neurons: source, target and function are required"))
		return
	}
	if synapse < 0 {
		n.fail(fmt.Errorf("connect neurons %s->%s: synapse must be >= 0", src.Label(), dst.Label()))
		return
	}
	if !n.mutable("connect neurons " + src.Label() + "->" + dst.Label()) {
		return
	}
	n.neurons = append(n.neurons, &neuronConnection{
		src:      src,
		dst:      dst,
		fn:       fn,
		decay:    decayFor(synapse, n.cfg.Dt),
		state:    make([]float64, dst.spec.Neurons),
		filtered: synapse > 0,
	})
}

// Monitor records src at every step, low-pass filtered by synapse when > 0.
func (n *Network) Monitor(src Signal, synapse float64) *Monitor {
	p := &Monitor{src: src, decay: decayFor(synapse, n.cfg.Dt), filtered: synapse > 0}
	if src == nil {
		n.fail(errors.New("monitor: source is required"))
		return p
	}
	if !n.mutable("monitor " + src.Label()) {
		return p
	}
	n.monitors = append(n.monitors, p)
	return p
}

// Run advances the network by duration seconds. The context is checked
// periodically so a caller can abandon a long run.
func (n *Network) Run(ctx context.Context, duration float64) error {
	if n.err != nil {
		return n.err
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("duration must be finite and >= 0, got %v", duration)
	}
	n.started = true

	steps := int(math.Round(duration / n.cfg.Dt))
	for _, p := range n.monitors {
		p.grow(steps)
	}
	for i := 0; i < steps; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n.step()
	}
	return nil
}

func (n *Network) step() {
	n.steps++
	n.time = float64(n.steps) * n.cfg.Dt

	for _, node := range n.nodes {
		node.out = node.fn(n.time)
	}

	// All transfers read the values decoded at the previous step so the
	// update is synchronous across the network.
	for _, c := range n.conns {
		target := c.fn(c.src.Value())
		if c.filtered {
			c.state = c.decay*c.state + (1-c.decay)*target
		} else {
			c.state = target
		}
	}
	for _, c := range n.neurons {
		target := c.fn(c.src.Value())
		for i := range c.state {
			v := 0.0
			if i < len(target) {
				v = target[i]
			}
			if c.filtered {
				c.state[i] = c.decay*c.state[i] + (1-c.decay)*v
			} else {
				c.state[i] = v
			}
		}
	}

	for _, e := range n.ensembles {
		e.input = 0
		for i := range e.current {
			e.current[i] = 0
		}
	}
	for _, c := range n.conns {
		c.dst.input += c.state
	}
	for _, c := range n.neurons {
		for i, v := range c.state {
			c.dst.current[i] += v
		}
	}
	for _, e := range n.ensembles {
		noise := 0.0
		if e.spec.Noisy && n.cfg.Noise > 0 {
			noise = n.rand.NormFloat64() * n.cfg.Noise
		}
		e.decode(n.cfg.SilenceCutoff, noise)
	}

	for _, p := range n.monitors {
		p.sample()
	}
}

// decayFor returns the zero-order-hold decay factor of a first-order
// low-pass filter with time constant tau sampled every dt.
func decayFor(tau, dt float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-dt / tau)
}
