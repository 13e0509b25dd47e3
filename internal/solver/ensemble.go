package solver

import (
	"quadcpg/internal/nn"
)

// EnsembleSpec describes one scalar population.
type EnsembleSpec struct {
	Label   string
	Neurons int
	// Radius bounds the represented value to [-Radius, Radius]. Zero means 1.
	Radius float64
	// Intercept turns the population into a threshold detector: it decodes
	// zero below Intercept and rises linearly to 1 at Radius.
	Intercept float64
	Detector  bool
	// Noisy adds the network's decode noise to this population.
	Noisy bool
}

// Ensemble is a population whose decoded value is read by connections and
// monitors.
type Ensemble struct {
	spec    EnsembleSpec
	input   float64
	current []float64
	active  float64
	out     float64
}

func newEnsemble(spec EnsembleSpec) *Ensemble {
	if spec.Neurons <= 0 {
		spec.Neurons = 1
	}
	if spec.Radius <= 0 {
		spec.Radius = 1
	}
	return &Ensemble{
		spec:    spec,
		current: make([]float64, spec.Neurons),
		active:  1,
	}
}

func (e *Ensemble) Label() string { return e.spec.Label }

// Value returns the decoded value at the last step.
func (e *Ensemble) Value() float64 { return e.out }

// Neurons returns the population size.
func (e *Ensemble) Neurons() int { return e.spec.Neurons }

// ActiveFraction returns the share of neurons not silenced at the last step.
func (e *Ensemble) ActiveFraction() float64 { return e.active }

func (e *Ensemble) decode(cutoff, noise float64) {
	alive := 0
	for _, c := range e.current {
		if c > cutoff {
			alive++
		}
	}
	e.active = float64(alive) / float64(len(e.current))

	var v float64
	if e.spec.Detector {
		v = nn.Rectify(e.input/e.spec.Radius, e.spec.Intercept)
	} else {
		v = nn.SaturationWithSpread(e.input+noise, e.spec.Radius)
	}
	e.out = v * e.active
}

// Node is an exogenous input computed from simulated time.
type Node struct {
	label string
	fn    func(t float64) float64
	out   float64
}

func (n *Node) Label() string { return n.label }

// Value returns the node output at the last step.
func (n *Node) Value() float64 { return n.out }

// Monitor accumulates samples of one signal.
type Monitor struct {
	src      Signal
	decay    float64
	filtered bool
	state    float64
	data     []float64
}

func (p *Monitor) Label() string { return p.src.Label() }

// Data returns the recorded samples. The slice must not be modified.
func (p *Monitor) Data() []float64 { return p.data }

func (p *Monitor) grow(extra int) {
	if cap(p.data)-len(p.data) >= extra {
		return
	}
	next := make([]float64, len(p.data), len(p.data)+extra)
	copy(next, p.data)
	p.data = next
}

func (p *Monitor) sample() {
	v := p.src.Value()
	if p.filtered {
		p.state = p.decay*p.state + (1-p.decay)*v
		v = p.state
	}
	p.data = append(p.data, v)
}
