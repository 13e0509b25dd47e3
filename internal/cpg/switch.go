package cpg

import (
	"fmt"

	"quadcpg/internal/model"
	"quadcpg/internal/solver"
)

// Switch is the hysteretic flip-flop of one limb. Its sign selects the
// active antagonist: s > 0 silences swing, s < 0 silences stance. Each
// detector watches its own integrator and drives s toward the opposite sign
// once that integrator saturates.
type Switch struct {
	S         *solver.Ensemble
	ThreshPos *solver.Ensemble
	ThreshNeg *solver.Ensemble
	Init      *solver.Node
}

func newSwitch(net *solver.Network, limb *Limb, cfg SimulationConfig) *Switch {
	gate := cfg.Gate
	tau := cfg.Tau
	neurons := cfg.StateNeurons

	start := -1.0
	if limb.Initial == model.PhaseStance {
		start = 1.0
	}
	release := gate.Release
	sw := &Switch{}
	sw.Init = net.AddNode(fmt.Sprintf("init_phase%d", limb.Index), func(t float64) float64 {
		if t < release {
			return start
		}
		return 0
	})

	sw.S = net.AddEnsemble(solver.EnsembleSpec{Label: fmt.Sprintf("s%d", limb.Index), Neurons: 2, Radius: 1})
	net.Connect(sw.S, sw.S, solver.Identity, tau)
	net.Connect(sw.Init, sw.S, solver.Identity, tau)

	closed := gateCurrents(neurons, true, gate.Inhibit)
	open := gateCurrents(neurons, false, gate.Inhibit)
	net.ConnectNeurons(sw.S, limb.Swing, func(x float64) []float64 {
		if x > 0 {
			return closed
		}
		return open
	}, tau)
	net.ConnectNeurons(sw.S, limb.Stance, func(x float64) []float64 {
		if x < 0 {
			return closed
		}
		return open
	}, tau)

	offset := gate.Offset
	push := gate.Push
	sw.ThreshPos = net.AddEnsemble(solver.EnsembleSpec{
		Label:     fmt.Sprintf("thresh_pos%d", limb.Index),
		Neurons:   1,
		Detector:  true,
		Intercept: gate.Intercept,
	})
	net.Connect(limb.Swing, sw.ThreshPos, func(x float64) float64 { return x - offset }, tau)
	net.Connect(sw.ThreshPos, sw.S, func(x float64) float64 { return push * x }, tau)

	sw.ThreshNeg = net.AddEnsemble(solver.EnsembleSpec{
		Label:     fmt.Sprintf("thresh_neg%d", limb.Index),
		Neurons:   1,
		Detector:  true,
		Intercept: gate.Intercept,
	})
	net.Connect(limb.Stance, sw.ThreshNeg, func(x float64) float64 { return x - offset }, tau)
	net.Connect(sw.ThreshNeg, sw.S, func(x float64) float64 { return -push * x }, tau)

	return sw
}

// gateCurrents returns the per-neuron inhibition of a population: inhibit on
// every neuron when closed, zero otherwise.
func gateCurrents(neurons int, closed bool, inhibit float64) []float64 {
	out := make([]float64, neurons)
	if closed {
		for i := range out {
			out[i] = inhibit
		}
	}
	return out
}
