package cpg

import (
	"fmt"

	"quadcpg/internal/model"
	"quadcpg/internal/nn"
	"quadcpg/internal/solver"
)

// initialPhases breaks the symmetry between limbs: diagonal pairs start
// together, neighbours start in opposite phases.
var initialPhases = [LimbCount]model.Phase{
	model.PhaseSwing,
	model.PhaseStance,
	model.PhaseSwing,
	model.PhaseStance,
}

// Limb is one limb unit: two antagonistic integrators and their switch.
type Limb struct {
	Index   int
	Initial model.Phase
	Swing   *solver.Ensemble
	Stance  *solver.Ensemble
	Switch  *Switch
}

// Population returns the swing or stance ensemble of the limb.
func (l *Limb) Population(phase model.Phase) *solver.Ensemble {
	if phase == model.PhaseSwing {
		return l.Swing
	}
	return l.Stance
}

func newLimb(net *solver.Network, index int, initial model.Phase, params model.CouplingParams, cfg SimulationConfig) *Limb {
	limb := &Limb{Index: index, Initial: initial}
	for _, phase := range []model.Phase{model.PhaseSwing, model.PhaseStance} {
		tag := model.PhaseTag{Limb: index, Phase: phase}
		ens := net.AddEnsemble(solver.EnsembleSpec{
			Label:   tag.String(),
			Neurons: cfg.StateNeurons,
			Radius:  cfg.Radius,
			Noisy:   true,
		})

		drive := nn.Drive{Bias: params.InitSwing, InnerInhibit: params.InnerInhibit}
		if phase == model.PhaseStance {
			drive.Bias = params.InitStance
		}
		tau := cfg.Tau
		net.Connect(ens, ens, func(x float64) float64 {
			return nn.Feedback(drive, tau, x)
		}, tau)

		if phase == model.PhaseSwing {
			limb.Swing = ens
		} else {
			limb.Stance = ens
		}
	}
	limb.Switch = newSwitch(net, limb, cfg)
	return limb
}

func (l *Limb) String() string {
	return fmt.Sprintf("limb%d(%s)", l.Index, l.Initial)
}
