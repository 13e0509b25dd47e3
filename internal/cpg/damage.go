package cpg

import (
	"fmt"

	"quadcpg/internal/model"
)

// SilenceCurrent is the neuron input used by the built-in damage functions.
const SilenceCurrent = -30.0

// DamageFunc returns one input current per neuron of the population named
// by tag. signal is the elapsed time or an external scalar.
type DamageFunc func(signal float64, stateNeurons int, duration float64, tag model.PhaseTag) []float64

// DamageTarget restricts damage to swing, stance or all populations.
type DamageTarget string

const (
	TargetSwing  DamageTarget = "swing"
	TargetStance DamageTarget = "stance"
	TargetAll    DamageTarget = "all"
)

// ParseDamageTarget accepts swing, stance or all.
func ParseDamageTarget(s string) (DamageTarget, error) {
	switch DamageTarget(s) {
	case TargetSwing, TargetStance, TargetAll:
		return DamageTarget(s), nil
	case "":
		return TargetAll, nil
	default:
		return "", fmt.Errorf("unsupported damage target: %s", s)
	}
}

func (d DamageTarget) matches(tag model.PhaseTag) bool {
	return d == TargetAll || model.Phase(d) == tag.Phase
}

func silence(stateNeurons, count int) []float64 {
	out := make([]float64, stateNeurons)
	if count > stateNeurons {
		count = stateNeurons
	}
	for i := 0; i < count; i++ {
		out[i] = SilenceCurrent
	}
	return out
}

// ProgressiveDamage silences a share of count neurons growing linearly with
// elapsed time, reaching count at the end of the run.
func ProgressiveDamage(count int, target DamageTarget) DamageFunc {
	return func(t float64, stateNeurons int, duration float64, tag model.PhaseTag) []float64 {
		if !target.matches(tag) || duration <= 0 {
			return silence(stateNeurons, 0)
		}
		return silence(stateNeurons, int(t/duration*float64(count)))
	}
}

// WindowDamage silences count neurons while from <= t <= to.
func WindowDamage(count int, target DamageTarget, from, to float64) DamageFunc {
	return func(t float64, stateNeurons int, _ float64, tag model.PhaseTag) []float64 {
		if !target.matches(tag) || t < from || t > to {
			return silence(stateNeurons, 0)
		}
		return silence(stateNeurons, count)
	}
}

// ExternalDamage silences int(signal) neurons, where signal is supplied by
// an external control such as an interactive slider.
func ExternalDamage(target DamageTarget) DamageFunc {
	return func(signal float64, stateNeurons int, _ float64, tag model.PhaseTag) []float64 {
		if !target.matches(tag) || signal <= 0 {
			return silence(stateNeurons, 0)
		}
		return silence(stateNeurons, int(signal))
	}
}
