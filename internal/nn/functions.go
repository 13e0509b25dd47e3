package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Drive holds the constant bias and self-inhibition of one leaky integrator.
type Drive struct {
	Bias         float64
	InnerInhibit float64
}

// Feedback returns the recurrent target of a leaky integrator discretized
// under a synaptic low-pass filter with time constant tau:
// (bias + innerInhibit*x)*tau + x.
func Feedback(d Drive, tau, x float64) float64 {
	dX := d.Bias + d.InnerInhibit*x
	return dX*tau + x
}

// SpeedDrive returns the additive speed contribution tau*speed*gain.
func SpeedDrive(gain, tau, speed float64) float64 {
	return speed * gain * tau
}

// CouplingTransfer returns tau*(1-x)*weight. Coupling attenuates as the
// sending unit saturates toward 1.
func CouplingTransfer(weight, tau, x float64) float64 {
	return tau * (1 - x) * weight
}

// Sat clamps value to [min, max].
func Sat(value, max, min float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// SaturationWithSpread clamps values to the symmetric range [-spread, spread].
func SaturationWithSpread(value, spread float64) float64 {
	if spread < 0 {
		spread = -spread
	}
	return Sat(value, spread, -spread)
}

// Rectify returns the normalized excess of value above threshold, zero below.
// A threshold of 1 or more never fires.
func Rectify(value, threshold float64) float64 {
	if value <= threshold || threshold >= 1 {
		return 0
	}
	return (value - threshold) / (1 - threshold)
}

// RMSE returns the root-mean-square deviation between expected and actual.
func RMSE(expected, actual []float64) (float64, error) {
	if len(expected) != len(actual) {
		return 0, fmt.Errorf("length mismatch: expected=%d actual=%d", len(expected), len(actual))
	}
	if len(expected) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	return floats.Distance(expected, actual, 2) / math.Sqrt(float64(len(expected))), nil
}
