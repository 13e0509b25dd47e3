// Package fitness scores extracted gait cycles against the Halbertsma cat
// locomotion regressions.
package fitness

import (
	"gonum.org/v1/gonum/stat"

	"quadcpg/internal/gait"
)

const (
	// SampleRate is the rate cycle indices are converted at.
	SampleRate = 1000.0

	// MinPeriod and MaxPeriod bound the observed cat step cycle in seconds.
	MinPeriod = 0.57
	MaxPeriod = 1.91
)

// CycleToSwing returns the expected swing duration for a step cycle of tc
// seconds.
func CycleToSwing(tc float64) float64 {
	return 0.168 + 0.0938*tc
}

// CycleToStance returns the expected stance duration for a step cycle of tc
// seconds.
func CycleToStance(tc float64) float64 {
	return -0.168 + 0.9062*tc
}

// RegressionFit is the coefficient of determination of simulated phase
// durations against the regression predictions.
type RegressionFit struct {
	Swing  float64 `json:"swing_r_squared"`
	Stance float64 `json:"stance_r_squared"`
}

// Regression compares the kept cycles of one limb with the regressions.
func Regression(c gait.Cycles, sampleRate float64) (RegressionFit, error) {
	n := c.Pairs()
	if n < 2 {
		return RegressionFit{}, ErrDegenerateTrace
	}
	swing := gait.Durations(c.Swing[:n], sampleRate)
	stance := gait.Durations(c.Stance[:n], sampleRate)
	periods := c.CycleDurations(sampleRate)
	wantSwing := make([]float64, n)
	wantStance := make([]float64, n)
	for i, tc := range periods {
		wantSwing[i] = CycleToSwing(tc)
		wantStance[i] = CycleToStance(tc)
	}
	return RegressionFit{
		Swing:  stat.RSquaredFrom(swing, wantSwing, nil),
		Stance: stat.RSquaredFrom(stance, wantStance, nil),
	}, nil
}
