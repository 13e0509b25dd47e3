package gait

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Power law between cycle period and walking velocity, Tc = A*V^-B.
const (
	PeriodScale    = 0.5445
	PeriodExponent = 0.592
)

// ErrTooFewCycles is returned when a fit has fewer than two points.
var ErrTooFewCycles = errors.New("gait: too few cycles")

// PredictedVelocity inverts the period power law.
func PredictedVelocity(period float64) float64 {
	return math.Pow(period/PeriodScale, -1/PeriodExponent)
}

// SpeedPoint is one cycle placed on the speed/velocity plane.
type SpeedPoint struct {
	Speed    float64 `json:"speed"`
	Period   float64 `json:"period"`
	Velocity float64 `json:"velocity"`
}

// SpeedFit is the least-squares line velocity = Intercept + Slope*speed.
type SpeedFit struct {
	Points    []SpeedPoint `json:"points"`
	Intercept float64      `json:"intercept"`
	Slope     float64      `json:"slope"`
	RSquared  float64      `json:"r_squared"`
}

// SpeedRelationship relates each cycle's mean drive, taken at the cycle
// boundaries, to the velocity its period predicts.
func SpeedRelationship(c Cycles, speed []float64, sampleRate float64) (SpeedFit, error) {
	if len(speed) == 0 {
		return SpeedFit{}, ErrTooFewCycles
	}
	periods := c.CycleDurations(sampleRate)
	fit := SpeedFit{}
	xs := make([]float64, 0, len(periods))
	ys := make([]float64, 0, len(periods))
	for i, period := range periods {
		start := c.Swing[i].Start
		end := min(c.Stance[i].End, len(speed)-1)
		if start >= len(speed) || period <= 0 {
			continue
		}
		p := SpeedPoint{
			Speed:    (speed[start] + speed[end]) / 2,
			Period:   period,
			Velocity: PredictedVelocity(period),
		}
		fit.Points = append(fit.Points, p)
		xs = append(xs, p.Speed)
		ys = append(ys, p.Velocity)
	}
	if len(xs) < 2 {
		return fit, ErrTooFewCycles
	}
	fit.Intercept, fit.Slope = stat.LinearRegression(xs, ys, nil, false)
	fit.RSquared = stat.RSquared(xs, ys, nil, fit.Intercept, fit.Slope)
	return fit, nil
}
