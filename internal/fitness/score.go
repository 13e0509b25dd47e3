package fitness

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"quadcpg/internal/gait"
	"quadcpg/internal/model"
	"quadcpg/internal/nn"
)

// ErrDegenerateTrace marks a trace that cannot be scored: a limb without
// cycles, too few cycles to pair, or an undefined ratio.
var ErrDegenerateTrace = errors.New("degenerate trace")

func degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateTrace, fmt.Sprintf(format, args...))
}

// LimbScore holds the per-limb phase-duration and cycle-range errors.
type LimbScore struct {
	Phase float64
	Speed float64
}

// ScoreLimb compares the kept cycles of one limb with the regressions.
// Phase is RMS(swing)+RMS(stance); Speed is the distance of the shortest and
// longest cycle from MinPeriod and MaxPeriod.
func ScoreLimb(c gait.Cycles, sampleRate float64) (LimbScore, error) {
	n := c.Pairs()
	if n == 0 {
		return LimbScore{}, degenerate("limb %d has no complete cycle", c.Limb)
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
	swingErr, err := nn.RMSE(wantSwing, swing)
	if err != nil {
		return LimbScore{}, degenerate("limb %d swing: %v", c.Limb, err)
	}
	stanceErr, err := nn.RMSE(wantStance, stance)
	if err != nil {
		return LimbScore{}, degenerate("limb %d stance: %v", c.Limb, err)
	}
	return LimbScore{
		Phase: swingErr + stanceErr,
		Speed: math.Abs(MinPeriod-floats.Min(periods)) + math.Abs(MaxPeriod-floats.Max(periods)),
	}, nil
}

// Symmetry pairs swing intervals of one limb with stance intervals of a
// partner and returns the RMS deviation between the lead-in (swing onset to
// stance onset) and the lead-out (stance offset to swing offset). Lists of
// unequal length are truncated to the shorter.
func Symmetry(swing, stance []model.Cycle, sampleRate float64) (float64, error) {
	n := min(len(swing), len(stance))
	if n == 0 {
		return 0, degenerate("no swing/stance pairs for symmetry")
	}
	pre := make([]float64, n)
	post := make([]float64, n)
	for i := 0; i < n; i++ {
		pre[i] = math.Abs(float64(swing[i].Start-stance[i].Start)) / sampleRate
		post[i] = math.Abs(float64(stance[i].End-swing[i].End)) / sampleRate
	}
	return nn.RMSE(pre, post)
}

// Overlap returns the share of samples where a is set that also have b set.
func Overlap(a, b []bool) (float64, error) {
	n := min(len(a), len(b))
	count, both := 0, 0
	for i := 0; i < len(a); i++ {
		if !a[i] {
			continue
		}
		count++
		if i < n && b[i] {
			both++
		}
	}
	if count == 0 {
		return 0, degenerate("reference phase never occurs")
	}
	return float64(both) / float64(count), nil
}

// dropFirst and dropLast shift one list against its partner.
func dropFirst(c []model.Cycle) []model.Cycle {
	if len(c) == 0 {
		return nil
	}
	return c[1:]
}

func dropLast(c []model.Cycle) []model.Cycle {
	if len(c) == 0 {
		return nil
	}
	return c[:len(c)-1]
}
