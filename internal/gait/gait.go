// Package gait segments switch traces into swing and stance cycles.
package gait

import (
	"sort"

	"quadcpg/internal/model"
)

// Binarize maps a switch trace to phase bits: true while the limb swings.
func Binarize(values []float64) []bool {
	bits := make([]bool, len(values))
	for i, v := range values {
		bits[i] = v < 0
	}
	return bits
}

// Transitions holds the sample indices where a phase begins. An index is the
// first sample of the new phase.
type Transitions struct {
	SwingStarts  []int
	StanceStarts []int
}

// DetectTransitions scans bits for 0->1 (swing onset) and 1->0 (stance
// onset) edges. A trace that starts in swing has no onset at index 0.
func DetectTransitions(bits []bool) Transitions {
	var out Transitions
	for i := 1; i < len(bits); i++ {
		switch {
		case !bits[i-1] && bits[i]:
			out.SwingStarts = append(out.SwingStarts, i)
		case bits[i-1] && !bits[i]:
			out.StanceStarts = append(out.StanceStarts, i)
		}
	}
	return out
}

// Cycles are the swing and stance intervals of one limb, ordered by start.
type Cycles struct {
	Limb   int
	Swing  []model.Cycle
	Stance []model.Cycle
}

// Pairs returns the number of complete swing+stance cycles.
func (c Cycles) Pairs() int {
	return min(len(c.Swing), len(c.Stance))
}

// Empty reports whether either phase has no interval.
func (c Cycles) Empty() bool {
	return len(c.Swing) == 0 || len(c.Stance) == 0
}

// Segment pairs every swing onset with the first stance onset at or after
// it, and that stance onset with the next swing onset, or with samples when
// none remains. It stops at the first swing onset without a stance onset.
func Segment(limb int, tr Transitions, samples int) Cycles {
	out := Cycles{Limb: limb}
	for _, swingStart := range tr.SwingStarts {
		i := sort.SearchInts(tr.StanceStarts, swingStart)
		if i == len(tr.StanceStarts) {
			break
		}
		stanceStart := tr.StanceStarts[i]
		stanceEnd := samples
		if j := sort.SearchInts(tr.SwingStarts, stanceStart); j < len(tr.SwingStarts) {
			stanceEnd = tr.SwingStarts[j]
		}
		out.Swing = append(out.Swing, model.Cycle{Limb: limb, Phase: model.PhaseSwing, Start: swingStart, End: stanceStart})
		out.Stance = append(out.Stance, model.Cycle{Limb: limb, Phase: model.PhaseStance, Start: stanceStart, End: stanceEnd})
	}
	return out
}

// Trim drops the first and last interval of each phase.
func (c Cycles) Trim() Cycles {
	return Cycles{Limb: c.Limb, Swing: trim(c.Swing), Stance: trim(c.Stance)}
}

func trim(cycles []model.Cycle) []model.Cycle {
	if len(cycles) <= 2 {
		return nil
	}
	return append([]model.Cycle(nil), cycles[1:len(cycles)-1]...)
}

// RawCycles segments values without trimming boundary cycles.
func RawCycles(limb int, values []float64) Cycles {
	return Segment(limb, DetectTransitions(Binarize(values)), len(values))
}

// Extract returns the trimmed cycles of one switch trace.
func Extract(limb int, values []float64) Cycles {
	return RawCycles(limb, values).Trim()
}

// ExtractTrace extracts the cycles of every limb in trace, keyed by limb.
func ExtractTrace(trace model.SimulationTrace) map[int]Cycles {
	out := make(map[int]Cycles, len(trace.Limbs))
	for _, limb := range trace.Limbs {
		out[limb.Limb] = Extract(limb.Limb, limb.Switch)
	}
	return out
}

// Durations converts cycle lengths to seconds.
func Durations(cycles []model.Cycle, sampleRate float64) []float64 {
	out := make([]float64, len(cycles))
	for i, c := range cycles {
		out[i] = float64(c.Len()) / sampleRate
	}
	return out
}

// CycleDurations returns swing+stance durations of the paired cycles.
func (c Cycles) CycleDurations(sampleRate float64) []float64 {
	n := c.Pairs()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(c.Swing[i].Len()+c.Stance[i].Len()) / sampleRate
	}
	return out
}
