package fitness

import (
	"fmt"
	"math"

	"quadcpg/internal/gait"
	"quadcpg/internal/model"
)

// PenaltyValue replaces every sub-error of a trace that cannot be scored.
const PenaltyValue = 10.0

// TwoLimbHorizon is the run length, in seconds, the two-limb variant
// normalizes its evaluation window against.
const TwoLimbHorizon = 95.0

// Weights combine the sub-errors into the scalar error.
type Weights struct {
	Phase     float64 `yaml:"phase" json:"phase"`
	Speed     float64 `yaml:"speed" json:"speed"`
	Symmetry1 float64 `yaml:"symmetry1" json:"symmetry1"`
	Symmetry2 float64 `yaml:"symmetry2" json:"symmetry2"`
}

var (
	QuadrupedWeights = Weights{Phase: 2, Speed: 1, Symmetry1: 1, Symmetry2: 3}
	TwoLimbWeights   = Weights{Phase: 2, Speed: 1, Symmetry1: 1, Symmetry2: 1}
)

// Combine fills r.Error with the weighted sum of the sub-errors.
func (w Weights) Combine(r model.FitnessReport) model.FitnessReport {
	r.Error = w.Phase*r.Phase + w.Speed*r.Speed + w.Symmetry1*r.Symmetry1 + w.Symmetry2*r.Symmetry2
	return r
}

// Penalty returns the fixed report used for degenerate traces.
func (w Weights) Penalty() model.FitnessReport {
	r := w.Combine(model.FitnessReport{
		Phase:     PenaltyValue,
		Speed:     PenaltyValue,
		Symmetry1: PenaltyValue,
		Symmetry2: PenaltyValue,
	})
	r.Degenerate = true
	return r
}

// phaseMasks returns per-sample swing (s<0) and stance (s>0) masks.
func phaseMasks(s []float64) (swing, stance []bool) {
	swing = make([]bool, len(s))
	stance = make([]bool, len(s))
	for i, v := range s {
		swing[i] = v < 0
		stance[i] = v > 0
	}
	return swing, stance
}

type limbData struct {
	cycles gait.Cycles
	score  LimbScore
	swing  []bool
	stance []bool
}

func prepare(trace model.SimulationTrace, limbs []int, samples int) (map[int]limbData, error) {
	out := make(map[int]limbData, len(limbs))
	for _, index := range limbs {
		limb, ok := trace.Limb(index)
		if !ok {
			return nil, degenerate("trace has no limb %d", index)
		}
		s := limb.Switch
		if samples >= 0 && samples < len(s) {
			s = s[:samples]
		}
		cycles := gait.Extract(index, s)
		score, err := ScoreLimb(cycles, SampleRate)
		if err != nil {
			return nil, err
		}
		swing, stance := phaseMasks(s)
		out[index] = limbData{cycles: cycles, score: score, swing: swing, stance: stance}
	}
	return out, nil
}

type symmetryTerm struct {
	swing  []model.Cycle
	stance []model.Cycle
}

type overlapTerm struct {
	a, b []bool
	// inverted terms add the fraction instead of its complement.
	inverted bool
}

func sumTerms(sym []symmetryTerm, overlaps []overlapTerm) (sym1, sym2 float64, err error) {
	for i, term := range sym {
		v, err := Symmetry(term.swing, term.stance, SampleRate)
		if err != nil {
			return 0, 0, fmt.Errorf("symmetry term %d: %w", i, err)
		}
		sym1 += v
	}
	for i, term := range overlaps {
		v, err := Overlap(term.a, term.b)
		if err != nil {
			return 0, 0, fmt.Errorf("overlap term %d: %w", i, err)
		}
		if term.inverted {
			sym2 += v
		} else {
			sym2 += 1 - v
		}
	}
	return sym1, sym2, nil
}

func finish(w Weights, r model.FitnessReport) (model.FitnessReport, error) {
	for _, v := range []float64{r.Phase, r.Speed, r.Symmetry1, r.Symmetry2} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return w.Penalty(), degenerate("non-finite sub-error %v", v)
		}
	}
	return w.Combine(r), nil
}

// Quadruped scores all four limbs. Limbs 1 and 2 (front) and 3 and 4 (hind)
// are paired for symmetry with shifted cycle lists so that a swing is
// compared with the stance it falls into. On a degenerate trace the
// returned report is the penalty and the error wraps ErrDegenerateTrace.
func Quadruped(trace model.SimulationTrace) (model.FitnessReport, error) {
	w := QuadrupedWeights
	limbs, err := prepare(trace, []int{1, 2, 3, 4}, -1)
	if err != nil {
		return w.Penalty(), err
	}
	l1, l2, l3, l4 := limbs[1], limbs[2], limbs[3], limbs[4]

	// Limb 4 contributes its cycle-range error to the phase sum.
	r := model.FitnessReport{
		Phase: l1.score.Phase + l2.score.Phase + l3.score.Phase + l4.score.Speed,
		Speed: l1.score.Speed + l2.score.Speed + l3.score.Speed + l4.score.Speed,
	}
	sym := []symmetryTerm{
		{dropFirst(l1.cycles.Swing), l2.cycles.Stance},
		{l2.cycles.Swing, dropLast(l1.cycles.Stance)},
		{dropFirst(l3.cycles.Swing), l4.cycles.Stance},
		{l4.cycles.Swing, dropLast(l3.cycles.Stance)},
		{dropFirst(l2.cycles.Swing), l4.cycles.Stance},
		{l2.cycles.Swing, dropLast(l4.cycles.Stance)},
		{dropFirst(l1.cycles.Swing), l3.cycles.Stance},
		{l3.cycles.Swing, dropLast(l1.cycles.Stance)},
	}
	overlaps := []overlapTerm{
		{a: l1.swing, b: l2.stance},
		{a: l2.swing, b: l1.stance},
		{a: l3.swing, b: l4.stance},
		{a: l4.swing, b: l3.stance},
		{a: l2.swing, b: l3.stance},
		{a: l3.swing, b: l2.stance},
		{a: l1.swing, b: l4.stance},
		{a: l4.swing, b: l1.stance},
		{a: l4.swing, b: l1.swing, inverted: true},
		{a: l3.swing, b: l2.swing, inverted: true},
	}
	if r.Symmetry1, r.Symmetry2, err = sumTerms(sym, overlaps); err != nil {
		return w.Penalty(), err
	}
	return finish(w, r)
}

// TwoLimb scores limbs 1 and 2 over the leading evalTime/TwoLimbHorizon
// share of the trace. evalTime <= 0 scores the whole trace. The cycle-range
// error is not used by this variant.
func TwoLimb(trace model.SimulationTrace, evalTime float64) (model.FitnessReport, error) {
	w := TwoLimbWeights
	samples := -1
	if evalTime > 0 {
		samples = int(evalTime / TwoLimbHorizon * float64(trace.Samples()))
	}
	limbs, err := prepare(trace, []int{1, 2}, samples)
	if err != nil {
		return w.Penalty(), err
	}
	left, right := limbs[1], limbs[2]

	r := model.FitnessReport{Phase: left.score.Phase + right.score.Phase}
	sym := []symmetryTerm{
		{dropFirst(left.cycles.Swing), right.cycles.Stance},
		{right.cycles.Swing, dropLast(left.cycles.Stance)},
	}
	overlaps := []overlapTerm{
		{a: left.swing, b: right.stance},
		{a: right.swing, b: left.stance},
	}
	if r.Symmetry1, r.Symmetry2, err = sumTerms(sym, overlaps); err != nil {
		return w.Penalty(), err
	}
	return finish(w, r)
}
