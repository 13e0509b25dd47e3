package model

import "strconv"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Phase is one of the two mutually exclusive locomotor phases of a limb.
type Phase string

const (
	PhaseSwing  Phase = "swing"
	PhaseStance Phase = "stance"
)

// Opposite returns the antagonist phase.
func (p Phase) Opposite() Phase {
	if p == PhaseSwing {
		return PhaseStance
	}
	return PhaseSwing
}

// PhaseTag names one swing or stance population of one limb, e.g. "swing1".
type PhaseTag struct {
	Limb  int
	Phase Phase
}

func (t PhaseTag) String() string {
	return string(t.Phase) + strconv.Itoa(t.Limb)
}

// Cycle is a half-open sample interval [Start, End) of one phase of one limb.
type Cycle struct {
	Limb  int   `json:"limb"`
	Phase Phase `json:"phase"`
	Start int   `json:"start"`
	End   int   `json:"end"`
}

// Len returns the cycle length in samples.
func (c Cycle) Len() int {
	return c.End - c.Start
}

// LimbTrace holds the sampled signals of one limb unit.
type LimbTrace struct {
	Limb   int       `json:"limb"`
	Switch []float64 `json:"switch"`
	Swing  []float64 `json:"swing"`
	Stance []float64 `json:"stance"`
}

// SimulationTrace is the read-only output of one simulation run.
type SimulationTrace struct {
	SampleRate float64     `json:"sample_rate"`
	Duration   float64     `json:"duration"`
	Limbs      []LimbTrace `json:"limbs"`
	Speed      []float64   `json:"speed"`
}

// Samples returns the number of samples per signal.
func (t SimulationTrace) Samples() int {
	if len(t.Speed) == 0 && len(t.Limbs) > 0 {
		return len(t.Limbs[0].Switch)
	}
	return len(t.Speed)
}

// Limb returns the trace of the limb with the given 1-based index.
func (t SimulationTrace) Limb(index int) (LimbTrace, bool) {
	for _, limb := range t.Limbs {
		if limb.Limb == index {
			return limb, true
		}
	}
	return LimbTrace{}, false
}

// FitnessReport is the scalar score of one evaluation plus its sub-errors.
type FitnessReport struct {
	Error      float64 `json:"error"`
	Phase      float64 `json:"error_phase"`
	Speed      float64 `json:"error_speed"`
	Symmetry1  float64 `json:"error_symmetry1"`
	Symmetry2  float64 `json:"error_symmetry2"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// TrialRecord is one persisted evaluation of a parameter vector.
type TrialRecord struct {
	VersionedRecord
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Index     int            `json:"index"`
	Params    CouplingParams `json:"params"`
	Report    FitnessReport  `json:"report"`
	CreatedAt string         `json:"created_at"`
}

// RunRecord summarizes one search run.
type RunRecord struct {
	VersionedRecord
	ID          string         `json:"id"`
	Scape       string         `json:"scape"`
	Algorithm   string         `json:"algorithm"`
	Samples     int            `json:"samples"`
	Seed        int64          `json:"seed"`
	BestTrialID string         `json:"best_trial_id"`
	BestParams  CouplingParams `json:"best_params"`
	BestReport  FitnessReport  `json:"best_report"`
	CreatedAt   string         `json:"created_at"`
}

// SweepPointRecord is one persisted cell of a damage sweep.
type SweepPointRecord struct {
	Count  int           `json:"disable_count"`
	Speed  float64       `json:"speed"`
	Target string        `json:"disable_phase"`
	Seed   int64         `json:"seed"`
	Report FitnessReport `json:"report"`
}
