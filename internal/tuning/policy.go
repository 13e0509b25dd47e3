package tuning

import "fmt"

const (
	PolicyFixed           = "fixed"
	PolicyRankDecay       = "rank_decay"
	PolicyDimensionScaled = "dimension_scaled"
)

// Round describes one refinement round: the rank of its starting trial
// among the refined ones, how many rounds run and how many coupling
// coefficients the search space leaves free.
type Round struct {
	Rank       int
	Rounds     int
	FreeParams int
}

// AttemptPolicy turns the configured attempt budget into the budget of one
// refinement round.
type AttemptPolicy interface {
	Name() string
	Attempts(base int, round Round) int
}

type FixedAttemptPolicy struct{}

func (FixedAttemptPolicy) Name() string { return PolicyFixed }

func (FixedAttemptPolicy) Attempts(base int, _ Round) int {
	return max(base, 0)
}

// RankDecayAttemptPolicy gives the best start the full budget and shrinks it
// linearly for lower-ranked starts, never below Floor.
type RankDecayAttemptPolicy struct {
	Floor int
}

func (RankDecayAttemptPolicy) Name() string { return PolicyRankDecay }

func (p RankDecayAttemptPolicy) Attempts(base int, round Round) int {
	if base <= 0 {
		return 0
	}
	if round.Rounds <= 0 {
		return base
	}
	remaining := max(round.Rounds-round.Rank, 1)
	return max(base*remaining/round.Rounds, p.Floor, 0)
}

// DimensionScaledAttemptPolicy adds a tenth of the budget per free
// coefficient, so wide searches get more hill-climb attempts.
type DimensionScaledAttemptPolicy struct {
	Scale   float64
	Floor   int
	Ceiling int
}

func (DimensionScaledAttemptPolicy) Name() string { return PolicyDimensionScaled }

func (p DimensionScaledAttemptPolicy) Attempts(base int, round Round) int {
	if base <= 0 {
		return 0
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	attempts := max(int(float64(base)*scale*(1+float64(round.FreeParams)/10)), p.Floor)
	if p.Ceiling > 0 {
		attempts = min(attempts, p.Ceiling)
	}
	return attempts
}

// AttemptPolicyFromConfig builds a policy from its name. param is the floor
// of rank_decay and the scale of dimension_scaled.
func AttemptPolicyFromConfig(name string, param float64) (AttemptPolicy, error) {
	switch NormalizeAttemptPolicyName(name) {
	case PolicyFixed:
		return FixedAttemptPolicy{}, nil
	case PolicyRankDecay:
		return RankDecayAttemptPolicy{Floor: max(int(param), 1)}, nil
	case PolicyDimensionScaled:
		scale := param
		if scale <= 0 {
			scale = 1
		}
		return DimensionScaledAttemptPolicy{Scale: scale, Floor: 1}, nil
	default:
		return nil, fmt.Errorf("unsupported attempt policy: %s", name)
	}
}

func NormalizeAttemptPolicyName(name string) string {
	switch name {
	case "", "const", PolicyFixed:
		return PolicyFixed
	case "linear_decay", "decay", PolicyRankDecay:
		return PolicyRankDecay
	case "dimension", "scaled", PolicyDimensionScaled:
		return PolicyDimensionScaled
	default:
		return name
	}
}
