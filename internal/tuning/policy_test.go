package tuning

import "testing"

func TestAttemptPolicies(t *testing.T) {
	cases := []struct {
		name   string
		policy AttemptPolicy
		base   int
		round  Round
		want   int
	}{
		{"fixed", FixedAttemptPolicy{}, 7, Round{Rank: 3, Rounds: 10, FreeParams: 4}, 7},
		{"fixed negative", FixedAttemptPolicy{}, -2, Round{}, 0},
		{"decay best start", RankDecayAttemptPolicy{Floor: 2}, 10, Round{Rank: 0, Rounds: 5}, 10},
		{"decay last start", RankDecayAttemptPolicy{Floor: 2}, 10, Round{Rank: 4, Rounds: 5}, 2},
		{"decay middle", RankDecayAttemptPolicy{Floor: 1}, 10, Round{Rank: 2, Rounds: 4}, 5},
		{"scaled", DimensionScaledAttemptPolicy{Scale: 1, Ceiling: 30}, 10, Round{FreeParams: 4}, 14},
		{"scaled ceiling", DimensionScaledAttemptPolicy{Scale: 1, Ceiling: 30}, 10, Round{FreeParams: 40}, 30},
		{"scaled zero budget", DimensionScaledAttemptPolicy{Scale: 2}, 0, Round{FreeParams: 14}, 0},
	}
	for _, tc := range cases {
		if got := tc.policy.Attempts(tc.base, tc.round); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestAttemptPolicyFromConfig(t *testing.T) {
	for name, want := range map[string]string{
		"":                 PolicyFixed,
		"const":            PolicyFixed,
		"linear_decay":     PolicyRankDecay,
		"rank_decay":       PolicyRankDecay,
		"dimension_scaled": PolicyDimensionScaled,
	} {
		p, err := AttemptPolicyFromConfig(name, 0)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if p.Name() != want {
			t.Fatalf("%q: expected %s, got %s", name, want, p.Name())
		}
	}
	if _, err := AttemptPolicyFromConfig("topology_scaled", 1); err == nil {
		t.Fatal("expected unsupported policy error")
	}
}
