package cpg

import (
	"context"
	"errors"
	"math"
	"testing"

	"quadcpg/internal/fitness"
	"quadcpg/internal/gait"
	"quadcpg/internal/model"
)

func signChanges(values []float64) []int {
	var out []int
	for i := 1; i < len(values); i++ {
		if (values[i-1] < 0) != (values[i] < 0) {
			out = append(out, i)
		}
	}
	return out
}

func signAgreement(a, b []float64) float64 {
	same := 0
	for i := range a {
		if (a[i] < 0) == (b[i] < 0) {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

func TestSimulateOscillatesInTrot(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Duration = 10
	trace, err := Simulate(context.Background(), model.ReferenceParams(), cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if trace.Samples() != 10000 {
		t.Fatalf("expected 10000 samples, got %d", trace.Samples())
	}
	if trace.SampleRate != 1000 {
		t.Fatalf("unexpected sample rate %f", trace.SampleRate)
	}
	if len(trace.Limbs) != LimbCount {
		t.Fatalf("expected %d limbs, got %d", LimbCount, len(trace.Limbs))
	}
	for _, limb := range trace.Limbs {
		if len(limb.Switch) != 10000 || len(limb.Swing) != 10000 || len(limb.Stance) != 10000 {
			t.Fatalf("limb %d: ragged trace", limb.Limb)
		}
		if n := len(signChanges(limb.Switch)); n < 6 {
			t.Fatalf("limb %d: expected sustained switching, got %d sign changes", limb.Limb, n)
		}
		for i, v := range limb.Swing {
			if math.IsNaN(v) || math.Abs(v) > 1+1e-9 {
				t.Fatalf("limb %d: swing sample %d out of range: %f", limb.Limb, i, v)
			}
		}
	}

	l1, _ := trace.Limb(1)
	l2, _ := trace.Limb(2)
	l3, _ := trace.Limb(3)
	l4, _ := trace.Limb(4)
	if got := signAgreement(l1.Switch, l3.Switch); got < 0.99 {
		t.Fatalf("expected diagonal limbs 1 and 3 in phase, agreement %f", got)
	}
	if got := signAgreement(l2.Switch, l4.Switch); got < 0.99 {
		t.Fatalf("expected diagonal limbs 2 and 4 in phase, agreement %f", got)
	}
	// Neighbours never swing together; both may stand at once.
	settled := int(trace.SampleRate)
	swing := func(l model.LimbTrace) []bool { return gait.Binarize(l.Switch[settled:]) }
	for _, pair := range [][2]model.LimbTrace{{l1, l2}, {l1, l4}, {l3, l2}, {l3, l4}} {
		got, err := fitness.Overlap(swing(pair[0]), swing(pair[1]))
		if err != nil {
			t.Fatalf("limbs %d-%d: %v", pair[0].Limb, pair[1].Limb, err)
		}
		if got > 0.05 {
			t.Fatalf("limbs %d-%d: neighbours swing together %.3f of the time", pair[0].Limb, pair[1].Limb, got)
		}
	}
	if trace.Speed[len(trace.Speed)-1] < 0.9 {
		t.Fatalf("expected ramp near 1 at the end, got %f", trace.Speed[len(trace.Speed)-1])
	}
}

func TestSimulateInitialPhases(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Duration = 0.2
	trace, err := Simulate(context.Background(), model.ReferenceParams(), cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for _, limb := range trace.Limbs {
		s := limb.Switch[len(limb.Switch)-1]
		if limb.Limb%2 == 1 && s >= 0 {
			t.Fatalf("limb %d should start in swing, s=%f", limb.Limb, s)
		}
		if limb.Limb%2 == 0 && s <= 0 {
			t.Fatalf("limb %d should start in stance, s=%f", limb.Limb, s)
		}
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Duration = 2
	cfg.Noise = 0.05
	a, err := Simulate(context.Background(), model.ReferenceParams(), cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	b, err := Simulate(context.Background(), model.ReferenceParams(), cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for li := range a.Limbs {
		for i := range a.Limbs[li].Swing {
			if a.Limbs[li].Swing[i] != b.Limbs[li].Swing[i] {
				t.Fatalf("limb %d sample %d differs across seeded runs", li+1, i)
			}
		}
	}
}

func TestFullDamageSilencesPopulations(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Duration = 1
	cfg.Speed = Constant{Value: 0.5}
	cfg.Damage = Scheduled{
		Fn:     ExternalDamage(TargetAll),
		Signal: func(float64) float64 { return DefaultStateNeurons },
		Limbs:  []int{1},
	}
	trace, err := Simulate(context.Background(), model.ReferenceParams(), cfg)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	l1, _ := trace.Limb(1)
	if got := l1.Swing[len(l1.Swing)-1]; math.Abs(got) > 1e-6 {
		t.Fatalf("expected silenced swing1 to read 0, got %f", got)
	}
	if got := l1.Stance[len(l1.Stance)-1]; math.Abs(got) > 1e-6 {
		t.Fatalf("expected silenced stance1 to read 0, got %f", got)
	}
	l2, _ := trace.Limb(2)
	peak := 0.0
	for _, v := range l2.Stance {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak < 0.1 {
		t.Fatalf("expected undamaged limb 2 to stay active, peak %f", peak)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	bad := model.ReferenceParams()
	bad.InitSwing = math.NaN()
	if _, err := Build(bad, DefaultSimulationConfig()); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for NaN param, got %v", err)
	}

	cases := map[string]func(*SimulationConfig){
		"negative duration": func(c *SimulationConfig) { c.Duration = -1 },
		"negative noise":    func(c *SimulationConfig) { c.Noise = -0.1 },
		"dt beyond run":     func(c *SimulationConfig) { c.Duration = 0.1; c.Dt = 1 },
		"custom speed nil":  func(c *SimulationConfig) { c.Speed = Custom{} },
		"damage without fn": func(c *SimulationConfig) { c.Damage = Scheduled{} },
		"damage bad limb": func(c *SimulationConfig) {
			c.Damage = Scheduled{Fn: ProgressiveDamage(5, TargetAll), Limbs: []int{5}}
		},
	}
	for name, mutate := range cases {
		cfg := DefaultSimulationConfig()
		mutate(&cfg)
		_, err := Build(model.ReferenceParams(), cfg)
		var cfgErr *model.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	c, err := Build(model.ReferenceParams(), DefaultSimulationConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestBuildWiresEveryLimb(t *testing.T) {
	c, err := Build(model.ReferenceParams(), SimulationConfig{Duration: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	limbs := c.Limbs()
	if len(limbs) != LimbCount {
		t.Fatalf("expected %d limbs, got %d", LimbCount, len(limbs))
	}
	for i, limb := range limbs {
		if limb.Index != i+1 || limb.Initial != initialPhases[i] {
			t.Fatalf("unexpected limb %s at %d", limb, i)
		}
		if limb.Swing.Neurons() != DefaultStateNeurons || limb.Switch == nil {
			t.Fatalf("limb %d not fully wired", limb.Index)
		}
	}
	if c.Config().Tau != DefaultTau || c.Config().Gate != DefaultGateConfig() {
		t.Fatalf("expected defaults applied, got %+v", c.Config())
	}
}
