package solver

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestIntegratorSaturatesAtRadius(t *testing.T) {
	net := NewNetwork(Config{})
	tau := 0.01
	state := net.AddEnsemble(EnsembleSpec{Label: "state", Neurons: 100})
	// dx/dt = 1 realized as a recurrent connection x + tau*1.
	net.Connect(state, state, func(x float64) float64 { return x + tau }, tau)
	monitor := net.Monitor(state, 0)

	if err := net.Run(context.Background(), 0.5); err != nil {
		t.Fatalf("run: %v", err)
	}
	data := monitor.Data()
	if len(data) != 500 {
		t.Fatalf("expected 500 samples, got %d", len(data))
	}
	// Each step moves the filtered state by (1-exp(-dt/tau))*tau.
	want := 500 * (1 - math.Exp(-0.1)) * tau
	if math.Abs(data[len(data)-1]-want) > 1e-9 {
		t.Fatalf("expected %f after 0.5s of unit drive, got %f", want, data[len(data)-1])
	}

	if err := net.Run(context.Background(), 1.0); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := state.Value(); got != 1 {
		t.Fatalf("expected clip at radius 1, got %f", got)
	}
	if math.Abs(net.Time()-1.5) > 1e-9 {
		t.Fatalf("unexpected simulated time %f", net.Time())
	}
}

func TestNeuronInhibitionSilencesPopulation(t *testing.T) {
	net := NewNetwork(Config{})
	state := net.AddEnsemble(EnsembleSpec{Label: "state", Neurons: 10})
	bias := net.AddNode("bias", func(float64) float64 { return 0.8 })
	net.Connect(bias, state, Identity, 0)

	gate := net.AddNode("gate", func(t float64) float64 {
		if t > 0.05 {
			return 1
		}
		return 0
	})
	net.ConnectNeurons(gate, state, func(x float64) []float64 {
		out := make([]float64, 10)
		if x > 0 {
			for i := 0; i < 4; i++ {
				out[i] = -30
			}
		}
		return out
	}, 0)

	if err := net.Run(context.Background(), 0.04); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := state.Value(); math.Abs(got-0.8) > 1e-12 {
		t.Fatalf("expected full population value, got %f", got)
	}
	if err := net.Run(context.Background(), 0.02); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := state.ActiveFraction(); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("expected 60%% active neurons, got %f", got)
	}
	if got := state.Value(); math.Abs(got-0.48) > 1e-12 {
		t.Fatalf("expected scaled value 0.48, got %f", got)
	}
}

func TestDetectorFiresAboveIntercept(t *testing.T) {
	net := NewNetwork(Config{})
	level := 0.0
	src := net.AddNode("src", func(float64) float64 { return level })
	det := net.AddEnsemble(EnsembleSpec{Label: "det", Neurons: 1, Detector: true, Intercept: 0.4})
	net.Connect(src, det, Identity, 0)

	if err := net.Run(context.Background(), 0.002); err != nil {
		t.Fatalf("run: %v", err)
	}
	if det.Value() != 0 {
		t.Fatalf("expected silent detector, got %f", det.Value())
	}
	level = 0.7
	if err := net.Run(context.Background(), 0.002); err != nil {
		t.Fatalf("run: %v", err)
	}
	if math.Abs(det.Value()-0.5) > 1e-12 {
		t.Fatalf("expected detector output 0.5, got %f", det.Value())
	}
}

func TestLowpassMonitorSmoothsStep(t *testing.T) {
	net := NewNetwork(Config{})
	step := net.AddNode("step", func(float64) float64 { return 1 })
	monitor := net.Monitor(step, 0.01)
	if err := net.Run(context.Background(), 0.01); err != nil {
		t.Fatalf("run: %v", err)
	}
	last := monitor.Data()[len(monitor.Data())-1]
	want := 1 - math.Exp(-1)
	if math.Abs(last-want) > 1e-9 {
		t.Fatalf("expected one time constant response %f, got %f", want, last)
	}
}

func TestNoiseIsSeeded(t *testing.T) {
	run := func(seed int64) []float64 {
		net := NewNetwork(Config{Seed: seed, Noise: 0.05})
		state := net.AddEnsemble(EnsembleSpec{Label: "state", Neurons: 5, Noisy: true})
		monitor := net.Monitor(state, 0)
		if err := net.Run(context.Background(), 0.05); err != nil {
			t.Fatalf("run: %v", err)
		}
		return monitor.Data()
	}
	a, b, c := run(7), run(7), run(8)
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical runs for equal seeds at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Fatal("expected different seeds to produce different noise")
	}
}

func TestConstructionErrorsSurfaceOnRun(t *testing.T) {
	net := NewNetwork(Config{})
	net.Connect(nil, nil, Identity, 0.01)
	if err := net.Run(context.Background(), 0.01); err == nil {
		t.Fatal("expected construction error")
	}

	net = NewNetwork(Config{})
	e := net.AddEnsemble(EnsembleSpec{Label: "e"})
	net.Connect(e, e, Identity, -1)
	if net.Err() == nil {
		t.Fatal("expected negative synapse error")
	}

	net = NewNetwork(Config{})
	e = net.AddEnsemble(EnsembleSpec{Label: "e"})
	if err := net.Run(context.Background(), 0.001); err != nil {
		t.Fatalf("run: %v", err)
	}
	net.Connect(e, e, Identity, 0.01)
	if !errors.Is(net.Err(), ErrNetworkFinalized) {
		t.Fatalf("expected finalized error, got %v", net.Err())
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	net := NewNetwork(Config{})
	net.AddEnsemble(EnsembleSpec{Label: "e"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := net.Run(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
