package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quadcpg/internal/cpg"
	"quadcpg/internal/model"
	"quadcpg/internal/stats"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), append(args, "--log-level", "error"), &out); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out.String()
}

func TestEvaluateShortRunPrintsPenalty(t *testing.T) {
	out := runCLI(t, "evaluate", "--duration", "0.5", "--runs-dir", t.TempDir())
	if !strings.Contains(out, "scape: quadruped") || !strings.Contains(out, "error: 70\n") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "degenerate: ") {
		t.Fatalf("expected degenerate reason:\n%s", out)
	}
}

func TestEvaluateJSONOutput(t *testing.T) {
	out := runCLI(t, "evaluate", "--duration", "0.5", "--scape", "two-limb", "--json", "--runs-dir", t.TempDir())
	if !strings.Contains(out, `"Scape": "two-limb"`) || !strings.Contains(out, `"error": 50`) {
		t.Fatalf("unexpected json output:\n%s", out)
	}
}

func TestEvaluateWritesMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpgctl.prom")
	runCLI(t, "evaluate", "--duration", "0.5", "--metrics-file", path, "--runs-dir", t.TempDir())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	want := `quadcpg_evaluations_total{outcome="degenerate",scape="quadruped"} 1`
	if !strings.Contains(string(data), want) {
		t.Fatalf("metrics missing %q:\n%s", want, data)
	}
}

func TestSimulateWritesTrace(t *testing.T) {
	dir := t.TempDir()
	out := runCLI(t, "simulate", "--duration", "0.5", "--trace-dir", dir, "--stride", "50", "--runs-dir", t.TempDir())
	if !strings.Contains(out, "samples: 500") || !strings.Contains(out, "LIMB") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "trace.csv"))
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 11 {
		t.Fatalf("expected header plus 10 rows, got %d lines", lines)
	}
}

func TestTuneThenQueryRuns(t *testing.T) {
	runsDir := t.TempDir()
	out := runCLI(t, "tune", "--duration", "0.5", "--samples", "2", "--workers", "2", "--runs-dir", runsDir)
	if !strings.Contains(out, "trials: 2") || !strings.Contains(out, "best_error: 70") {
		t.Fatalf("unexpected tune output:\n%s", out)
	}

	out = runCLI(t, "runs", "--runs-dir", runsDir)
	if !strings.Contains(out, "random_search") {
		t.Fatalf("expected run listing:\n%s", out)
	}

	out = runCLI(t, "trials", "--latest", "--runs-dir", runsDir)
	if strings.Count(out, "\n") != 3 {
		t.Fatalf("expected header plus 2 trials:\n%s", out)
	}

	paramsPath := filepath.Join(t.TempDir(), "best.yaml")
	out = runCLI(t, "best", "--latest", "--out", paramsPath, "--runs-dir", runsDir)
	if !strings.Contains(out, "sw_sw_con_new:") {
		t.Fatalf("expected params yaml:\n%s", out)
	}
	params, err := stats.ReadParams(paramsPath)
	if err != nil {
		t.Fatalf("read written params: %v", err)
	}
	if params != model.ReferenceParams() {
		t.Fatalf("expected warm start params to win ties, got %+v", params)
	}

	exportDir := t.TempDir()
	out = runCLI(t, "export", "--latest", "--out", exportDir, "--runs-dir", runsDir)
	if !strings.Contains(out, "exported run") {
		t.Fatalf("unexpected export output:\n%s", out)
	}
}

func TestSweepCommand(t *testing.T) {
	runsDir := t.TempDir()
	out := runCLI(t, "sweep",
		"--duration", "0.5",
		"--counts", "0,5",
		"--speeds", "0.5",
		"--targets", "stance",
		"--window-from", "0.1",
		"--window-to", "0.4",
		"--runs-dir", runsDir,
	)
	if !strings.Contains(out, "points: 2") || !strings.Contains(out, "degenerate: 2") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}

	out = runCLI(t, "show", "--latest", "--runs-dir", runsDir)
	if !strings.Contains(out, "algorithm: damage_sweep") || !strings.Contains(out, "COUNT") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
	if got := strings.Count(out, "stance"); got != 2 {
		t.Fatalf("expected 2 sweep rows, got %d:\n%s", got, out)
	}
}

func TestConfigFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	body := `
scape: two-limb
eval_time: 30
params:
  sw_sw_con_new: 0.3
simulation:
  duration: 12
  noise: 0.05
  speed:
    mode: constant
    value: 0.4
  damage:
    mode: window
    count: 10
    target: swing
    from: 2
    to: 8
    limbs: [1, 3]
search:
  samples: 7
  space:
    ranges:
      sw_sw_con_new: {low: -1, high: 1}
refine:
  enabled: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadExperimentConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scape != "two-limb" || cfg.EvalTime != 30 || cfg.Search.Samples != 7 || !cfg.Refine.Enabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Search.Workers != 1 || cfg.Refine.Steps != 5 || cfg.Simulation.StateNeurons != cpg.DefaultStateNeurons {
		t.Fatalf("expected defaults to survive overlay: %+v", cfg)
	}
	if r := cfg.Search.Space.Ranges["sw_sw_con_new"]; r.Low != -1 || r.High != 1 {
		t.Fatalf("unexpected search range %+v", r)
	}

	params, err := cfg.CouplingParams()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.SwSwConNew != 0.3 || params.InitSwing != model.ReferenceParams().InitSwing {
		t.Fatalf("unexpected params %+v", params)
	}

	sim, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	if sim.Duration != 12 || sim.Noise != 0.05 || sim.Gate != cpg.DefaultGateConfig() {
		t.Fatalf("unexpected simulation %+v", sim)
	}
	if speed, ok := sim.Speed.(cpg.Constant); !ok || speed.Value != 0.4 {
		t.Fatalf("expected constant speed, got %#v", sim.Speed)
	}
	damage, ok := sim.Damage.(cpg.Scheduled)
	if !ok || len(damage.Limbs) != 2 {
		t.Fatalf("expected scheduled damage on two limbs, got %#v", sim.Damage)
	}
	tag := model.PhaseTag{Limb: 1, Phase: model.PhaseSwing}
	if got := damage.Fn(5, 300, 12, tag); got[9] != cpg.SilenceCurrent || got[10] != 0 {
		t.Fatalf("expected ten silenced neurons inside the window")
	}
}

func TestExternalDamageFollowsSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "external.yaml")
	body := `simulation:
  damage:
    mode: external
    target: stance
    steps:
      - {at: 6, count: 0}
      - {at: 2, count: 25}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadExperimentConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	sim, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("simulation config: %v", err)
	}
	damage, ok := sim.Damage.(cpg.Scheduled)
	if !ok || damage.Signal == nil {
		t.Fatalf("expected scheduled damage with an external signal, got %#v", sim.Damage)
	}
	for _, tc := range []struct {
		at   float64
		want float64
	}{{1, 0}, {2, 25}, {4, 25}, {6, 0}, {9, 0}} {
		if got := damage.Signal(tc.at); got != tc.want {
			t.Fatalf("signal(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
	stance := model.PhaseTag{Limb: 2, Phase: model.PhaseStance}
	got := damage.Fn(damage.Signal(3), 300, 10, stance)
	if got[24] != cpg.SilenceCurrent || got[25] != 0 {
		t.Fatalf("expected 25 silenced stance neurons, got %v", got[:30])
	}
	swing := model.PhaseTag{Limb: 2, Phase: model.PhaseSwing}
	if got := damage.Fn(damage.Signal(3), 300, 10, swing); got[0] != 0 {
		t.Fatal("swing population must stay intact")
	}
}

func TestConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"speed mode":    "simulation:\n  speed:\n    mode: sine\n",
		"damage target": "simulation:\n  damage:\n    mode: progressive\n    target: tail\n",
		"damage steps":  "simulation:\n  damage:\n    mode: external\n",
		"param name":    "params:\n  not_a_param: 1\n",
		"duration":      "simulation:\n  duration: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := loadExperimentConfig(path)
			if err != nil {
				t.Fatalf("load config: %v", err)
			}
			_, perr := cfg.CouplingParams()
			_, serr := cfg.SimulationConfig()
			if perr == nil && serr == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := newLogger("debug", format)
		if err != nil {
			t.Fatalf("%s logger: %v", format, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Fatalf("%s logger should enable debug", format)
		}
	}
	if _, err := newLogger("loud", "json"); err == nil {
		t.Fatal("expected invalid level error")
	}
	if _, err := newLogger("info", "xml"); err == nil {
		t.Fatal("expected invalid format error")
	}
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"fly"}, &out); err == nil {
		t.Fatal("expected unknown command error")
	}
}
