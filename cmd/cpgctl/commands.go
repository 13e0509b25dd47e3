package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"quadcpg/internal/stats"
	"quadcpg/pkg/quadcpg"
)

func (c *cli) simulateCmd() *cobra.Command {
	var flags simFlags
	var traceDir string
	var stride int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the CPG once and summarize the gait cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, &c.cfg)
			params, err := c.cfg.CouplingParams()
			if err != nil {
				return err
			}
			sim, err := c.cfg.SimulationConfig()
			if err != nil {
				return err
			}
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Simulate(cmd.Context(), quadcpg.SimulateRequest{
				Params:      params,
				Sim:         sim,
				TraceDir:    traceDir,
				TraceStride: stride,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "samples: %d\nduration: %g\n", summary.Trace.Samples(), summary.Trace.Duration)
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LIMB\tCYCLES\tMEAN_PERIOD")
			for _, limb := range sortedKeys(summary.Cycles) {
				periods := summary.Cycles[limb].CycleDurations(summary.Trace.SampleRate)
				mean := 0.0
				if len(periods) > 0 {
					mean = floats.Sum(periods) / float64(len(periods))
				}
				fmt.Fprintf(w, "%d\t%d\t%.4f\n", limb, len(periods), mean)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if summary.TracePath != "" {
				fmt.Fprintf(c.out, "trace: %s\n", summary.TracePath)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&traceDir, "trace-dir", "", "write trace.csv to this directory")
	cmd.Flags().IntVar(&stride, "stride", 1, "write every n-th sample")
	return cmd
}

func (c *cli) evaluateCmd() *cobra.Command {
	var flags simFlags
	var speedFit, asJSON bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one parameter set against the Halbertsma gait data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, &c.cfg)
			params, err := c.cfg.CouplingParams()
			if err != nil {
				return err
			}
			sim, err := c.cfg.SimulationConfig()
			if err != nil {
				return err
			}
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Evaluate(cmd.Context(), quadcpg.EvaluateRequest{
				Scape:    c.cfg.Scape,
				Params:   params,
				Sim:      sim,
				EvalTime: c.cfg.EvalTime,
				SpeedFit: speedFit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, string(data))
				return nil
			}
			r := summary.Report
			fmt.Fprintf(c.out, "scape: %s\n", summary.Scape)
			fmt.Fprintf(c.out, "error: %g\n", r.Error)
			fmt.Fprintf(c.out, "error_phase: %g\n", r.Phase)
			fmt.Fprintf(c.out, "error_speed: %g\n", r.Speed)
			fmt.Fprintf(c.out, "error_symmetry1: %g\n", r.Symmetry1)
			fmt.Fprintf(c.out, "error_symmetry2: %g\n", r.Symmetry2)
			if summary.DegenerateReason != "" {
				fmt.Fprintf(c.out, "degenerate: %s\n", summary.DegenerateReason)
			}
			for _, limb := range sortedKeys(summary.Cycles) {
				fmt.Fprintf(c.out, "cycles limb=%d count=%d\n", limb, summary.Cycles[limb])
			}
			for _, limb := range sortedKeys(summary.SpeedFits) {
				fit := summary.SpeedFits[limb]
				fmt.Fprintf(c.out, "speed_fit limb=%d slope=%.4f intercept=%.4f r2=%.4f\n", limb, fit.Slope, fit.Intercept, fit.RSquared)
			}
			for _, limb := range sortedKeys(summary.Regressions) {
				fit := summary.Regressions[limb]
				fmt.Fprintf(c.out, "halbertsma limb=%d swing_r2=%.4f stance_r2=%.4f\n", limb, fit.Swing, fit.Stance)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&speedFit, "speed-fit", false, "fit the speed/velocity relationship per limb")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func (c *cli) tuneCmd() *cobra.Command {
	var flags simFlags
	var (
		samples    int
		searchSeed int64
		workers    int
		warmStart  bool
		refine     bool
		topK       int
		attempts   int
		steps      int
		stepSize   float64
		selection  string
		policy     string
	)
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Random search over the coupling space with optional hill-climb refinement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd, &c.cfg)
			fs := cmd.Flags()
			s, r := &c.cfg.Search, &c.cfg.Refine
			if fs.Changed("samples") {
				s.Samples = samples
			}
			if fs.Changed("search-seed") {
				s.Seed = searchSeed
			}
			if fs.Changed("workers") {
				s.Workers = workers
			}
			if fs.Changed("warm-start") {
				s.WarmStart = warmStart
			}
			if fs.Changed("refine") {
				r.Enabled = refine
			}
			if fs.Changed("top-k") {
				r.TopK = topK
			}
			if fs.Changed("attempts") {
				r.Attempts = attempts
			}
			if fs.Changed("steps") {
				r.Steps = steps
			}
			if fs.Changed("step-size") {
				r.StepSize = stepSize
			}
			if fs.Changed("selection") {
				r.Selection = selection
			}
			if fs.Changed("policy") {
				r.Policy = policy
			}

			base, err := c.cfg.CouplingParams()
			if err != nil {
				return err
			}
			sim, err := c.cfg.SimulationConfig()
			if err != nil {
				return err
			}
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Tune(cmd.Context(), quadcpg.TuneRequest{
				Scape:                 c.cfg.Scape,
				Sim:                   sim,
				EvalTime:              c.cfg.EvalTime,
				Samples:               s.Samples,
				Seed:                  s.Seed,
				Workers:               s.Workers,
				Space:                 s.Space,
				Base:                  &base,
				WarmStart:             s.WarmStart,
				Refine:                r.Enabled,
				RefineTopK:            r.TopK,
				TuneAttempts:          r.Attempts,
				TuneAttemptPolicy:     r.Policy,
				TuneAttemptParam:      r.PolicyParam,
				TuneSteps:             r.Steps,
				TuneStepSize:          r.StepSize,
				TunePerturbationRange: r.PerturbationRange,
				TuneAnnealingFactor:   r.AnnealingFactor,
				TuneMinImprovement:    r.MinImprovement,
				TuneSelection:         r.Selection,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "run_id: %s\n", summary.RunID)
			fmt.Fprintf(c.out, "trials: %d\n", summary.Trials)
			fmt.Fprintf(c.out, "best_trial: %s\n", summary.Best.ID)
			fmt.Fprintf(c.out, "best_error: %g\n", summary.Best.Report.Error)
			fmt.Fprintf(c.out, "artifacts: %s\n", summary.ArtifactsDir)
			return nil
		},
	}
	flags.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&samples, "samples", 0, "number of search trials")
	fs.Int64Var(&searchSeed, "search-seed", 0, "search random seed")
	fs.IntVar(&workers, "workers", 0, "parallel evaluations")
	fs.BoolVar(&warmStart, "warm-start", true, "evaluate the reference params first")
	fs.BoolVar(&refine, "refine", false, "hill-climb from the best trials")
	fs.IntVar(&topK, "top-k", 0, "trials to refine")
	fs.IntVar(&attempts, "attempts", 0, "hill-climb attempts per refined trial")
	fs.IntVar(&steps, "steps", 0, "perturbation steps per candidate")
	fs.Float64Var(&stepSize, "step-size", 0, "perturbation step size")
	fs.StringVar(&selection, "selection", "", "candidate selection: best_so_far|original|dynamic|dynamic_random|all|all_random|recent|recent_random")
	fs.StringVar(&policy, "policy", "", "attempt policy: fixed|rank_decay|dimension_scaled")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	var (
		scapeName  string
		paramsFile string
		duration   float64
		seed       int64
		counts     []int
		speeds     []float64
		targets    []string
		windowFrom float64
		windowTo   float64
		repeats    int
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Score a parameter set over damage counts, speeds and damaged phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			sw := &c.cfg.Sweep
			if fs.Changed("scape") {
				c.cfg.Scape = scapeName
			}
			if fs.Changed("params") {
				c.cfg.ParamsFile = paramsFile
			}
			if fs.Changed("seed") {
				c.cfg.Simulation.Seed = seed
			}
			if fs.Changed("duration") {
				sw.Duration = duration
			}
			if fs.Changed("counts") {
				sw.Counts = counts
			}
			if fs.Changed("speeds") {
				sw.Speeds = speeds
			}
			if fs.Changed("targets") {
				sw.Targets = targets
			}
			if fs.Changed("window-from") {
				sw.WindowFrom = &windowFrom
			}
			if fs.Changed("window-to") {
				sw.WindowTo = &windowTo
			}
			if fs.Changed("repeats") {
				sw.Repeats = repeats
			}
			if fs.Changed("workers") {
				sw.Workers = workers
			}

			params, err := c.cfg.CouplingParams()
			if err != nil {
				return err
			}
			sim, err := c.cfg.SimulationConfig()
			if err != nil {
				return err
			}
			if sw.Duration > 0 {
				sim.Duration = sw.Duration
			}
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Sweep(cmd.Context(), quadcpg.SweepRequest{
				Scape:      c.cfg.Scape,
				Params:     &params,
				Sim:        &sim,
				Counts:     sw.Counts,
				Speeds:     sw.Speeds,
				Targets:    sw.Targets,
				WindowFrom: sw.WindowFrom,
				WindowTo:   sw.WindowTo,
				Repeats:    sw.Repeats,
				Workers:    sw.Workers,
			})
			if err != nil {
				return err
			}
			degenerate := 0
			for _, p := range summary.Points {
				if p.Report.Degenerate {
					degenerate++
				}
			}
			fmt.Fprintf(c.out, "run_id: %s\n", summary.RunID)
			fmt.Fprintf(c.out, "points: %d\n", len(summary.Points))
			fmt.Fprintf(c.out, "degenerate: %d\n", degenerate)
			fmt.Fprintf(c.out, "artifacts: %s\n", summary.ArtifactsDir)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&scapeName, "scape", "", "scape: quadruped|two-limb")
	fs.StringVar(&paramsFile, "params", "", "YAML or JSON coupling params file")
	fs.Float64Var(&duration, "duration", 0, "simulated seconds per point")
	fs.Int64Var(&seed, "seed", 0, "simulation seed of the first repeat")
	fs.IntSliceVar(&counts, "counts", nil, "silenced neuron counts")
	fs.Float64SliceVar(&speeds, "speeds", nil, "constant speed drives")
	fs.StringSliceVar(&targets, "targets", nil, "damaged phases: swing|stance|all")
	fs.Float64Var(&windowFrom, "window-from", 0, "damage start time")
	fs.Float64Var(&windowTo, "window-to", 0, "damage end time")
	fs.IntVar(&repeats, "repeats", 0, "repeats per point with consecutive seeds")
	fs.IntVar(&workers, "workers", 0, "parallel evaluations")
	return cmd
}

func (c *cli) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), quadcpg.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(c.out, "no runs found")
				return nil
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN_ID\tCREATED\tSCAPE\tALGORITHM\tSAMPLES\tBEST_ERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%g\n", run.RunID, run.CreatedAtUTC, run.Scape, run.Algorithm, run.Samples, run.FinalBestError)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func (c *cli) trialsCmd() *cobra.Command {
	var req quadcpg.TrialsRequest
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "List the trials of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			trials, err := client.Trials(cmd.Context(), req)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tTRIAL_ID\tERROR\tPHASE\tSPEED\tSYM1\tSYM2\tDEGENERATE")
			for _, t := range trials {
				r := t.Report
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%t\n", t.Index, t.ID, r.Error, r.Phase, r.Speed, r.Symmetry1, r.Symmetry2, r.Degenerate)
			}
			return w.Flush()
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&req.RunID, "run-id", "", "run id")
	fs.BoolVar(&req.Latest, "latest", false, "use the most recent run")
	fs.IntVar(&req.Limit, "limit", 0, "max trials to list (0 = all)")
	fs.BoolVar(&req.ByError, "by-error", false, "order by error, best first")
	return cmd
}

func (c *cli) bestCmd() *cobra.Command {
	var req quadcpg.BestRequest
	var outPath string
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the best parameter set of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			best, err := client.Best(cmd.Context(), req)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := stats.WriteParams(outPath, best.Params); err != nil {
					return err
				}
			}
			data, err := yaml.Marshal(best.Params)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "# run %s error %g\n%s", best.RunID, best.Report.Error, data)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&req.RunID, "run-id", "", "run id")
	fs.BoolVar(&req.Latest, "latest", false, "use the most recent run")
	fs.StringVar(&outPath, "out", "", "also write the params to this YAML file")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var req quadcpg.ShowRequest
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the recorded configuration of a run and its sweep points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			show, err := client.Show(cmd.Context(), req)
			if err != nil {
				return err
			}
			cfg := show.Config
			fmt.Fprintf(c.out, "run_id: %s\nscape: %s\nalgorithm: %s\nsamples: %d\nseed: %d\nduration: %g\ndt: %g\n",
				show.RunID, cfg.Scape, cfg.Algorithm, cfg.Samples, cfg.Seed, cfg.Duration, cfg.Dt)
			if len(show.Sweep) == 0 {
				return nil
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COUNT\tSPEED\tTARGET\tSEED\tERROR\tDEGENERATE")
			for _, p := range show.Sweep {
				fmt.Fprintf(w, "%d\t%.3f\t%s\t%d\t%.4f\t%t\n", p.Count, p.Speed, p.Target, p.Seed, p.Report.Error, p.Report.Degenerate)
			}
			return w.Flush()
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&req.RunID, "run-id", "", "run id")
	fs.BoolVar(&req.Latest, "latest", false, "use the most recent run")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var req quadcpg.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to the exports directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "exported run %s to %s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&req.RunID, "run-id", "", "run id")
	fs.BoolVar(&req.Latest, "latest", false, "use the most recent run")
	fs.StringVar(&req.OutDir, "out", "", "destination directory")
	return cmd
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
