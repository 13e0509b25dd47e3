// Package quadcpg is the public entry point: simulate the quadruped CPG,
// score it against the Halbertsma gait data, search its coupling space and
// run damage sweeps, persisting runs and trials.
package quadcpg

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quadcpg/internal/cpg"
	"quadcpg/internal/fitness"
	"quadcpg/internal/gait"
	"quadcpg/internal/metrics"
	"quadcpg/internal/model"
	"quadcpg/internal/scape"
	"quadcpg/internal/stats"
	"quadcpg/internal/storage"
	"quadcpg/internal/tuning"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "quadcpg.db"
	defaultSamples    = 100
	defaultTopTrials  = 10
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *zap.Logger
	// Metrics receives one observation per evaluation when set.
	Metrics *metrics.Recorder
}

type Client struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *metrics.Recorder

	runsDir    string
	exportsDir string
	now        func() time.Time
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		metrics:    opts.Metrics,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		now:        time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

type SimulateRequest struct {
	Params model.CouplingParams
	Sim    cpg.SimulationConfig
	// TraceDir receives trace.csv when set.
	TraceDir    string
	TraceStride int
}

type SimulateSummary struct {
	Trace     model.SimulationTrace
	Cycles    map[int]gait.Cycles
	TracePath string
}

// Simulate runs the model once and extracts the gait cycles of every limb.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulateSummary, error) {
	trace, err := cpg.Simulate(ctx, req.Params, req.Sim)
	if err != nil {
		return SimulateSummary{}, err
	}
	summary := SimulateSummary{Trace: trace, Cycles: gait.ExtractTrace(trace)}
	if req.TraceDir != "" {
		path, err := stats.WriteTrace(req.TraceDir, trace, req.TraceStride)
		if err != nil {
			return SimulateSummary{}, err
		}
		summary.TracePath = filepath.Clean(path)
	}
	c.logger.Info("simulated",
		zap.Float64("duration", trace.Duration),
		zap.Int("samples", trace.Samples()),
	)
	return summary, nil
}

type EvaluateRequest struct {
	Scape  string
	Params model.CouplingParams
	Sim    cpg.SimulationConfig
	// EvalTime bounds the two-limb score; zero scores the whole trace.
	EvalTime float64
	// SpeedFit adds the per-limb speed/velocity regression and the fit of
	// phase durations to the Halbertsma regressions.
	SpeedFit bool
}

type EvaluateSummary struct {
	Scape            string
	Report           model.FitnessReport
	Cycles           map[int]int
	DegenerateReason string
	SpeedFits        map[int]gait.SpeedFit
	Regressions      map[int]fitness.RegressionFit
}

// Evaluate simulates and scores one parameter vector.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	sc, err := c.scape(req.Scape, req.Sim, req.EvalTime)
	if err != nil {
		return EvaluateSummary{}, err
	}
	report, trace, err := c.evaluate(ctx, sc, req.Params)
	if err != nil {
		return EvaluateSummary{}, err
	}
	summary := EvaluateSummary{Scape: sc.Name(), Report: report}
	if counts, ok := trace[scape.TraceCycles].(map[int]int); ok {
		summary.Cycles = counts
	}
	if reason, ok := trace[scape.TraceReason].(string); ok {
		summary.DegenerateReason = reason
	}
	if req.SpeedFit {
		sim, ok := scape.SimulationOf(trace)
		if !ok {
			return EvaluateSummary{}, errors.New("evaluation trace has no simulation")
		}
		summary.SpeedFits, summary.Regressions = gaitFits(sim)
	}
	return summary, nil
}

// gaitFits fits every limb with enough cycles; limbs that cannot be fitted
// are left out.
func gaitFits(trace model.SimulationTrace) (map[int]gait.SpeedFit, map[int]fitness.RegressionFit) {
	speeds := make(map[int]gait.SpeedFit)
	regressions := make(map[int]fitness.RegressionFit)
	for limb, cycles := range gait.ExtractTrace(trace) {
		if fit, err := gait.SpeedRelationship(cycles, trace.Speed, trace.SampleRate); err == nil {
			speeds[limb] = fit
		}
		if fit, err := fitness.Regression(cycles, trace.SampleRate); err == nil {
			regressions[limb] = fit
		}
	}
	return speeds, regressions
}

func (c *Client) scape(name string, sim cpg.SimulationConfig, evalTime float64) (scape.Scape, error) {
	sc, err := scape.New(name, sim, c.logger)
	if err != nil {
		return nil, err
	}
	if two, ok := sc.(scape.TwoLimbScape); ok {
		two.EvalTime = evalTime
		sc = two
	}
	return sc, nil
}

func (c *Client) evaluate(ctx context.Context, sc scape.Scape, params model.CouplingParams) (model.FitnessReport, scape.Trace, error) {
	start := time.Now()
	report, trace, err := sc.Evaluate(ctx, params)
	c.metrics.ObserveEvaluation(sc.Name(), report, err, time.Since(start))
	return report, trace, err
}

func (c *Client) fitness(sc scape.Scape) tuning.FitnessFn {
	return func(ctx context.Context, params model.CouplingParams) (model.FitnessReport, error) {
		report, _, err := c.evaluate(ctx, sc, params)
		return report, err
	}
}

type TuneRequest struct {
	Scape    string
	Sim      cpg.SimulationConfig
	EvalTime float64
	Samples  int
	Seed     int64
	Workers  int
	// Space defaults to the reference search space when it has no entries.
	Space     tuning.SearchSpace
	Base      *model.CouplingParams
	WarmStart bool

	Refine                bool
	RefineTopK            int
	TuneAttempts          int
	TuneAttemptPolicy     string
	TuneAttemptParam      float64
	TuneSteps             int
	TuneStepSize          float64
	TunePerturbationRange float64
	TuneAnnealingFactor   float64
	TuneMinImprovement    float64
	TuneSelection         string
}

type TuneSummary struct {
	RunID        string
	ArtifactsDir string
	Trials       int
	ErrorHistory []float64
	Best         tuning.Trial
	Refined      []tuning.RefineResult
}

// Tune runs a random search over the coupling space, optionally refines the
// best trials with the hill climber, and persists every trial.
func (c *Client) Tune(ctx context.Context, req TuneRequest) (TuneSummary, error) {
	if req.Samples <= 0 {
		req.Samples = defaultSamples
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if len(req.Space.Fixed) == 0 && len(req.Space.Ranges) == 0 {
		req.Space = tuning.DefaultSearchSpace()
	}
	base := model.ReferenceParams()
	if req.Base != nil {
		base = *req.Base
	}
	if req.TuneSteps <= 0 {
		req.TuneSteps = 5
	}
	if req.TuneStepSize <= 0 {
		req.TuneStepSize = 0.1
	}
	if req.TuneAttempts <= 0 {
		req.TuneAttempts = 3
	}

	sc, err := c.scape(req.Scape, req.Sim, req.EvalTime)
	if err != nil {
		return TuneSummary{}, err
	}
	fitness := c.fitness(sc)
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))

	search := &tuning.RandomSearch{
		Rand:    rand.New(rand.NewSource(req.Seed)),
		Space:   req.Space,
		Base:    base,
		Samples: req.Samples,
		Workers: req.Workers,
		Logger:  logger,
	}
	if req.WarmStart {
		search.WarmStart = []model.CouplingParams{model.ReferenceParams()}
	}
	result, err := search.Search(ctx, fitness)
	if err != nil {
		return TuneSummary{}, err
	}
	trials := result.Trials
	best := result.Best
	algorithm := search.Name()

	var refined []tuning.RefineResult
	if req.Refine {
		policy, err := tuning.AttemptPolicyFromConfig(req.TuneAttemptPolicy, req.TuneAttemptParam)
		if err != nil {
			return TuneSummary{}, err
		}
		exo := &tuning.Exoself{
			Rand:               rand.New(rand.NewSource(req.Seed + 1)),
			Steps:              req.TuneSteps,
			StepSize:           req.TuneStepSize,
			PerturbationRange:  req.TunePerturbationRange,
			AnnealingFactor:    req.TuneAnnealingFactor,
			MinImprovement:     req.TuneMinImprovement,
			CandidateSelection: req.TuneSelection,
			Space:              req.Space,
			Workers:            req.Workers,
			Logger:             logger,
		}
		refine := tuning.Refine{
			Tuner:    exo,
			Policy:   policy,
			Attempts: req.TuneAttempts,
			TopK:     req.RefineTopK,
			Free:     len(req.Space.Free()),
			Logger:   logger,
		}
		refined, best, err = refine.Run(ctx, result.Trials, fitness)
		if err != nil {
			return TuneSummary{}, err
		}
		for i, r := range refined {
			t := r.Refined
			t.Index = len(result.Trials) + i
			refined[i].Refined = t
			trials = append(trials, t)
			if t.ID == best.ID {
				best = t
			}
		}
		algorithm += "+" + exo.Name()
	}

	createdAt := c.now().UTC().Format(time.RFC3339Nano)
	for _, t := range trials {
		if err := c.store.SaveTrial(ctx, model.TrialRecord{
			VersionedRecord: storage.Stamp(),
			ID:              t.ID,
			RunID:           runID,
			Index:           t.Index,
			Params:          t.Params,
			Report:          t.Report,
			CreatedAt:       createdAt,
		}); err != nil {
			return TuneSummary{}, err
		}
	}
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Scape:           sc.Name(),
		Algorithm:       algorithm,
		Samples:         len(trials),
		Seed:            req.Seed,
		BestTrialID:     best.ID,
		BestParams:      best.Params,
		BestReport:      best.Report,
		CreatedAt:       createdAt,
	}); err != nil {
		return TuneSummary{}, err
	}

	errorsByIndex := make([]float64, len(trials))
	for i, t := range trials {
		errorsByIndex[i] = t.Report.Error
	}
	history := stats.BestSoFar(errorsByIndex)
	ranked := tuning.Ranked(trials)
	top := make([]stats.RankedTrial, 0, min(len(ranked), defaultTopTrials))
	for i, t := range ranked[:min(len(ranked), defaultTopTrials)] {
		top = append(top, stats.RankedTrial{Rank: i + 1, ID: t.ID, Index: t.Index, Params: t.Params, Report: t.Report})
	}

	cfg := stats.RunConfig{
		RunID:              runID,
		Scape:              sc.Name(),
		Algorithm:          algorithm,
		Samples:            req.Samples,
		Seed:               req.Seed,
		Workers:            req.Workers,
		Duration:           req.Sim.Duration,
		Dt:                 req.Sim.Dt,
		Noise:              req.Sim.Noise,
		EvalTime:           req.EvalTime,
		WarmStart:          req.WarmStart,
		SearchFixed:        req.Space.Fixed,
		SearchRanges:       rangeBounds(req.Space),
		RefineTopK:         req.RefineTopK,
		TuneSelection:      req.TuneSelection,
		TuneAttemptPolicy:  req.TuneAttemptPolicy,
		TuneAttemptParam:   req.TuneAttemptParam,
		TuneAttempts:       req.TuneAttempts,
		TuneSteps:          req.TuneSteps,
		TuneStepSize:       req.TuneStepSize,
		TunePerturbation:   req.TunePerturbationRange,
		TuneAnnealing:      req.TuneAnnealingFactor,
		TuneMinImprovement: req.TuneMinImprovement,
	}
	if !req.Refine {
		cfg.RefineTopK = 0
	}
	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:         cfg,
		ErrorHistory:   history,
		FinalBestError: best.Report.Error,
		BestParams:     best.Params,
		BestReport:     best.Report,
		TopTrials:      top,
	})
	if err != nil {
		return TuneSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:          runID,
		Scape:          sc.Name(),
		Algorithm:      algorithm,
		Samples:        len(trials),
		Seed:           req.Seed,
		Workers:        req.Workers,
		FinalBestError: best.Report.Error,
		CreatedAtUTC:   createdAt,
	}); err != nil {
		return TuneSummary{}, err
	}

	c.metrics.SetBest(runID, sc.Name(), best.Report.Error)
	logger.Info("tuning run stored",
		zap.String("artifacts", runDir),
		zap.Int("trials", len(trials)),
		zap.Float64("best_error", best.Report.Error),
	)
	return TuneSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Trials:       len(trials),
		ErrorHistory: history,
		Best:         best,
		Refined:      refined,
	}, nil
}

func rangeBounds(space tuning.SearchSpace) map[string][2]float64 {
	if len(space.Ranges) == 0 {
		return nil
	}
	out := make(map[string][2]float64, len(space.Ranges))
	for name, r := range space.Ranges {
		out[name] = [2]float64{r.Low, r.High}
	}
	return out
}

type SweepRequest struct {
	Scape  string
	Params *model.CouplingParams
	// Sim overrides the sweep's 30 second run. Speed and Damage are set per
	// point.
	Sim        *cpg.SimulationConfig
	Counts     []int
	Speeds     []float64
	Targets    []string
	WindowFrom *float64
	WindowTo   *float64
	Repeats    int
	Workers    int
}

type SweepSummary struct {
	RunID        string
	ArtifactsDir string
	Points       []tuning.SweepPoint
}

// Sweep scores one parameter vector over a grid of damage counts, speeds
// and damaged phases. Empty grid axes use the reference sweep.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	params := model.ReferenceParams()
	if req.Params != nil {
		params = *req.Params
	}
	sweep := tuning.DefaultDamageSweep(params)
	if req.Sim != nil {
		sweep.Sim = *req.Sim
	}
	if len(req.Counts) > 0 {
		sweep.Counts = req.Counts
	}
	if len(req.Speeds) > 0 {
		sweep.Speeds = req.Speeds
	}
	if len(req.Targets) > 0 {
		sweep.Targets = nil
		for _, name := range req.Targets {
			target, err := cpg.ParseDamageTarget(name)
			if err != nil {
				return SweepSummary{}, err
			}
			sweep.Targets = append(sweep.Targets, target)
		}
	}
	if req.WindowFrom != nil {
		sweep.WindowFrom = *req.WindowFrom
	}
	if req.WindowTo != nil {
		sweep.WindowTo = *req.WindowTo
	}
	if req.Repeats > 0 {
		sweep.Repeats = req.Repeats
	}
	sweep.Workers = max(req.Workers, 1)

	sc, err := c.scape(req.Scape, sweep.Sim, 0)
	if err != nil {
		return SweepSummary{}, err
	}
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))
	sweep.Logger = logger

	points, err := sweep.Run(ctx, func(ctx context.Context, p model.CouplingParams, sim cpg.SimulationConfig) (model.FitnessReport, error) {
		pointScape, err := c.scape(sc.Name(), sim, 0)
		if err != nil {
			return model.FitnessReport{}, err
		}
		report, _, err := c.evaluate(ctx, pointScape, p)
		return report, err
	})
	if err != nil {
		return SweepSummary{}, err
	}

	records := make([]model.SweepPointRecord, len(points))
	for i, p := range points {
		records[i] = model.SweepPointRecord{Count: p.Count, Speed: p.Speed, Target: string(p.Target), Seed: p.Seed, Report: p.Report}
	}
	createdAt := c.now().UTC().Format(time.RFC3339Nano)
	if err := c.store.SaveSweep(ctx, runID, records); err != nil {
		return SweepSummary{}, err
	}
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Scape:           sc.Name(),
		Algorithm:       "damage_sweep",
		Samples:         len(points),
		Seed:            sweep.Sim.Seed,
		BestParams:      params,
		CreatedAt:       createdAt,
	}); err != nil {
		return SweepSummary{}, err
	}

	runDir := filepath.Join(c.runsDir, runID)
	if err := stats.WriteRunConfig(c.runsDir, runID, stats.RunConfig{
		Scape:     sc.Name(),
		Algorithm: "damage_sweep",
		Samples:   len(points),
		Seed:      sweep.Sim.Seed,
		Workers:   sweep.Workers,
		Duration:  sweep.Sim.Duration,
		Dt:        sweep.Sim.Dt,
		Noise:     sweep.Sim.Noise,
	}); err != nil {
		return SweepSummary{}, err
	}
	if err := stats.WriteSweep(runDir, records); err != nil {
		return SweepSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		Scape:        sc.Name(),
		Algorithm:    "damage_sweep",
		Samples:      len(points),
		Seed:         sweep.Sim.Seed,
		Workers:      sweep.Workers,
		CreatedAtUTC: createdAt,
	}); err != nil {
		return SweepSummary{}, err
	}
	return SweepSummary{RunID: runID, ArtifactsDir: filepath.Clean(runDir), Points: points}, nil
}

type RunsRequest struct {
	Limit int
}

// Runs lists the run index, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

type TrialsRequest struct {
	RunID  string
	Latest bool
	Limit  int
	// ByError orders trials best first instead of by evaluation index.
	ByError bool
}

// Trials returns the stored trials of a run. When the store does not hold
// the run, the ranked top trials from its artifacts are returned.
func (c *Client) Trials(ctx context.Context, req TrialsRequest) ([]model.TrialRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	trials, err := c.store.ListTrials(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		top, ok, err := stats.ReadTopTrials(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		for _, t := range top {
			trials = append(trials, model.TrialRecord{ID: t.ID, RunID: runID, Index: t.Index, Params: t.Params, Report: t.Report})
		}
	}
	if req.ByError {
		sortByError(trials)
	}
	if req.Limit > 0 && len(trials) > req.Limit {
		trials = trials[:req.Limit]
	}
	return trials, nil
}

type BestRequest struct {
	RunID  string
	Latest bool
}

type BestSummary struct {
	RunID  string
	Params model.CouplingParams
	Report model.FitnessReport
}

// Best returns the best parameter set of a run from the store, falling back
// to the run artifacts.
func (c *Client) Best(ctx context.Context, req BestRequest) (BestSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return BestSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return BestSummary{}, err
	}
	if ok {
		return BestSummary{RunID: runID, Params: run.BestParams, Report: run.BestReport}, nil
	}
	params, ok, err := stats.ReadBestParams(c.runsDir, runID)
	if err != nil {
		return BestSummary{}, err
	}
	if !ok {
		return BestSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	summary := BestSummary{RunID: runID, Params: params}
	top, ok, err := stats.ReadTopTrials(c.runsDir, runID)
	if err != nil {
		return BestSummary{}, err
	}
	if ok && len(top) > 0 {
		summary.Report = top[0].Report
	}
	return summary, nil
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowSummary struct {
	RunID  string
	Config stats.RunConfig
	Sweep  []model.SweepPointRecord
}

// Show returns the recorded configuration of a run and, for damage sweeps,
// its points. Sweep points come from the store when it has them.
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ShowSummary{}, err
	}
	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		return ShowSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	points, ok, err := c.store.GetSweep(ctx, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		if points, _, err = stats.ReadSweep(c.runsDir, runID); err != nil {
			return ShowSummary{}, err
		}
	}
	return ShowSummary{RunID: runID, Config: cfg, Sweep: points}, nil
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func sortByError(trials []model.TrialRecord) {
	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Report.Error < trials[j].Report.Error
	})
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if runID != "" {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
