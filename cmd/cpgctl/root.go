package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quadcpg/internal/metrics"
	"quadcpg/internal/storage"
	"quadcpg/pkg/quadcpg"
)

type cli struct {
	out io.Writer

	configPath  string
	logLevel    string
	logFormat   string
	storeKind   string
	dbPath      string
	runsDir     string
	exportsDir  string
	metricsFile string
	metricsAddr string

	cfg      ExperimentConfig
	logger   *zap.Logger
	recorder *metrics.Recorder
	server   *http.Server
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:   "cpgctl",
		Short: "Quadruped central pattern generator toolkit",
		Long: `cpgctl simulates the four-limb CPG, scores its gait against the
Halbertsma cat locomotion data, searches the coupling space and runs
neuron-silencing damage sweeps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML experiment file")
	pf.StringVar(&c.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&c.logFormat, "log-format", "console", "log format: console|json")
	pf.StringVar(&c.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	pf.StringVar(&c.dbPath, "db-path", "quadcpg.db", "sqlite database path")
	pf.StringVar(&c.runsDir, "runs-dir", "runs", "run artifacts directory")
	pf.StringVar(&c.exportsDir, "exports-dir", "exports", "export destination directory")
	pf.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(
		c.simulateCmd(),
		c.evaluateCmd(),
		c.tuneCmd(),
		c.sweepCmd(),
		c.runsCmd(),
		c.trialsCmd(),
		c.bestCmd(),
		c.showCmd(),
		c.exportCmd(),
	)
	return root
}

func (c *cli) setup() error {
	logger, err := newLogger(c.logLevel, c.logFormat)
	if err != nil {
		return err
	}
	cfg, err := loadExperimentConfig(c.configPath)
	if err != nil {
		return err
	}
	c.logger = logger
	c.cfg = cfg

	if c.metricsFile == "" && c.metricsAddr == "" {
		return nil
	}
	c.recorder = metrics.New()
	if c.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", c.recorder.Handler())
		c.server = &http.Server{Addr: c.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.String("addr", c.metricsAddr), zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", c.metricsAddr))
	}
	return nil
}

func (c *cli) teardown() error {
	var err error
	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = c.server.Shutdown(ctx)
	}
	if c.metricsFile != "" {
		err = errors.Join(err, c.recorder.WriteFile(c.metricsFile))
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return err
}

func (c *cli) client(ctx context.Context) (*quadcpg.Client, error) {
	client, err := quadcpg.New(quadcpg.Options{
		StoreKind:  c.storeKind,
		DBPath:     c.dbPath,
		RunsDir:    c.runsDir,
		ExportsDir: c.exportsDir,
		Logger:     c.logger,
		Metrics:    c.recorder,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// simFlags are the simulation overrides shared by simulate, evaluate and
// tune.
type simFlags struct {
	scape      string
	paramsFile string
	duration   float64
	seed       int64
	noise      float64
	speed      float64
	evalTime   float64
}

func (f *simFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.scape, "scape", "", "scape: quadruped|two-limb")
	fs.StringVar(&f.paramsFile, "params", "", "YAML or JSON coupling params file")
	fs.Float64Var(&f.duration, "duration", 0, "simulated seconds")
	fs.Int64Var(&f.seed, "seed", 0, "simulation seed")
	fs.Float64Var(&f.noise, "noise", 0, "integrator noise standard deviation")
	fs.Float64Var(&f.speed, "speed", 0, "hold the speed drive constant at this value instead of ramping")
	fs.Float64Var(&f.evalTime, "eval-time", 0, "two-limb scored horizon")
}

func (f *simFlags) apply(cmd *cobra.Command, cfg *ExperimentConfig) {
	fs := cmd.Flags()
	if fs.Changed("scape") {
		cfg.Scape = f.scape
	}
	if fs.Changed("params") {
		cfg.ParamsFile = f.paramsFile
	}
	if fs.Changed("duration") {
		cfg.Simulation.Duration = f.duration
	}
	if fs.Changed("seed") {
		cfg.Simulation.Seed = f.seed
	}
	if fs.Changed("noise") {
		cfg.Simulation.Noise = f.noise
	}
	if fs.Changed("speed") {
		cfg.Simulation.Speed = SpeedSection{Mode: "constant", Value: f.speed}
	}
	if fs.Changed("eval-time") {
		cfg.EvalTime = f.evalTime
	}
}
