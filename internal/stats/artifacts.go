package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"quadcpg/internal/model"
)

const (
	runIndexFile   = "run_index.json"
	bestParamsFile = "best_params.yaml"
	sweepFile      = "sweep.csv"
	traceFile      = "trace.csv"
)

// RunConfig records how a tuning run was configured.
type RunConfig struct {
	RunID              string                `json:"run_id"`
	Scape              string                `json:"scape"`
	Algorithm          string                `json:"algorithm"`
	Samples            int                   `json:"samples"`
	Seed               int64                 `json:"seed"`
	Workers            int                   `json:"workers"`
	Duration           float64               `json:"duration"`
	Dt                 float64               `json:"dt"`
	Noise              float64               `json:"noise,omitempty"`
	EvalTime           float64               `json:"eval_time,omitempty"`
	WarmStart          bool                  `json:"warm_start"`
	SearchFixed        map[string]float64    `json:"search_fixed,omitempty"`
	SearchRanges       map[string][2]float64 `json:"search_ranges,omitempty"`
	RefineTopK         int                   `json:"refine_top_k,omitempty"`
	TuneSelection      string                `json:"tune_selection,omitempty"`
	TuneAttemptPolicy  string                `json:"tune_attempt_policy,omitempty"`
	TuneAttemptParam   float64               `json:"tune_attempt_param,omitempty"`
	TuneAttempts       int                   `json:"tune_attempts,omitempty"`
	TuneSteps          int                   `json:"tune_steps,omitempty"`
	TuneStepSize       float64               `json:"tune_step_size,omitempty"`
	TunePerturbation   float64               `json:"tune_perturbation_range,omitempty"`
	TuneAnnealing      float64               `json:"tune_annealing_factor,omitempty"`
	TuneMinImprovement float64               `json:"tune_min_improvement,omitempty"`
}

// RankedTrial is one entry of top_trials.json, best first.
type RankedTrial struct {
	Rank   int                  `json:"rank"`
	ID     string               `json:"id"`
	Index  int                  `json:"index"`
	Params model.CouplingParams `json:"params"`
	Report model.FitnessReport  `json:"report"`
}

type RunArtifacts struct {
	Config         RunConfig            `json:"config"`
	ErrorHistory   []float64            `json:"error_history"`
	FinalBestError float64              `json:"final_best_error"`
	BestParams     model.CouplingParams `json:"best_params"`
	BestReport     model.FitnessReport  `json:"best_report"`
	TopTrials      []RankedTrial        `json:"top_trials"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Scape          string  `json:"scape"`
	Algorithm      string  `json:"algorithm"`
	Samples        int     `json:"samples"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	FinalBestError float64 `json:"final_best_error"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// BestSoFar turns per-trial errors into the running minimum.
func BestSoFar(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, e := range values {
		if i == 0 || e < out[i-1] {
			out[i] = e
			continue
		}
		out[i] = out[i-1]
	}
	return out
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"error_history":    artifacts.ErrorHistory,
		"final_best_error": artifacts.FinalBestError,
		"best_report":      artifacts.BestReport,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_trials.json"), artifacts.TopTrials); err != nil {
		return "", err
	}
	if err := WriteParams(filepath.Join(runDir, bestParamsFile), artifacts.BestParams); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// readRunIndex returns the index in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	order := make(map[string]int, len(entries))
	for i, entry := range entries {
		order[entry.RunID] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtUTC == entries[j].CreatedAtUTC {
			// Equal timestamps: the later append sorts first.
			return order[entries[i].RunID] > order[entries[j].RunID]
		}
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir. The sweep and trace
// files are copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "fitness_history.json", "top_trials.json", bestParamsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{sweepFile, traceFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadTopTrials(baseDir, runID string) ([]RankedTrial, bool, error) {
	var top []RankedTrial
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_trials.json"), &top)
	return top, ok, err
}

// ReadBestParams loads the best parameter set of a run.
func ReadBestParams(baseDir, runID string) (model.CouplingParams, bool, error) {
	path := filepath.Join(baseDir, runID, bestParamsFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return model.CouplingParams{}, false, nil
		}
		return model.CouplingParams{}, false, err
	}
	params, err := ReadParams(path)
	if err != nil {
		return model.CouplingParams{}, false, err
	}
	return params, true, nil
}

// WriteParams stores params as YAML so they can be fed back as a params file.
func WriteParams(path string, params model.CouplingParams) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadParams loads a YAML or JSON params file. Fields missing from the file
// keep their reference values.
func ReadParams(path string) (model.CouplingParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CouplingParams{}, err
	}
	params := model.ReferenceParams()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &params)
	} else {
		err = yaml.Unmarshal(data, &params)
	}
	if err != nil {
		return model.CouplingParams{}, fmt.Errorf("decode params %s: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return model.CouplingParams{}, err
	}
	return params, nil
}

var sweepHeader = []string{
	"disable_count", "speed", "disable_phase", "seed",
	"error", "error_phase", "error_speed", "error_symmetry1", "error_symmetry2", "degenerate",
}

// WriteSweep stores damage sweep points as sweep.csv in runDir.
func WriteSweep(runDir string, points []model.SweepPointRecord) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(runDir, sweepFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(sweepHeader); err != nil {
		return err
	}
	for _, p := range points {
		r := p.Report
		if err := writer.Write([]string{
			strconv.Itoa(p.Count),
			formatFloat(p.Speed),
			p.Target,
			strconv.FormatInt(p.Seed, 10),
			formatFloat(r.Error),
			formatFloat(r.Phase),
			formatFloat(r.Speed),
			formatFloat(r.Symmetry1),
			formatFloat(r.Symmetry2),
			strconv.FormatBool(r.Degenerate),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadSweep(baseDir, runID string) ([]model.SweepPointRecord, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, sweepFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.SweepPointRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(sweepHeader) {
		return nil, false, fmt.Errorf("sweep header must have %d columns", len(sweepHeader))
	}

	var points []model.SweepPointRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		p, err := parseSweepRow(record)
		if err != nil {
			return nil, false, err
		}
		points = append(points, p)
	}
	return points, true, nil
}

func parseSweepRow(record []string) (model.SweepPointRecord, error) {
	var p model.SweepPointRecord
	var err error
	if p.Count, err = strconv.Atoi(record[0]); err != nil {
		return p, err
	}
	if p.Speed, err = strconv.ParseFloat(record[1], 64); err != nil {
		return p, err
	}
	p.Target = record[2]
	if p.Seed, err = strconv.ParseInt(record[3], 10, 64); err != nil {
		return p, err
	}
	values := make([]float64, 5)
	for i := range values {
		if values[i], err = strconv.ParseFloat(record[4+i], 64); err != nil {
			return p, err
		}
	}
	p.Report = model.FitnessReport{
		Error:     values[0],
		Phase:     values[1],
		Speed:     values[2],
		Symmetry1: values[3],
		Symmetry2: values[4],
	}
	if p.Report.Degenerate, err = strconv.ParseBool(record[9]); err != nil {
		return p, err
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
