package storage

import (
	"context"
	"errors"
	"sync"

	"quadcpg/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	trials      map[string]model.TrialRecord
	sweeps      map[string][]model.SweepPointRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.trials = make(map[string]model.TrialRecord)
	s.sweeps = make(map[string][]model.SweepPointRecord)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trials[trial.ID] = trial
	return nil
}

func (s *MemoryStore) GetTrial(_ context.Context, id string) (model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trial, ok := s.trials[id]
	return trial, ok, nil
}

func (s *MemoryStore) ListTrials(_ context.Context, runID string) ([]model.TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TrialRecord
	for _, trial := range s.trials {
		if trial.RunID == runID {
			out = append(out, trial)
		}
	}
	sortTrials(out)
	return out, nil
}

func (s *MemoryStore) SaveSweep(_ context.Context, runID string, points []model.SweepPointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.sweeps[runID] = append([]model.SweepPointRecord(nil), points...)
	return nil
}

func (s *MemoryStore) GetSweep(_ context.Context, runID string) ([]model.SweepPointRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.sweeps[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.SweepPointRecord(nil), points...), true, nil
}
