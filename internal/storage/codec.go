package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"quadcpg/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeTrial(t model.TrialRecord) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrial(data []byte) (model.TrialRecord, error) {
	var trial model.TrialRecord
	if err := json.Unmarshal(data, &trial); err != nil {
		return model.TrialRecord{}, err
	}
	if err := checkVersion(trial.VersionedRecord); err != nil {
		return model.TrialRecord{}, err
	}
	return trial, nil
}

func EncodeSweep(points []model.SweepPointRecord) ([]byte, error) {
	return json.Marshal(points)
}

func DecodeSweep(data []byte) ([]model.SweepPointRecord, error) {
	var points []model.SweepPointRecord
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func sortTrials(trials []model.TrialRecord) {
	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Index < trials[j].Index
	})
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt < runs[j].CreatedAt
		}
		return runs[i].ID < runs[j].ID
	})
}
