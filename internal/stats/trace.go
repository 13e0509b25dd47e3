package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"quadcpg/internal/model"
)

// TraceHeader returns the CSV columns written for trace: time, speed, then
// switch, swing and stance of every limb.
func TraceHeader(trace model.SimulationTrace) []string {
	header := []string{"time", "speed"}
	for _, limb := range trace.Limbs {
		n := strconv.Itoa(limb.Limb)
		header = append(header, "s"+n, "swing"+n, "stance"+n)
	}
	return header
}

// WriteTraceCSV writes every stride-th sample of trace. A stride below one
// writes every sample.
func WriteTraceCSV(w io.Writer, trace model.SimulationTrace, stride int) error {
	if stride < 1 {
		stride = 1
	}
	if trace.SampleRate <= 0 {
		return fmt.Errorf("trace sample rate must be positive")
	}
	samples := trace.Samples()
	for _, limb := range trace.Limbs {
		if len(limb.Switch) != samples || len(limb.Swing) != samples || len(limb.Stance) != samples {
			return fmt.Errorf("limb %d trace length mismatch", limb.Limb)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(TraceHeader(trace)); err != nil {
		return err
	}
	row := make([]string, 0, 2+3*len(trace.Limbs))
	for i := 0; i < samples; i += stride {
		row = row[:0]
		speed := 0.0
		if i < len(trace.Speed) {
			speed = trace.Speed[i]
		}
		row = append(row, formatFloat(float64(i+1)/trace.SampleRate), formatFloat(speed))
		for _, limb := range trace.Limbs {
			row = append(row, formatFloat(limb.Switch[i]), formatFloat(limb.Swing[i]), formatFloat(limb.Stance[i]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTrace stores trace as trace.csv in runDir.
func WriteTrace(runDir string, trace model.SimulationTrace, stride int) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(runDir, traceFile)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := WriteTraceCSV(file, trace, stride); err != nil {
		return "", err
	}
	return path, file.Sync()
}
