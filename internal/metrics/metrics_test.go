package metrics

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"quadcpg/internal/model"
)

func TestOutcome(t *testing.T) {
	cases := []struct {
		report model.FitnessReport
		err    error
		want   string
	}{
		{model.FitnessReport{Error: 3}, nil, OutcomeOK},
		{model.FitnessReport{Error: 70, Degenerate: true}, nil, OutcomeDegenerate},
		{model.FitnessReport{}, errors.New("bad config"), OutcomeError},
	}
	for _, tc := range cases {
		if got := Outcome(tc.report, tc.err); got != tc.want {
			t.Fatalf("outcome(%+v, %v) = %s, want %s", tc.report, tc.err, got, tc.want)
		}
	}
}

func TestObserveEvaluationCountsOutcomes(t *testing.T) {
	r := New()
	r.ObserveEvaluation("quadruped", model.FitnessReport{Error: 4.5}, nil, 200*time.Millisecond)
	r.ObserveEvaluation("quadruped", model.FitnessReport{Error: 70, Degenerate: true}, nil, time.Millisecond)
	r.ObserveEvaluation("quadruped", model.FitnessReport{Error: 70, Degenerate: true}, nil, time.Millisecond)
	r.ObserveEvaluation("two-limb", model.FitnessReport{}, errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(r.evaluations.WithLabelValues("quadruped", OutcomeOK)); got != 1 {
		t.Fatalf("ok evaluations = %f, want 1", got)
	}
	if got := testutil.ToFloat64(r.evaluations.WithLabelValues("quadruped", OutcomeDegenerate)); got != 2 {
		t.Fatalf("degenerate evaluations = %f, want 2", got)
	}
	if got := testutil.ToFloat64(r.evaluations.WithLabelValues("two-limb", OutcomeError)); got != 1 {
		t.Fatalf("error evaluations = %f, want 1", got)
	}
	if got := testutil.CollectAndCount(r.fitness); got != 1 {
		t.Fatalf("fitness series = %d, want 1", got)
	}
}

func TestSetBestAndExposition(t *testing.T) {
	r := New()
	r.SetBest("run-1", "quadruped", 2.25)
	if got := testutil.ToFloat64(r.bestError.WithLabelValues("run-1", "quadruped")); got != 2.25 {
		t.Fatalf("best error = %f, want 2.25", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `quadcpg_run_best_error{run_id="run-1",scape="quadruped"} 2.25`) {
		t.Fatalf("exposition missing best error:\n%s", body)
	}

	path := filepath.Join(t.TempDir(), "quadcpg.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("write file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "quadcpg_run_best_error") {
		t.Fatalf("textfile missing best error:\n%s", data)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveEvaluation("quadruped", model.FitnessReport{}, nil, time.Second)
	r.SetBest("run", "quadruped", 1)
	path := filepath.Join(t.TempDir(), "empty.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("write file: %v", err)
	}
}
