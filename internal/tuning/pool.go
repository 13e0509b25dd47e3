package tuning

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quadcpg/internal/model"
)

// runPool applies fn to every item on workers goroutines. Results keep the
// item order. The first failure cancels the remaining items; the first error
// in item order that is not a result of that cancellation wins.
func runPool[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, idx int, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		idx  int
		item T
	}
	type result struct {
		idx int
		out R
		err error
	}

	jobs := make(chan job)
	results := make(chan result, len(items))

	workerCount := workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(items) {
		workerCount = len(items)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				out, err := fn(ctx, j.idx, j.item)
				if err != nil {
					cancel()
				}
				results <- result{idx: j.idx, out: out, err: err}
			}
		}()
	}

	for i := range items {
		jobs <- job{idx: i, item: items[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	outs := make([]R, len(items))
	errs := make([]error, len(items))
	for res := range results {
		outs[res.idx] = res.out
		errs[res.idx] = res.err
	}
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if parent.Err() == nil && errors.Is(err, context.Canceled) {
			if first == nil {
				first = err
			}
			continue
		}
		return nil, err
	}
	if first != nil {
		return nil, first
	}
	return outs, nil
}

// evaluateAll scores candidates in parallel. Trial indices start at offset.
func evaluateAll(ctx context.Context, workers, offset int, candidates []model.CouplingParams, fitness FitnessFn, onTrial TrialFn) ([]Trial, error) {
	if fitness == nil {
		return nil, errors.New("fitness function is required")
	}
	return runPool(ctx, workers, candidates, func(ctx context.Context, idx int, params model.CouplingParams) (Trial, error) {
		report, err := fitness(ctx, params)
		if err != nil {
			return Trial{}, fmt.Errorf("trial %d: %w", offset+idx, err)
		}
		trial := Trial{Index: offset + idx, ID: uuid.NewString(), Params: params, Report: report}
		if onTrial != nil {
			onTrial(trial)
		}
		return trial, nil
	})
}

// Best returns the trial with the lowest error. Ties keep the earlier trial.
func Best(trials []Trial) (Trial, bool) {
	if len(trials) == 0 {
		return Trial{}, false
	}
	best := trials[0]
	for _, t := range trials[1:] {
		if t.Report.Error < best.Report.Error {
			best = t
		}
	}
	return best, true
}
