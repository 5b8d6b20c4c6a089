// Package pipeline drives batch evaluation: it feeds dataset pairs to a
// pool of workers, each with its own evaluator, and merges the partial
// counts into one report. Per-sample failures are skipped so one corrupt
// document cannot sink a whole dataset run.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/VarenyaJ/P5/internal/dataset"
	"github.com/VarenyaJ/P5/internal/evaluation"
	"github.com/VarenyaJ/P5/internal/phenopacket"
	"github.com/VarenyaJ/P5/internal/report"
)

// Options configures a Runner.
type Options struct {
	// Workers is the number of concurrent evaluators. Values below 1 are
	// treated as 1.
	Workers int
	// Cache, when set, is used to load records instead of reading each
	// file every time.
	Cache *phenopacket.Cache
}

// Runner evaluates a dataset index concurrently.
type Runner struct {
	log     *logrus.Logger
	workers int
	cache   *phenopacket.Cache
}

// Result carries the merged report plus per-run bookkeeping.
type Result struct {
	Report    *report.Report
	Evaluated int
	Skipped   int
}

// NewRunner creates a runner. A nil logger falls back to the standard one.
func NewRunner(logger *logrus.Logger, opts Options) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		log:     logger,
		workers: workers,
		cache:   opts.Cache,
	}
}

// Run evaluates every pair and snapshots the merged counts into a report.
// Evaluator merging is commutative and associative, so the result is
// independent of worker count and scheduling. Samples whose documents
// cannot be loaded are logged and counted in Skipped. Run stops early when
// ctx is cancelled and returns the context error.
func (r *Runner) Run(ctx context.Context, pairs []dataset.Pair, meta report.Metadata) (*Result, error) {
	jobs := make(chan dataset.Pair)
	partials := make([]*evaluation.Evaluator, r.workers)

	var evaluated, skipped atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.workers; i++ {
		ev := evaluation.New()
		partials[i] = ev

		wg.Add(1)
		go func(ev *evaluation.Evaluator) {
			defer wg.Done()
			for pair := range jobs {
				truth, err := r.load(pair.GroundTruthPath)
				if err != nil {
					r.log.WithError(err).WithField("sample", pair.ID).Warn("skipping sample: ground truth unusable")
					skipped.Add(1)
					continue
				}
				predicted, err := r.load(pair.PredictedPath)
				if err != nil {
					r.log.WithError(err).WithField("sample", pair.ID).Warn("skipping sample: prediction unusable")
					skipped.Add(1)
					continue
				}

				ev.CheckPhenotypes(predicted.ListPhenotypes(), truth.ListPhenotypes())
				evaluated.Add(1)
			}
		}(ev)
	}

feed:
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- pair:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := evaluation.New()
	for _, ev := range partials {
		merged.Merge(ev)
	}

	rep, err := merged.Report(meta)
	if err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"evaluated": evaluated.Load(),
		"skipped":   skipped.Load(),
		"tp":        merged.TruePositives(),
		"fp":        merged.FalsePositives(),
		"fn":        merged.FalseNegatives(),
	}).Info("dataset evaluation complete")

	return &Result{
		Report:    rep,
		Evaluated: int(evaluated.Load()),
		Skipped:   int(skipped.Load()),
	}, nil
}

func (r *Runner) load(path string) (*phenopacket.Record, error) {
	if r.cache != nil {
		return r.cache.Load(path)
	}
	return phenopacket.LoadFromFile(path)
}
