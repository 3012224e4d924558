package batch

import (
	"context"
	"sync"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
)

type fileJob struct {
	index int
	path  string
}

type fileOutcome struct {
	index   int
	results []FileResult
	err     error
}

// processFilesParallel decodes paths with a pool of workers. Results come
// back in input order. Without ContinueOnError the first failure cancels the
// remaining work and is returned; otherwise failures are recorded per file.
func processFilesParallel(ctx context.Context, paths []string, cfg *Config) ([]FileResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(paths))
	defer progress.OnComplete()

	workers := min(cfg.Workers, len(paths))
	jobs := make(chan fileJob)
	outcomes := make(chan fileOutcome, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := processFile(ctx, job.path, cfg)
				outcomes <- fileOutcome{index: job.index, results: res, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- fileJob{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	byIndex := make([][]FileResult, len(paths))
	var firstErr error
	done := 0
	for o := range outcomes {
		done++
		if o.err != nil {
			progress.OnError(o.index, o.err)
			if !cfg.ContinueOnError {
				if firstErr == nil {
					firstErr = o.err
					cancel()
				}
				continue
			}
			o.results = []FileResult{{File: paths[o.index], Symbols: []barcode.Symbol{}, Error: o.err.Error()}}
		}
		byIndex[o.index] = o.results
		progress.OnProgress(done, len(paths))
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []FileResult
	for _, rs := range byIndex {
		out = append(out, rs...)
	}
	return out, nil
}
