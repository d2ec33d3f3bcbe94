// internal/engine/pool.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/config"
)

// -- Interfaces for Dependency Inversion --

// Worker defines the interface for any component that can analyze a file.
// Implementations must honor ctx; the pool bounds every call with the
// per-file timeout.
type Worker interface {
	ProcessFile(ctx context.Context, file schemas.SourceFile) (Outcome, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, file schemas.SourceFile) (Outcome, error)

func (f WorkerFunc) ProcessFile(ctx context.Context, file schemas.SourceFile) (Outcome, error) {
	return f(ctx, file)
}

// Outcome is what a worker produced for one file.
type Outcome struct {
	Findings []schemas.Finding
	Warnings []schemas.Warning
	Skipped  bool
}

// Result pairs an Outcome with the position of its file in the input.
type Result struct {
	Index   int
	Path    string
	Outcome Outcome
	// Err is a typed error (*schemas.AnalysisTimeout,
	// *schemas.InternalInvariantViolation, ...) or whatever the worker
	// returned. Whatever the worker produced before failing is kept in
	// Outcome.
	Err     error
	Elapsed time.Duration
}

const (
	defaultConcurrency = 4
	defaultFileTimeout = 30 * time.Second
)

// Pool distributes files over a bounded set of workers.
type Pool struct {
	logger      *zap.Logger
	worker      Worker
	concurrency int
	queueSize   int
	timeout     time.Duration
}

// New creates a Pool. Zero values in cfg fall back to defaults.
func New(cfg config.EngineConfig, logger *zap.Logger, worker Worker) (*Pool, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if worker == nil {
		return nil, errors.New("worker cannot be nil")
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := cfg.FileTimeout
	if timeout <= 0 {
		timeout = defaultFileTimeout
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}

	return &Pool{
		logger:      logger.Named("engine"),
		worker:      worker,
		concurrency: concurrency,
		queueSize:   queueSize,
		timeout:     timeout,
	}, nil
}

type job struct {
	index int
	file  schemas.SourceFile
}

// Run analyzes every file and returns one Result per file, in input order.
// A failing file never stops the batch; only cancellation of ctx does, in
// which case the results gathered so far are returned with ctx's error.
func (p *Pool) Run(ctx context.Context, files []schemas.SourceFile) ([]Result, error) {
	if len(files) == 0 {
		return nil, nil
	}

	workers := min(p.concurrency, len(files))
	p.logger.Info("Starting worker pool.", zap.Int("concurrency", workers), zap.Int("files", len(files)))

	jobs := make(chan job, p.queueSize)
	results := make(chan Result, workers)

	// The collector is the only goroutine that touches collected.
	collected := make([]Result, 0, len(files))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			collected = append(collected, r)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, f := range files {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- job{index: i, file: f}:
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.runWorker(gctx, workerID, jobs, results)
			return nil
		})
	}

	err := g.Wait()
	close(results)
	<-done

	sort.Slice(collected, func(i, j int) bool { return collected[i].Index < collected[j].Index })

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		p.logger.Warn("Worker pool interrupted.", zap.Int("completed", len(collected)), zap.Error(err))
		return collected, err
	}
	p.logger.Info("Worker pool finished.", zap.Int("files", len(collected)))
	return collected, nil
}

// runWorker is the main loop for a single worker goroutine.
func (p *Pool) runWorker(ctx context.Context, workerID int, jobs <-chan job, results chan<- Result) {
	logger := p.logger.With(zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled, worker shutting down.", zap.Error(ctx.Err()))
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			r, ok := p.process(ctx, j, logger)
			if ok {
				results <- r
			}
		}
	}
}

// process runs one file under its own deadline. ok is false when the parent
// context ended first; that result is not reported.
func (p *Pool) process(ctx context.Context, j job, logger *zap.Logger) (Result, bool) {
	if ctx.Err() != nil {
		return Result{}, false
	}
	logger = logger.With(zap.String("file", j.file.Path))
	logger.Debug("Processing file.")

	start := time.Now()
	fileCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.safeProcess(fileCtx, j.file, logger)
	r := Result{Index: j.index, Path: j.file.Path, Outcome: out, Elapsed: time.Since(start)}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Result{}, false
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(fileCtx.Err(), context.DeadlineExceeded):
			logger.Warn("File analysis timed out.", zap.Duration("timeout", p.timeout), zap.Error(err))
			r.Err = &schemas.AnalysisTimeout{File: j.file.Path, Timeout: p.timeout}
		default:
			r.Err = err
		}
	}
	return r, true
}

// safeProcess converts a worker panic into an InternalInvariantViolation.
func (p *Pool) safeProcess(ctx context.Context, file schemas.SourceFile, logger *zap.Logger) (out Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Recovered from panic during file analysis.",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
			out = Outcome{}
			err = &schemas.InternalInvariantViolation{File: file.Path, Detail: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	return p.worker.ProcessFile(ctx, file)
}
