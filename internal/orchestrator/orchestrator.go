// File: internal/orchestrator/orchestrator.go
// Description: Runs a complete scan. Every file goes through the semantic
// taint pass and any registered detectors on the worker pool; the per-file
// results are merged, deduplicated and summarized into one report.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/synth"
	"github.com/xkilldash9x/taintscan/internal/config"
	"github.com/xkilldash9x/taintscan/internal/engine"
	"github.com/xkilldash9x/taintscan/internal/observability"
	"github.com/xkilldash9x/taintscan/internal/results"
)

// Orchestrator manages the high-level lifecycle of a scan.
// It is injected with fully configured engine components.
type Orchestrator struct {
	cfg       config.Interface
	logger    *zap.Logger
	semantic  *semantic.Analyzer
	detectors []schemas.Detector
	pipeline  *results.Pipeline
	metrics   *observability.Metrics
}

var _ schemas.Scanner = (*Orchestrator)(nil)

// New creates a new Orchestrator. analyzer may be nil when the semantic pass
// is disabled, as long as at least one other detector is registered.
func New(
	cfg config.Interface,
	logger *zap.Logger,
	analyzer *semantic.Analyzer,
	detectors ...schemas.Detector,
) (*Orchestrator, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	for i, d := range detectors {
		if d == nil {
			return nil, fmt.Errorf("detector %d is nil", i)
		}
	}
	if analyzer == nil && len(detectors) == 0 {
		return nil, fmt.Errorf("no detectors configured")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		semantic:  analyzer,
		detectors: detectors,
		pipeline:  results.NewPipeline(logger),
	}, nil
}

// SetMetrics makes subsequent scans record into m. Nil disables recording.
func (o *Orchestrator) SetMetrics(m *observability.Metrics) { o.metrics = m }

// Scan analyzes files and returns the merged report. A single file's failure
// is recorded as a warning and never aborts the batch. If ctx is cancelled
// the report covers the files finished so far and the error is returned
// alongside it.
func (o *Orchestrator) Scan(ctx context.Context, files []schemas.SourceFile) (*schemas.ScanReport, error) {
	report := &schemas.ScanReport{
		ScanID:    uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Findings:  []schemas.Finding{},
	}
	logger := o.logger.With(zap.String("scan_id", report.ScanID))
	logger.Info("Orchestrator starting scan", zap.Int("files", len(files)), zap.Int("detectors", len(o.detectors)))

	pool, err := engine.New(o.cfg.Engine(), logger, engine.WorkerFunc(o.processFile))
	if err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	fileResults, runErr := pool.Run(ctx, files)

	for _, r := range fileResults {
		outcome := observability.OutcomeScanned
		if r.Outcome.Skipped {
			report.Summary.FilesSkipped++
			outcome = observability.OutcomeSkipped
		} else {
			report.Summary.FilesScanned++
		}
		if r.Err != nil {
			outcome = observability.OutcomeFailed
		}
		o.metrics.ObserveFile(outcome, r.Elapsed)
		report.Findings = append(report.Findings, r.Outcome.Findings...)
		report.Warnings = append(report.Warnings, r.Outcome.Warnings...)
		if r.Err != nil {
			report.Warnings = append(report.Warnings, schemas.Warning{
				File:    r.Path,
				Kind:    schemas.ClassifyWarning(r.Err),
				Message: r.Err.Error(),
			})
		}
	}

	report.Findings = Deduplicate(report.Findings)
	sort.SliceStable(report.Findings, func(i, j int) bool { return report.Findings[i].File < report.Findings[j].File })

	o.pipeline.Process(report)
	report.CompletedAt = time.Now().UTC()
	report.Summary.Duration = report.CompletedAt.Sub(report.StartedAt)
	o.metrics.ObserveReport(report)

	if runErr != nil {
		logger.Warn("Scan interrupted", zap.Error(runErr), zap.Int("files_completed", len(fileResults)))
		return report, fmt.Errorf("scan interrupted: %w", runErr)
	}

	logger.Info("Scan orchestration finished",
		zap.Int("findings", report.Summary.TotalFindings),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Summary.Duration),
	)
	return report, nil
}

// processFile is the per-file worker. Detectors run first so a semantic pass
// that exhausts the file budget costs only the semantic findings.
func (o *Orchestrator) processFile(ctx context.Context, file schemas.SourceFile) (engine.Outcome, error) {
	var (
		out      engine.Outcome
		external []schemas.Finding
	)
	logger := o.logger.With(zap.String("file", file.Path))

	for _, d := range o.detectors {
		found, err := d.Detect(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logger.Warn("Detector failed", zap.String("detector", d.Name()), zap.Error(err))
			out.Warnings = append(out.Warnings, schemas.Warning{
				File:    file.Path,
				Kind:    schemas.ClassifyWarning(err),
				Message: fmt.Sprintf("%s: %v", d.Name(), err),
			})
			continue
		}
		for _, f := range found {
			if f.Detector == "" {
				f.Detector = d.Name()
			}
			if f.File == "" {
				f.File = file.Path
			}
			external = append(external, f)
		}
	}

	var own []schemas.Finding
	if o.semantic != nil {
		res, err := o.semantic.AnalyzeFile(ctx, file)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			out.Findings = mergeFile(nil, external)
			return out, err
		default:
			// Parse errors and invariant violations cost this file its
			// semantic findings only.
			out.Warnings = append(out.Warnings, schemas.Warning{
				File:    file.Path,
				Kind:    schemas.ClassifyWarning(err),
				Message: err.Error(),
			})
		}
		out.Warnings = append(out.Warnings, res.Warnings...)
		out.Skipped = res.Skipped
		own = res.Findings
	}

	out.Findings = mergeFile(own, external)
	return out, nil
}

// mergeFile combines one file's findings, semantic first, and restores
// program order.
func mergeFile(own, external []schemas.Finding) []schemas.Finding {
	merged := Deduplicate(append(append([]schemas.Finding(nil), own...), external...))
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Line != merged[j].Line {
			return merged[i].Line < merged[j].Line
		}
		return merged[i].Column < merged[j].Column
	})
	return merged
}

// Deduplicate keeps one finding per (file, line, category). A semantic
// finding replaces an earlier one from another detector; otherwise the first
// occurrence wins. Order of first occurrence is preserved.
func Deduplicate(findings []schemas.Finding) []schemas.Finding {
	out := make([]schemas.Finding, 0, len(findings))
	seen := make(map[schemas.DedupKey]int, len(findings))
	for _, f := range findings {
		k := f.Key()
		if i, ok := seen[k]; ok {
			if out[i].Detector != synth.DetectorName && f.Detector == synth.DetectorName {
				out[i] = f
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}
	return out
}
