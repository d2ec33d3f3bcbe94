// File: internal/results/pipeline.go
package results

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/results/providers"
)

// Pipeline turns merged findings into the final report: enrichment, then
// aggregation.
type Pipeline struct {
	enricher *Enricher
	logger   *zap.Logger
}

// NewPipeline creates a new results processing pipeline backed by the
// builtin CWE catalog.
func NewPipeline(logger *zap.Logger) *Pipeline {
	return NewPipelineWithProvider(providers.NewInMemoryCWEProvider(), logger)
}

// NewPipelineWithProvider is NewPipeline with an explicit CWE source.
func NewPipelineWithProvider(cwe providers.CWEProvider, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		enricher: NewEnricher(cwe, logger),
		logger:   logger.Named("results_pipeline"),
	}
}

// Process enriches report.Findings in place and fills the finding counts of
// report.Summary. File counts and duration are left to the caller.
func (p *Pipeline) Process(report *schemas.ScanReport) {
	if report == nil {
		return
	}
	for i := range report.Findings {
		p.enricher.EnrichFinding(&report.Findings[i])
		if sev := normalizeSeverity(string(report.Findings[i].Severity)); sev != "" {
			report.Findings[i].Severity = sev
		}
	}

	bySeverity, byCategory := Aggregate(report.Findings)
	report.Summary.TotalFindings = len(report.Findings)
	report.Summary.BySeverity = bySeverity
	report.Summary.ByCategory = byCategory

	p.logger.Debug("Results processing complete", zap.Int("findings", len(report.Findings)))
}

// Aggregate counts findings per severity and per category.
func Aggregate(findings []schemas.Finding) (map[schemas.Severity]int, map[schemas.Category]int) {
	bySeverity := make(map[schemas.Severity]int)
	byCategory := make(map[schemas.Category]int)
	for _, f := range findings {
		bySeverity[f.Severity]++
		byCategory[f.Category]++
	}
	return bySeverity, byCategory
}
