// internal/results/enrich.go
package results

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/synth"
	"github.com/xkilldash9x/taintscan/internal/results/providers"
)

// Enricher fills in what external detectors leave out of their findings.
type Enricher struct {
	cweProvider providers.CWEProvider
	logger      *zap.Logger
}

// NewEnricher creates a new Enricher instance. cweProvider may be nil.
func NewEnricher(cweProvider providers.CWEProvider, logger *zap.Logger) *Enricher {
	return &Enricher{
		cweProvider: cweProvider,
		logger:      logger.Named("enricher"),
	}
}

// EnrichFinding enhances a single finding in place.
func (e *Enricher) EnrichFinding(finding *schemas.Finding) {
	e.enrichCategory(finding)
	e.enrichCWE(finding)
}

// enrichCategory backfills the static category data the semantic pass
// always sets.
func (e *Enricher) enrichCategory(finding *schemas.Finding) {
	info, ok := synth.Lookup(finding.Category)
	if !ok {
		return
	}
	if len(finding.CWE) == 0 {
		finding.CWE = []string{info.CWE}
	}
	if finding.VulnerabilityName == "" {
		finding.VulnerabilityName = info.Name
	}
	if finding.Severity == "" {
		finding.Severity = info.Severity
	}
	if finding.Remediation == "" {
		finding.Remediation = info.Remediation
	}
}

func (e *Enricher) enrichCWE(finding *schemas.Finding) {
	if len(finding.CWE) == 0 || e.cweProvider == nil {
		return
	}

	// Only the first CWE is used.
	cweID := finding.CWE[0]

	entry, err := e.cweProvider.GetCWE(cweID)
	if err != nil {
		e.logger.Debug("Could not retrieve CWE details", zap.String("cwe_id", cweID), zap.Error(err))
		return
	}

	if finding.VulnerabilityName == "" && entry.Name != "" {
		finding.VulnerabilityName = entry.Name
	}
	if len(finding.Description) < 20 && entry.Description != "" {
		finding.Description = entry.Description
	}
}
