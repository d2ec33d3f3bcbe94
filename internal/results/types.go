package results

import (
	"github.com/xkilldash9x/taintscan/api/schemas"
)

// Defines the parameters for the prioritization process.
type ScoreConfig struct {
	// Keys are the canonical severities; anything missing scores 0.
	SeverityWeights map[schemas.Severity]float64
}

// DefaultScoreConfig weighs severities on a ten point scale.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		SeverityWeights: map[schemas.Severity]float64{
			schemas.SeverityCritical: 10.0,
			schemas.SeverityHigh:     7.5,
			schemas.SeverityMedium:   5.0,
			schemas.SeverityLow:      2.5,
			schemas.SeverityInfo:     0.1,
		},
	}
}

// Represents a finding that has been standardized.
type NormalizedFinding struct {
	schemas.Finding
	Score              float64
	NormalizedSeverity schemas.Severity
}
