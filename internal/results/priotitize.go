package results

import (
	"sort"
)

// Prioritize sorts findings by a score derived from their normalized
// severity, most severe first. Ties keep file and line order so the output
// stays deterministic.
func Prioritize(findings []NormalizedFinding, config ScoreConfig) []NormalizedFinding {
	for i := range findings {
		if weight, ok := config.SeverityWeights[findings[i].NormalizedSeverity]; ok {
			findings[i].Score = weight
		} else {
			findings[i].Score = 0.0
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	return findings
}
