package results

import (
	"strings"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

// Normalize wraps a finding and maps its severity onto the canonical scale.
// The original severity is preserved on the embedded finding.
func Normalize(f schemas.Finding) NormalizedFinding {
	return NormalizedFinding{Finding: f, NormalizedSeverity: normalizeSeverity(string(f.Severity))}
}

// normalizeSeverity accepts the spellings external detectors tend to emit.
// Unknown values map to "".
func normalizeSeverity(s string) schemas.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "fatal", "blocker":
		return schemas.SeverityCritical
	case "high", "important", "error":
		return schemas.SeverityHigh
	case "medium", "moderate", "warning", "warn":
		return schemas.SeverityMedium
	case "low", "minor":
		return schemas.SeverityLow
	case "info", "informational", "negligible", "note":
		return schemas.SeverityInfo
	default:
		return ""
	}
}
