package results

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON encodes the report as indented JSON.
func WriteJSON(w io.Writer, report *schemas.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText prints one block per finding, most severe first, then the
// warnings and a summary line.
func WriteText(w io.Writer, report *schemas.ScanReport) error {
	normalized := make([]NormalizedFinding, len(report.Findings))
	for i, f := range report.Findings {
		normalized[i] = Normalize(f)
	}
	normalized = Prioritize(normalized, DefaultScoreConfig())

	var b strings.Builder
	for _, f := range normalized {
		fmt.Fprintf(&b, "[%s] %s %s:%d:%d (%s, confidence %s)\n",
			strings.ToUpper(string(f.Severity)), f.VulnerabilityName, f.File, f.Line, f.Column, f.Detector, f.Confidence)
		if f.Evidence != "" {
			for _, line := range strings.Split(f.Evidence, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(&b, "warning: %s: %s: %s\n", warn.File, warn.Kind, warn.Message)
	}
	s := report.Summary
	fmt.Fprintf(&b, "%d findings in %d files (%d skipped) in %s\n",
		s.TotalFindings, s.FilesScanned, s.FilesSkipped, s.Duration)

	_, err := io.WriteString(w, b.String())
	return err
}
