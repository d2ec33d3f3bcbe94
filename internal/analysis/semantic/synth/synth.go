// Package synth turns sink hits into findings: severity from the category
// table, confidence from the transformations on the path, and an evidence
// trail from source to sink.
package synth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/lang"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/taint"
)

// DetectorName tags findings produced by the semantic engine.
const DetectorName = "semantic"

// findingNamespace seeds deterministic finding ids.
var findingNamespace = uuid.MustParse("6f1c3b8e-2f4a-5d7e-9b1a-0c4e8d2f7a63")

// Synthesize builds the finding for one sink hit in tree.
func Synthesize(tree *lang.Tree, hit taint.SinkHit) schemas.Finding {
	category := hit.Rule.Category
	info, ok := Lookup(category)
	if !ok {
		info = CategoryInfo{Name: string(category), Severity: schemas.SeverityMedium}
	}

	label := hit.Label
	source := describeSource(label)
	sink := hit.Rule.Label()
	if hit.Binding != "" {
		sink = hit.Binding
	}

	f := schemas.Finding{
		RuleID:            hit.Rule.ID,
		Detector:          DetectorName,
		Category:          category,
		VulnerabilityName: info.Name,
		Severity:          info.Severity,
		Language:          tree.Language,
		File:              tree.Path,
		Line:              hit.Sink.Line(),
		Column:            hit.Sink.Span.Column,
		SourceDescription: source,
		SinkDescription:   sink,
		PropagationPath:   Path(tree, hit),
		Confidence:        ConfidenceOf(label),
		Description:       fmt.Sprintf("Untrusted data from %s reaches %s without sanitization.", source, sink),
		Remediation:       info.Remediation,
	}
	if info.CWE != "" {
		f.CWE = []string{info.CWE}
	}
	if hit.Rule.Remediation != "" {
		f.Remediation = hit.Rule.Remediation
	}
	f.Evidence = Evidence(f.PropagationPath)
	f.ID = uuid.NewSHA1(findingNamespace, []byte(fmt.Sprintf("%s|%d|%d|%s|%s",
		f.File, f.Line, f.Column, f.RuleID, label.Origin()))).String()
	return f
}

// ConfidenceOf is high for a direct, unmodified flow and medium once the
// value went through a string transformation.
func ConfidenceOf(l taint.Label) schemas.Confidence {
	if l.Transforms == 0 {
		return schemas.ConfidenceHigh
	}
	return schemas.ConfidenceMedium
}

// Path lists the source line, every recorded step and the sink line, with
// consecutive repeats of a line collapsed.
func Path(tree *lang.Tree, hit taint.SinkHit) []schemas.PathStep {
	lines := make([]int, 0, len(hit.Label.Steps)+2)
	lines = append(lines, hit.Label.Line)
	for _, s := range hit.Label.Steps {
		lines = append(lines, s.Line)
	}
	lines = append(lines, hit.Sink.Line())

	out := make([]schemas.PathStep, 0, len(lines))
	for _, ln := range lines {
		if ln <= 0 || (len(out) > 0 && out[len(out)-1].Line == ln) {
			continue
		}
		out = append(out, schemas.PathStep{Line: ln, Snippet: tree.Line(ln)})
	}
	return out
}

// Evidence renders a propagation path, one hop per line.
func Evidence(path []schemas.PathStep) string {
	var b strings.Builder
	for i, step := range path {
		role := "step"
		switch i {
		case 0:
			role = "source"
		case len(path) - 1:
			role = "sink"
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-6s line %d: %s", role, step.Line, step.Snippet)
	}
	return b.String()
}

func describeSource(l taint.Label) string {
	name := l.Binding
	if name == "" && l.Rule != nil {
		name = l.Rule.Label()
	}
	if l.Rule != nil && l.Rule.SourceKind != "" {
		return fmt.Sprintf("%s (%s)", name, strings.ReplaceAll(l.Rule.SourceKind, "_", " "))
	}
	return name
}
