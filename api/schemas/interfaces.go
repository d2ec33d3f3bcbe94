package schemas

import (
	"context"
)

// -- Detector Interfaces --

// Detector is any engine that inspects a single source file and reports
// findings. The semantic taint analyzer is one Detector; the regex and
// heuristic detectors live outside this module and plug in through the same
// contract.
type Detector interface {
	// Name identifies the detector in findings and warnings.
	Name() string
	// Detect analyzes one file. Returned findings must be in program order.
	// A non-nil error is recorded as a warning; it never aborts the scan.
	Detect(ctx context.Context, file SourceFile) ([]Finding, error)
}

// Scanner runs a complete scan over a batch of files.
type Scanner interface {
	Scan(ctx context.Context, files []SourceFile) (*ScanReport, error)
}
