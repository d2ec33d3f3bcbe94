package schemas

import "time"

// -- Result Schemas --

// Warning records a partial failure that did not abort the scan.
type Warning struct {
	File    string      `json:"file"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Summary aggregates counts over a finished scan.
type Summary struct {
	FilesScanned  int              `json:"files_scanned"`
	FilesSkipped  int              `json:"files_skipped"`
	TotalFindings int              `json:"total_findings"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
	Duration      time.Duration    `json:"duration_ns"`
}

// ScanReport is the scan-wide result handed to output renderers. Findings are
// ordered by file, then program order within each file.
type ScanReport struct {
	ScanID      string    `json:"scan_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Findings    []Finding `json:"findings"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Summary     Summary   `json:"summary"`
}
