package schemas

// -- Finding Schemas --

// Severity represents the severity level of a security finding, ranging from
// critical to informational.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical" // Represents a critical vulnerability.
	SeverityHigh     Severity = "high"     // Represents a high-severity vulnerability.
	SeverityMedium   Severity = "medium"   // Represents a medium-severity vulnerability.
	SeverityLow      Severity = "low"      // Represents a low-severity vulnerability.
	SeverityInfo     Severity = "info"     // Represents an informational finding.
)

// Category is the vulnerability class a finding belongs to. Deduplication
// across detectors is keyed on (file, line, category).
type Category string

const (
	CategoryCommandInjection      Category = "command_injection"
	CategorySQLInjection          Category = "sql_injection"
	CategoryPathTraversal         Category = "path_traversal"
	CategoryCodeInjection         Category = "code_injection"
	CategoryUnsafeDeserialization Category = "unsafe_deserialization"
	CategoryXSS                   Category = "xss"
)

// Categories lists every category the semantic engine knows about, in a
// stable order.
var Categories = []Category{
	CategoryCommandInjection,
	CategorySQLInjection,
	CategoryPathTraversal,
	CategoryCodeInjection,
	CategoryUnsafeDeserialization,
	CategoryXSS,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Confidence expresses how directly a tainted value reached its sink.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PathStep is one hop of a propagation path: the line it happened on and the
// source text of that line.
type PathStep struct {
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// Finding encapsulates all the details of a single security vulnerability
// identified by a scan. Findings are immutable once emitted.
type Finding struct {
	ID       string   `json:"id"`                // Deterministic identifier for the finding.
	RuleID   string   `json:"rule_id,omitempty"` // The sink rule that matched.
	Detector string   `json:"detector"`          // Name of the detector that reported it ("semantic", ...).
	Category Category `json:"category"`
	CWE      []string `json:"cwe,omitempty"`

	// VulnerabilityName is a human readable name for the category
	// (e.g., "SQL Injection").
	VulnerabilityName string   `json:"vulnerability_name"`
	Severity          Severity `json:"severity"`

	Language Language `json:"language,omitempty"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`

	SourceDescription string     `json:"source_description,omitempty"`
	SinkDescription   string     `json:"sink_description,omitempty"`
	PropagationPath   []PathStep `json:"propagation_path,omitempty"`
	Confidence        Confidence `json:"confidence"`

	Description string `json:"description,omitempty"`
	// Evidence is the rendered chain: source line, each propagation step, sink line.
	Evidence    string `json:"evidence,omitempty"`
	Remediation string `json:"remediation_hint,omitempty"`
}

// DedupKey identifies findings that describe the same issue regardless of
// which detector produced them.
type DedupKey struct {
	File     string
	Line     int
	Category Category
}

// Key returns the deduplication key of the finding.
func (f Finding) Key() DedupKey {
	return DedupKey{File: f.File, Line: f.Line, Category: f.Category}
}
