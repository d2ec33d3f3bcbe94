package synth

import "github.com/xkilldash9x/taintscan/api/schemas"

// CategoryInfo is the static description of a vulnerability class.
type CategoryInfo struct {
	Name        string
	Severity    schemas.Severity
	CWE         string
	Remediation string
}

var categories = map[schemas.Category]CategoryInfo{
	schemas.CategoryCommandInjection: {
		Name:        "Command Injection",
		Severity:    schemas.SeverityCritical,
		CWE:         "CWE-78",
		Remediation: "Pass arguments as a list without a shell, or quote them with a shell escaping function. Never build command strings from user input.",
	},
	schemas.CategorySQLInjection: {
		Name:        "SQL Injection",
		Severity:    schemas.SeverityCritical,
		CWE:         "CWE-89",
		Remediation: "Use parameterized queries or prepared statements; bind user input as parameters instead of concatenating it into SQL.",
	},
	schemas.CategoryPathTraversal: {
		Name:        "Path Traversal",
		Severity:    schemas.SeverityHigh,
		CWE:         "CWE-22",
		Remediation: "Reduce user input to a base name or resolve the path and verify it stays inside the intended directory.",
	},
	schemas.CategoryCodeInjection: {
		Name:        "Code Injection",
		Severity:    schemas.SeverityCritical,
		CWE:         "CWE-94",
		Remediation: "Do not evaluate user input as code. Parse the expected data format explicitly instead.",
	},
	schemas.CategoryUnsafeDeserialization: {
		Name:        "Unsafe Deserialization",
		Severity:    schemas.SeverityCritical,
		CWE:         "CWE-502",
		Remediation: "Deserialize untrusted data only with safe formats and loaders (JSON, yaml.safe_load).",
	},
	schemas.CategoryXSS: {
		Name:        "Cross-Site Scripting",
		Severity:    schemas.SeverityHigh,
		CWE:         "CWE-79",
		Remediation: "Encode output for its HTML context or sanitize markup with a vetted library before inserting it into the page.",
	},
}

// Lookup returns the static description of a category.
func Lookup(c schemas.Category) (CategoryInfo, bool) {
	info, ok := categories[c]
	return info, ok
}

// SeverityOf maps a category to its severity. Unknown categories are medium.
func SeverityOf(c schemas.Category) schemas.Severity {
	if info, ok := categories[c]; ok {
		return info.Severity
	}
	return schemas.SeverityMedium
}
