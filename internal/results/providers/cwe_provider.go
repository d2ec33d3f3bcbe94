// internal/results/providers/cwe_provider.go
package providers

import (
	"fmt"
)

// CWEEntry holds details about a specific CWE.
type CWEEntry struct {
	ID          string
	Name        string
	Description string
}

// CWEProvider defines the interface for retrieving CWE information.
type CWEProvider interface {
	GetCWE(id string) (*CWEEntry, error)
}

// InMemoryCWEProvider serves the weaknesses the semantic pass reports.
type InMemoryCWEProvider struct {
	data map[string]CWEEntry
}

// NewInMemoryCWEProvider creates a new InMemoryCWEProvider with preloaded data.
func NewInMemoryCWEProvider() *InMemoryCWEProvider {
	data := map[string]CWEEntry{
		"CWE-22":  {ID: "CWE-22", Name: "Improper Limitation of a Pathname to a Restricted Directory ('Path Traversal')", Description: "The product uses external input to construct a pathname that is intended to identify a file or directory that is located underneath a restricted parent directory, but the product does not properly neutralize special elements within the pathname that can cause the pathname to resolve to a location that is outside of the restricted directory."},
		"CWE-78":  {ID: "CWE-78", Name: "Improper Neutralization of Special Elements used in an OS Command ('OS Command Injection')", Description: "The product constructs all or part of an OS command using externally-influenced input from an upstream component, but it does not neutralize or incorrectly neutralizes special elements that could modify the intended OS command when it is sent to a downstream component."},
		"CWE-79":  {ID: "CWE-79", Name: "Improper Neutralization of Input During Web Page Generation ('Cross-site Scripting')", Description: "The software does not neutralize or incorrectly neutralizes user-controllable input before it is placed in output that is used as a web page that is served to other users."},
		"CWE-89":  {ID: "CWE-89", Name: "Improper Neutralization of Special Elements used in an SQL Command ('SQL Injection')", Description: "The software constructs all or part of an SQL command using externally-influenced input from an upstream component, but it does not neutralize or incorrectly neutralizes special elements that could modify the intended SQL command when it is sent to a downstream component."},
		"CWE-94":  {ID: "CWE-94", Name: "Improper Control of Generation of Code ('Code Injection')", Description: "The product constructs all or part of a code segment using externally-influenced input from an upstream component, but it does not neutralize or incorrectly neutralizes special elements that could modify the syntax or behavior of the intended code segment."},
		"CWE-116": {ID: "CWE-116", Name: "Improper Encoding or Escaping of Output", Description: "The software prepares a structured message for communication with another component, but it does not use or incorrectly uses an encoding or escaping scheme that is compliant with the syntax of the intended destination."},
		"CWE-502": {ID: "CWE-502", Name: "Deserialization of Untrusted Data", Description: "The product deserializes untrusted data without sufficiently ensuring that the resulting data will be valid."},
	}
	return &InMemoryCWEProvider{data: data}
}

// GetCWE retrieves CWE details by ID. Unknown IDs yield a placeholder entry
// rather than an error so enrichment never fails a report.
func (p *InMemoryCWEProvider) GetCWE(id string) (*CWEEntry, error) {
	entry, exists := p.data[id]
	if !exists {
		return &CWEEntry{ID: id, Name: fmt.Sprintf("%s (Details Not Found)", id), Description: "Details for this CWE ID are not available in the local database."}, nil
	}
	return &entry, nil
}
