package triage

import "strings"

// Severity classifies a diagnosis by its leading label.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityModerate Severity = "moderate"
	SeverityMild     Severity = "mild"
	SeverityUnknown  Severity = "unknown"
)

var severityPrefixes = []struct {
	prefix   string
	severity Severity
}{
	{"critico", SeverityCritical},
	{"advertencia", SeverityWarning},
	{"moderado", SeverityModerate},
	{"leve", SeverityMild},
}

// SeverityOf reads the severity label ("CRÍTICO:", "LEVE:" ...) at the start
// of a diagnosis.
func SeverityOf(diagnosis string) Severity {
	d := fold(diagnosis)
	for _, p := range severityPrefixes {
		if strings.HasPrefix(d, p.prefix) {
			return p.severity
		}
	}
	return SeverityUnknown
}

// Urgent reports whether the severity calls for immediate attention.
func (s Severity) Urgent() bool {
	return s == SeverityCritical
}
