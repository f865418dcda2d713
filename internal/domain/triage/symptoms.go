package triage

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Catalogue lists the symptoms the intake form offers, in display order.
var Catalogue = []string{
	"Fiebre",
	"Tos",
	"Dolor de cabeza",
	"Dolor de garganta",
	"Fatiga",
	"Náuseas",
	"Dolor abdominal",
	"Dificultad para respirar",
	"Mareos",
	"Dolor muscular",
}

var englishSymptoms = map[string]string{
	"fever":               "Fiebre",
	"cough":               "Tos",
	"headache":            "Dolor de cabeza",
	"sore throat":         "Dolor de garganta",
	"fatigue":             "Fatiga",
	"nausea":              "Náuseas",
	"abdominal pain":      "Dolor abdominal",
	"shortness of breath": "Dificultad para respirar",
	"dizziness":           "Mareos",
	"muscle pain":         "Dolor muscular",
}

var symptomIndex = buildSymptomIndex()

func buildSymptomIndex() map[string]string {
	idx := make(map[string]string, 2*len(Catalogue))
	for _, s := range Catalogue {
		idx[fold(s)] = s
	}
	for alias, s := range englishSymptoms {
		idx[fold(alias)] = s
	}
	return idx
}

// fold lowercases s and strips combining marks so "Náuseas" and "nauseas"
// compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return cases.Fold().String(out)
}

// NormalizeSymptoms maps reported labels onto Catalogue entries, dropping
// duplicates and keeping report order. At least one symptom is required.
func NormalizeSymptoms(reported []string) ([]string, error) {
	seen := make(map[string]bool, len(reported))
	out := make([]string, 0, len(reported))
	for _, s := range reported {
		if strings.TrimSpace(s) == "" {
			continue
		}
		canonical, ok := symptomIndex[fold(s)]
		if !ok {
			return nil, fmt.Errorf("unknown symptom %q: %w", s, apperr.ErrInvalidInput)
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one symptom is required: %w", apperr.ErrInvalidInput)
	}
	return out, nil
}

// reportedBy reports whether any of the node's symptom aliases is present
// in symptoms.
func reportedBy(n Node, symptoms []string) bool {
	for _, alias := range n.Symptoms {
		a := fold(alias)
		for _, s := range symptoms {
			if fold(s) == a {
				return true
			}
		}
	}
	return false
}
