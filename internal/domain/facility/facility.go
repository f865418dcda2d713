// Package facility loads the fixed set of care locations patients can be
// triaged into.
package facility

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Facility is the static configuration of one care location.
type Facility struct {
	ID               string  `yaml:"id" json:"id"`
	Name             string  `yaml:"name" json:"name"`
	Public           bool    `yaml:"public" json:"public"`
	ConsultationCost float64 `yaml:"consultation_cost" json:"consultation_cost"`
	Precision        int     `yaml:"precision" json:"precision"`
	AvgWaitMinutes   int     `yaml:"avg_wait_minutes" json:"avg_wait_minutes"`
}

// Defaults returns the built-in hospitals.
func Defaults() []Facility {
	return []Facility{
		{ID: "H001", Name: "Hospital Manolo Morales Peralta", Public: true, Precision: 85, AvgWaitMinutes: 45},
		{ID: "H002", Name: "Hospital Velez Paiz", Public: true, Precision: 82, AvgWaitMinutes: 50},
		{ID: "H003", Name: "Hospital Bautista", ConsultationCost: 200, Precision: 95, AvgWaitMinutes: 25},
		{ID: "H004", Name: "Hospital Vivian Pellas", ConsultationCost: 220, Precision: 97, AvgWaitMinutes: 20},
	}
}

type fileFormat struct {
	Facilities []Facility `yaml:"facilities"`
}

// LoadFile reads facilities from a YAML file. An empty path yields Defaults.
func LoadFile(path string) ([]Facility, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facilities file %s: %w", path, err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("decode facilities file %s: %v: %w", path, err, apperr.ErrConfiguration)
	}
	return ff.Facilities, nil
}

// Registry is the read-only set of configured facilities, in file order.
type Registry struct {
	order []string
	byID  map[string]Facility
}

// NewRegistry validates the facilities and indexes them by id.
func NewRegistry(facilities []Facility) (*Registry, error) {
	if len(facilities) == 0 {
		return nil, fmt.Errorf("no facilities configured: %w", apperr.ErrConfiguration)
	}
	r := &Registry{byID: make(map[string]Facility, len(facilities))}
	for _, f := range facilities {
		f.ID = strings.TrimSpace(f.ID)
		switch {
		case f.ID == "":
			return nil, fmt.Errorf("facility %q has no id: %w", f.Name, apperr.ErrConfiguration)
		case strings.TrimSpace(f.Name) == "":
			return nil, fmt.Errorf("facility %s has no name: %w", f.ID, apperr.ErrConfiguration)
		case f.ConsultationCost < 0:
			return nil, fmt.Errorf("facility %s has a negative consultation cost: %w", f.ID, apperr.ErrConfiguration)
		case f.Public && f.ConsultationCost != 0:
			return nil, fmt.Errorf("public facility %s cannot charge a consultation: %w", f.ID, apperr.ErrConfiguration)
		}
		if _, dup := r.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate facility id %s: %w", f.ID, apperr.ErrConfiguration)
		}
		r.byID[f.ID] = f
		r.order = append(r.order, f.ID)
	}
	return r, nil
}

func (r *Registry) Get(id string) (Facility, error) {
	f, ok := r.byID[id]
	if !ok {
		return Facility{}, fmt.Errorf("facility %s: %w", id, apperr.ErrNotFound)
	}
	return f, nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) List() []Facility {
	out := make([]Facility, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Eligible lists the facilities a patient with coverage c may be sent to.
func (r *Registry) Eligible(c identity.Coverage) []Facility {
	var out []Facility
	for _, f := range r.List() {
		if CheckEligible(f, c) == nil {
			out = append(out, f)
		}
	}
	return out
}

// CheckEligible refuses private facilities unless coverage pays for them.
func CheckEligible(f Facility, c identity.Coverage) error {
	if f.Public || c.AllowsPrivate() {
		return nil
	}
	return fmt.Errorf("coverage %q does not admit private facility %s: %w", c, f.ID, apperr.ErrInvalidState)
}
