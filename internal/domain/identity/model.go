// Package identity holds the people the intake core works with: patients,
// who own a clinical history, and staff, who confirm records.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/medicenter/medicenter/internal/domain/record"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Kind tags the variant of an Entity.
type Kind string

const (
	KindPatient Kind = "patient"
	KindStaff   Kind = "staff"
)

// Entity is implemented by *Patient and *Staff.
type Entity interface {
	AccountID() string
	Kind() Kind
}

// Account carries the fields shared by every person in the system.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (a Account) AccountID() string { return a.ID }

// Coverage is a patient's insurance tier.
type Coverage string

const (
	CoverageNone  Coverage = "none"
	CoverageBasic Coverage = "basic"
	CoverageFull  Coverage = "full"
)

// ParseCoverage accepts the canonical values and the legacy desktop labels
// (SinSeguro, SeguroBasico, SeguroCompleto).
func ParseCoverage(s string) (Coverage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "sinseguro":
		return CoverageNone, nil
	case "basic", "segurobasico":
		return CoverageBasic, nil
	case "full", "segurocompleto":
		return CoverageFull, nil
	}
	return "", fmt.Errorf("unknown coverage %q: %w", s, apperr.ErrInvalidInput)
}

// AllowsPrivate reports whether the coverage pays for private facilities.
func (c Coverage) AllowsPrivate() bool {
	return c == CoverageFull
}

// AccessLevel is a staff member's role.
type AccessLevel string

const (
	AccessClinician AccessLevel = "clinician"
	AccessAdmin     AccessLevel = "admin"
)

type Patient struct {
	Account
	Age              int                      `json:"age"`
	Phone            string                   `json:"phone,omitempty"`
	Gender           string                   `json:"gender,omitempty"`
	BloodType        string                   `json:"blood_type,omitempty"`
	Coverage         Coverage                 `json:"coverage"`
	InsuranceNumber  string                   `json:"insurance_number,omitempty"`
	EmergencyContact string                   `json:"emergency_contact,omitempty"`
	History          []*record.ClinicalRecord `json:"history"`
}

func (p *Patient) Kind() Kind { return KindPatient }

// Validate checks the registration fields.
func (p *Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrInvalidInput)
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("age %d out of range: %w", p.Age, apperr.ErrInvalidInput)
	}
	if _, err := ParseCoverage(string(p.Coverage)); err != nil {
		return err
	}
	if p.Coverage != CoverageNone && p.Coverage != "" && strings.TrimSpace(p.InsuranceNumber) == "" {
		return fmt.Errorf("insurance_number is required for %s coverage: %w", p.Coverage, apperr.ErrInvalidInput)
	}
	return nil
}

// LatestRecord returns the most recent record in the history, or nil.
func (p *Patient) LatestRecord() *record.ClinicalRecord {
	if len(p.History) == 0 {
		return nil
	}
	return p.History[len(p.History)-1]
}

// Clone deep-copies the patient including its history.
func (p *Patient) Clone() *Patient {
	c := *p
	c.History = make([]*record.ClinicalRecord, len(p.History))
	for i, r := range p.History {
		c.History[i] = r.Clone()
	}
	return &c
}

type Staff struct {
	Account
	FacilityID       string      `json:"facility_id"`
	Specialty        string      `json:"specialty,omitempty"`
	Access           AccessLevel `json:"access"`
	AssignedPatients []string    `json:"assigned_patients"`
}

func (s *Staff) Kind() Kind { return KindStaff }

// Validate checks the registration fields.
func (s *Staff) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required: %w", apperr.ErrInvalidInput)
	}
	switch s.Access {
	case AccessClinician:
		if s.FacilityID == "" {
			return fmt.Errorf("facility_id is required for clinicians: %w", apperr.ErrInvalidInput)
		}
	case AccessAdmin:
	default:
		return fmt.Errorf("unknown access level %q: %w", s.Access, apperr.ErrInvalidInput)
	}
	return nil
}

// Assign adds patientID to the assigned set and reports whether it was new.
func (s *Staff) Assign(patientID string) bool {
	for _, id := range s.AssignedPatients {
		if id == patientID {
			return false
		}
	}
	s.AssignedPatients = append(s.AssignedPatients, patientID)
	return true
}

func (s *Staff) Clone() *Staff {
	c := *s
	c.AssignedPatients = append([]string(nil), s.AssignedPatients...)
	return &c
}
