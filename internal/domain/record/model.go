package record

import (
	"strings"
	"time"
)

// Status is the lifecycle position of a ClinicalRecord.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusClaimed   Status = "claimed"
	StatusConfirmed Status = "confirmed"
)

// PlaceholderTreatment is written by triage until a clinician signs off.
const PlaceholderTreatment = "Pendiente de revisión médica"

// ClinicalRecord is one diagnostic episode: symptoms, preliminary
// diagnosis, clinician treatment and sign-off.
type ClinicalRecord struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patient_id"`
	FacilityID  string     `json:"facility_id"`
	CreatedAt   time.Time  `json:"created_at"`
	Symptoms    []string   `json:"symptoms"`
	TreeNodeID  string     `json:"tree_node_id,omitempty"`
	Diagnosis   string     `json:"diagnosis"`
	Treatment   string     `json:"treatment"`
	Observation string     `json:"observation,omitempty"`
	Confirmed   bool       `json:"confirmed"`
	ClinicianID string     `json:"clinician_id,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	Status      Status     `json:"status"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	// ArrivalSeq orders records within a facility's roster and QueueSeq
	// orders waiting records within its queue. Both survive restarts.
	ArrivalSeq uint64 `json:"arrival_seq,omitempty"`
	QueueSeq   uint64 `json:"queue_seq,omitempty"`
}

// New returns a record in the created state for the given patient.
func New(patientID string, symptoms []string, now time.Time) *ClinicalRecord {
	return &ClinicalRecord{
		PatientID: patientID,
		CreatedAt: now,
		Symptoms:  append([]string(nil), symptoms...),
		Status:    StatusCreated,
	}
}

// Clone returns a deep copy safe to hand outside the owning lock.
func (r *ClinicalRecord) Clone() *ClinicalRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Symptoms = append([]string(nil), r.Symptoms...)
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

// Edits carries the clinician-supplied free-text fields of a confirmation.
// A nil or blank field leaves the current value untouched.
type Edits struct {
	Diagnosis   *string `json:"diagnosis,omitempty"`
	Treatment   *string `json:"treatment,omitempty"`
	Observation *string `json:"observation,omitempty"`
}

// ApplyConfirmation signs the record off. ConfirmedAt is stamped only on the
// first confirmation so repeating an identical call changes nothing.
func (r *ClinicalRecord) ApplyConfirmation(clinicianID string, edits Edits, now time.Time) {
	overwrite(&r.Diagnosis, edits.Diagnosis)
	overwrite(&r.Treatment, edits.Treatment)
	overwrite(&r.Observation, edits.Observation)
	r.ClinicianID = clinicianID
	if !r.Confirmed {
		t := now
		r.ConfirmedAt = &t
	}
	r.Confirmed = true
	r.Status = StatusConfirmed
	r.ClaimedAt = nil
}

func overwrite(dst *string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" {
		*dst = v
	}
}
