package record

import (
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestApplyConfirmation_OverwritesOnlySuppliedFields(t *testing.T) {
	r := queued("R00001", "H001")
	r.Treatment = PlaceholderTreatment
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	r.ApplyConfirmation("M0001", Edits{Treatment: strp("Paracetamol 500mg"), Observation: strp("   ")}, now)

	if r.Diagnosis != "LEVE: Fiebre leve." {
		t.Errorf("diagnosis should keep preliminary value, got %q", r.Diagnosis)
	}
	if r.Treatment != "Paracetamol 500mg" {
		t.Errorf("treatment = %q", r.Treatment)
	}
	if r.Observation != "" {
		t.Errorf("blank observation must not overwrite, got %q", r.Observation)
	}
	if !r.Confirmed || r.Status != StatusConfirmed || r.ClinicianID != "M0001" {
		t.Errorf("record not confirmed: %+v", r)
	}
	if r.ConfirmedAt == nil || !r.ConfirmedAt.Equal(now) {
		t.Errorf("ConfirmedAt = %v, want %v", r.ConfirmedAt, now)
	}
}

func TestApplyConfirmation_Idempotent(t *testing.T) {
	r := queued("R00001", "H001")
	edits := Edits{Diagnosis: strp("MODERADO: gastroenteritis"), Treatment: strp("Hidratación")}
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	r.ApplyConfirmation("M0001", edits, first)
	once := r.Clone()
	r.ApplyConfirmation("M0001", edits, first.Add(time.Hour))

	if r.Diagnosis != once.Diagnosis || r.Treatment != once.Treatment || r.Observation != once.Observation {
		t.Errorf("second confirmation changed text fields: %+v vs %+v", r, once)
	}
	if !r.ConfirmedAt.Equal(*once.ConfirmedAt) {
		t.Errorf("ConfirmedAt moved from %v to %v", once.ConfirmedAt, r.ConfirmedAt)
	}
}

func TestClone_IsDeep(t *testing.T) {
	r := queued("R00001", "H001")
	now := time.Now()
	r.ClaimedAt = &now

	c := r.Clone()
	c.Symptoms[0] = "Tos"
	*c.ClaimedAt = now.Add(time.Hour)

	if r.Symptoms[0] != "Fiebre" {
		t.Error("clone shares symptom slice")
	}
	if !r.ClaimedAt.Equal(now) {
		t.Error("clone shares ClaimedAt")
	}
	var nilRec *ClinicalRecord
	if nilRec.Clone() != nil {
		t.Error("expected nil clone of nil record")
	}
}
