package record

import (
	"errors"
	"testing"
	"time"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

func queued(id, facility string) *ClinicalRecord {
	r := New("P0001", []string{"Fiebre"}, time.Now())
	r.ID = id
	r.FacilityID = facility
	r.Diagnosis = "LEVE: Fiebre leve."
	r.Status = StatusQueued
	return r
}

func TestCanEnqueue(t *testing.T) {
	fresh := New("P0001", []string{"Tos"}, time.Now())
	fresh.ID = "R00001"
	fresh.Diagnosis = "LEVE: Fiebre leve."

	noSymptoms := New("P0001", nil, time.Now())
	noSymptoms.ID = "R00002"
	noSymptoms.Diagnosis = "x"

	noDiagnosis := New("P0001", []string{"Tos"}, time.Now())
	noDiagnosis.ID = "R00003"

	tests := []struct {
		name        string
		rec         *ClinicalRecord
		wantAllowed bool
		wantReason  string
	}{
		{"created record with diagnosis", fresh, true, ""},
		{"already queued", queued("R00004", "H001"), false, "record R00004 is queued, only created records can be queued"},
		{"no symptoms", noSymptoms, false, "record R00002 has no symptoms"},
		{"no diagnosis", noDiagnosis, false, "record R00003 has no preliminary diagnosis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanEnqueue(tt.rec)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanClaim(t *testing.T) {
	confirmed := queued("R00002", "H001")
	confirmed.Confirmed = true
	confirmed.Status = StatusConfirmed

	claimed := queued("R00003", "H001")
	claimed.Status = StatusClaimed

	tests := []struct {
		name        string
		rec         *ClinicalRecord
		facility    string
		wantAllowed bool
	}{
		{"queued at facility", queued("R00001", "H001"), "H001", true},
		{"confirmed meanwhile", confirmed, "H001", false},
		{"already claimed", claimed, "H001", false},
		{"moved to other facility", queued("R00004", "H002"), "H001", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanClaim(tt.rec, tt.facility); got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", got.Allowed, tt.wantAllowed, got.Reason)
			}
		})
	}
}

func TestCanRequeue(t *testing.T) {
	claimed := queued("R00001", "H001")
	claimed.Status = StatusClaimed

	if got := CanRequeue(claimed, "H001"); !got.Allowed {
		t.Errorf("expected claimed record to be requeueable, got %q", got.Reason)
	}
	if got := CanRequeue(claimed, "H002"); got.Allowed {
		t.Error("expected requeue into another facility to be refused")
	}
	if got := CanRequeue(queued("R00002", "H001"), "H001"); got.Allowed {
		t.Error("expected requeue of an unclaimed record to be refused")
	}
}

func TestCanConfirm(t *testing.T) {
	created := New("P0001", []string{"Tos"}, time.Now())
	created.ID = "R00009"

	confirmed := queued("R00002", "H001")
	confirmed.Status = StatusConfirmed
	confirmed.Confirmed = true
	confirmed.ClinicianID = "M0001"

	tests := []struct {
		name        string
		rec         *ClinicalRecord
		reconfirm   bool
		wantAllowed bool
		wantReason  string
	}{
		{"queued", queued("R00001", "H001"), false, true, ""},
		{"confirmed with reconfirm", confirmed, true, true, ""},
		{"confirmed without reconfirm", confirmed, false, false, "record R00002 is already confirmed by M0001"},
		{"never queued", created, true, false, "record R00009 is created and has not been queued"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanConfirm(tt.rec, tt.reconfirm)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanTransfer(t *testing.T) {
	r := queued("R00005", "H001")
	untriaged := queued("R00006", "")

	tests := []struct {
		name        string
		ctx         TransferContext
		wantAllowed bool
	}{
		{"latest record to other facility", TransferContext{Record: r, LatestRecordID: "R00005", FromFacilityID: "H001", ToFacilityID: "H003"}, true},
		{"same facility", TransferContext{Record: r, LatestRecordID: "R00005", FromFacilityID: "H001", ToFacilityID: "H001"}, false},
		{"not latest", TransferContext{Record: r, LatestRecordID: "R00007", FromFacilityID: "H001", ToFacilityID: "H002"}, false},
		{"wrong source", TransferContext{Record: r, LatestRecordID: "R00005", FromFacilityID: "H002", ToFacilityID: "H003"}, false},
		{"empty destination", TransferContext{Record: r, LatestRecordID: "R00005", FromFacilityID: "H001"}, false},
		{"never triaged", TransferContext{Record: untriaged, LatestRecordID: "R00006", ToFacilityID: "H002"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransfer(tt.ctx); got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", got.Allowed, tt.wantAllowed, got.Reason)
			}
		})
	}
}

func TestGuardResult_Error(t *testing.T) {
	if err := allow().Error(); err != nil {
		t.Fatalf("expected nil error for allowed guard, got %v", err)
	}
	err := deny("record %s is stuck", "R00001").Error()
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err.Error() != "record R00001 is stuck: invalid state" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
