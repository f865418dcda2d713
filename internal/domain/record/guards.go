package record

import (
	"fmt"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// GuardResult represents the outcome of a lifecycle guard.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts a refused guard into an ErrInvalidState error.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Reason, apperr.ErrInvalidState)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// CanEnqueue evaluates whether a fresh record may enter a facility queue.
func CanEnqueue(r *ClinicalRecord) GuardResult {
	if r.Status != StatusCreated {
		return deny("record %s is %s, only created records can be queued", r.ID, r.Status)
	}
	if len(r.Symptoms) == 0 {
		return deny("record %s has no symptoms", r.ID)
	}
	if r.Diagnosis == "" {
		return deny("record %s has no preliminary diagnosis", r.ID)
	}
	return allow()
}

// CanClaim evaluates whether a queued token still points at a claimable
// record. Tokens whose record moved or was confirmed meanwhile are stale.
func CanClaim(r *ClinicalRecord, facilityID string) GuardResult {
	if r.Confirmed {
		return deny("record %s is already confirmed", r.ID)
	}
	if r.Status != StatusQueued {
		return deny("record %s is %s, not queued", r.ID, r.Status)
	}
	if r.FacilityID != facilityID {
		return deny("record %s belongs to facility %s", r.ID, r.FacilityID)
	}
	return allow()
}

// CanRequeue evaluates whether a claimed record may go back to the tail of
// facilityID's queue.
func CanRequeue(r *ClinicalRecord, facilityID string) GuardResult {
	if r.Status != StatusClaimed {
		return deny("record %s is %s, only claimed records can be requeued", r.ID, r.Status)
	}
	if r.FacilityID != facilityID {
		return deny("record %s belongs to facility %s, not %s", r.ID, r.FacilityID, facilityID)
	}
	return allow()
}

// CanConfirm evaluates whether a clinician may sign the record off.
// Re-confirmation is refused unless allowReconfirm is set.
func CanConfirm(r *ClinicalRecord, allowReconfirm bool) GuardResult {
	switch r.Status {
	case StatusQueued, StatusClaimed:
		return allow()
	case StatusConfirmed:
		if allowReconfirm {
			return allow()
		}
		return deny("record %s is already confirmed by %s", r.ID, r.ClinicianID)
	default:
		return deny("record %s is %s and has not been queued", r.ID, r.Status)
	}
}

// TransferContext provides the facts a transfer guard needs.
type TransferContext struct {
	Record         *ClinicalRecord
	LatestRecordID string
	FromFacilityID string
	ToFacilityID   string
}

// CanTransfer evaluates whether a record may move between facilities.
// Rules:
// - the record must have been triaged into a facility
// - only the patient's most recent record moves
// - the source must be where the record currently is
// - source and destination must differ
func CanTransfer(ctx TransferContext) GuardResult {
	r := ctx.Record
	if r.FacilityID == "" {
		return deny("record %s was never triaged into a facility", r.ID)
	}
	if ctx.LatestRecordID != r.ID {
		return deny("record %s is not the most recent record of patient %s", r.ID, r.PatientID)
	}
	if ctx.FromFacilityID != r.FacilityID {
		return deny("record %s is at facility %s, not %s", r.ID, r.FacilityID, ctx.FromFacilityID)
	}
	if ctx.ToFacilityID == "" {
		return deny("destination facility is required")
	}
	if ctx.FromFacilityID == ctx.ToFacilityID {
		return deny("record %s is already at facility %s", r.ID, ctx.ToFacilityID)
	}
	return allow()
}
