package intake

import (
	"context"
	"time"
)

// SweepExpiredClaims returns every claim older than the configured lease to
// the tail of its facility queue and reports how many were returned. It is a
// no-op when no lease is configured.
func (d *Dispatcher) SweepExpiredClaims(ctx context.Context) int {
	if d.claimLease <= 0 {
		return 0
	}
	d.mu.Lock()
	now := d.clock()
	var events []Event
	var patientIDs []string
	for _, f := range d.facilities.List() {
		for _, id := range d.rosters[f.ID].records {
			r := d.records[id]
			if r.Confirmed || r.ClaimedAt == nil || now.Sub(*r.ClaimedAt) < d.claimLease {
				continue
			}
			_, event, err := d.requeueLocked(Token{PatientID: r.PatientID, RecordID: r.ID}, f.ID, "lease_expired")
			if err != nil {
				d.logger.Warn().Err(err).Str("record_id", r.ID).Msg("could not return expired claim")
				continue
			}
			events = append(events, event)
			patientIDs = appendUnique(patientIDs, r.PatientID)
		}
	}
	d.mu.Unlock()

	for _, e := range events {
		d.logger.Info().Str("record_id", e.RecordID).Str("facility_id", e.FacilityID).Msg("claim lease expired")
	}
	d.publish(ctx, events)
	if len(patientIDs) > 0 {
		// failures are logged and counted by persist
		_ = d.persist(ctx, patientIDs...)
	}
	return len(events)
}

// RunLeaseReaper sweeps expired claims every interval until ctx is done.
func (d *Dispatcher) RunLeaseReaper(ctx context.Context, interval time.Duration) error {
	if d.claimLease <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.SweepExpiredClaims(ctx)
		}
	}
}
