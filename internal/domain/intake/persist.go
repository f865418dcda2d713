package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// persist saves the named patients and staff. The in-memory change has
// already been committed, so the save runs detached from the caller's
// cancellation; a failure is reported, never rolled back. Stores that
// implement identity.BatchSaver write all ids in one transaction.
//
// Every attempt snapshots the current state under persistMu, so
// concurrent saves of the same id always end with the latest state. The
// lock is released while waiting between attempts.
func (d *Dispatcher) persist(ctx context.Context, ids ...string) error {
	ctx = context.WithoutCancel(ctx)

	if bs, ok := d.store.(identity.BatchSaver); ok && len(ids) > 1 {
		return d.retrySave(ctx, strings.Join(ids, ","), func() error {
			return bs.SaveAll(ctx, d.snapshots(ids)...)
		})
	}

	var errs []error
	for _, id := range ids {
		err := d.retrySave(ctx, id, func() error {
			e, ok := d.snapshot(id)
			if !ok {
				return nil
			}
			return d.store.Save(ctx, e)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) retrySave(ctx context.Context, label string, save func() error) error {
	attempt := 0
	op := func() error {
		d.persistMu.Lock()
		defer d.persistMu.Unlock()
		attempt++
		return save()
	}
	notify := func(err error, wait time.Duration) {
		d.logger.Warn().Err(err).Str("id", label).Int("attempt", attempt).Dur("retry_in", wait).Msg("save failed, retrying")
	}
	if err := backoff.RetryNotify(op, d.saveBackOff(ctx), notify); err != nil {
		d.metrics.recordPersistFailure()
		d.logger.Error().Err(err).Str("id", label).Int("attempts", attempt).Msg("persist failed")
		return fmt.Errorf("save %s: %w: %w", label, apperr.ErrPersistence, err)
	}
	return nil
}

// saveBackOff allows persistRetries attempts, doubling the wait from
// persistBackoff between them.
func (d *Dispatcher) saveBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.persistBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.persistRetries-1)), ctx)
}

func (d *Dispatcher) snapshot(id string) (identity.Entity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked(id)
}

func (d *Dispatcher) snapshots(ids []string) []identity.Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]identity.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := d.snapshotLocked(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func (d *Dispatcher) snapshotLocked(id string) (identity.Entity, bool) {
	if p, ok := d.patients[id]; ok {
		return p.Clone(), true
	}
	if s, ok := d.staff[id]; ok {
		return s.Clone(), true
	}
	return nil, false
}
