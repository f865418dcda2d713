// Package intake coordinates record creation, per-facility queues,
// clinician confirmation and inter-facility transfer. Every mutation that
// touches more than one collection goes through the Dispatcher.
package intake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicenter/medicenter/internal/domain/facility"
	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/domain/record"
	"github.com/medicenter/medicenter/internal/domain/triage"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Options configures a Dispatcher.
type Options struct {
	Tree       *triage.Tree
	Facilities *facility.Registry
	Store      identity.Store
	// IDs defaults to a generator seeded from the hydrated entities.
	IDs       *identity.IDGenerator
	Publisher Publisher
	Metrics   *Metrics
	Logger    zerolog.Logger
	Clock     func() time.Time

	AllowReconfirm   bool
	SymptomShortcuts bool
	PersistRetries   int
	PersistBackoff   time.Duration
	// ClaimLease returns claims older than this to the queue; zero disables.
	ClaimLease time.Duration
}

// roster is the mutable bookkeeping of one facility.
type roster struct {
	records      []string
	staffIDs     []string
	patientsSeen []string
}

func (r *roster) removeRecord(id string) bool {
	for i, rid := range r.records {
		if rid == id {
			r.records = append(r.records[:i:i], r.records[i+1:]...)
			return true
		}
	}
	return false
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// Dispatcher owns the in-memory state of the intake core. Records live in
// one canonical map; patient histories hold the same pointers and facility
// rosters hold record ids in insertion order.
type Dispatcher struct {
	mu sync.RWMutex

	tree       *triage.Tree
	facilities *facility.Registry
	store      identity.Store
	ids        *identity.IDGenerator
	publisher  Publisher
	metrics    *Metrics
	logger     zerolog.Logger
	clock      func() time.Time

	allowReconfirm bool
	shortcuts      bool
	persistRetries int
	persistBackoff time.Duration
	claimLease     time.Duration

	patients map[string]*identity.Patient
	staff    map[string]*identity.Staff
	records  map[string]*record.ClinicalRecord
	rosters  map[string]*roster
	queues   map[string]*FacilityQueue
	// seq numbers arrivals and enqueues; see record.ArrivalSeq.
	seq uint64

	persistMu sync.Mutex
}

// New builds a dispatcher from hydrated patients and staff. Facility
// rosters are rebuilt from patient histories and every unconfirmed record
// is queued again in the order it last entered a queue.
func New(opts Options, patients []*identity.Patient, staff []*identity.Staff) (*Dispatcher, error) {
	if opts.Tree == nil {
		return nil, fmt.Errorf("decision tree is required: %w", apperr.ErrConfiguration)
	}
	if opts.Facilities == nil {
		return nil, fmt.Errorf("facility registry is required: %w", apperr.ErrConfiguration)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required: %w", apperr.ErrConfiguration)
	}
	d := &Dispatcher{
		tree:           opts.Tree,
		facilities:     opts.Facilities,
		store:          opts.Store,
		ids:            opts.IDs,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		clock:          opts.Clock,
		allowReconfirm: opts.AllowReconfirm,
		shortcuts:      opts.SymptomShortcuts,
		persistRetries: opts.PersistRetries,
		persistBackoff: opts.PersistBackoff,
		claimLease:     opts.ClaimLease,
		patients:       make(map[string]*identity.Patient, len(patients)),
		staff:          make(map[string]*identity.Staff, len(staff)),
		records:        make(map[string]*record.ClinicalRecord),
		rosters:        make(map[string]*roster),
		queues:         make(map[string]*FacilityQueue),
	}
	if d.publisher == nil {
		d.publisher = nopPublisher{}
	}
	if d.clock == nil {
		d.clock = func() time.Time { return time.Now().UTC() }
	}
	if d.persistRetries < 1 {
		d.persistRetries = 1
	}
	for _, f := range d.facilities.List() {
		d.rosters[f.ID] = &roster{}
		d.queues[f.ID] = NewFacilityQueue()
	}
	if d.ids == nil {
		entities := make([]identity.Entity, 0, len(patients)+len(staff))
		for _, p := range patients {
			entities = append(entities, p)
		}
		for _, s := range staff {
			entities = append(entities, s)
		}
		d.ids = identity.SeedIDGenerator(entities)
	}
	if err := d.hydrate(patients, staff); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) hydrate(patients []*identity.Patient, staff []*identity.Staff) error {
	for _, s := range staff {
		if _, dup := d.staff[s.ID]; dup {
			return fmt.Errorf("duplicate staff id %s: %w", s.ID, apperr.ErrConfiguration)
		}
		d.staff[s.ID] = s
		if ros, ok := d.rosters[s.FacilityID]; ok {
			ros.staffIDs = appendUnique(ros.staffIDs, s.ID)
		} else if s.FacilityID != "" {
			d.logger.Warn().Str("staff_id", s.ID).Str("facility_id", s.FacilityID).Msg("staff assigned to unknown facility")
		}
	}

	var waiting []*record.ClinicalRecord
	for _, p := range patients {
		if _, dup := d.patients[p.ID]; dup {
			return fmt.Errorf("duplicate patient id %s: %w", p.ID, apperr.ErrConfiguration)
		}
		d.patients[p.ID] = p
		for _, r := range p.History {
			if _, dup := d.records[r.ID]; dup {
				return fmt.Errorf("record %s appears twice: %w", r.ID, apperr.ErrConfiguration)
			}
			r.PatientID = p.ID
			d.records[r.ID] = r
			d.seq = max(d.seq, r.ArrivalSeq, r.QueueSeq)
			switch {
			case r.Confirmed:
				r.Status = record.StatusConfirmed
			case r.Status == "" || r.Status == record.StatusClaimed || r.Status == record.StatusCreated:
				r.Status = record.StatusQueued
				r.ClaimedAt = nil
			}
			ros, ok := d.rosters[r.FacilityID]
			if !ok {
				d.logger.Warn().Str("record_id", r.ID).Str("facility_id", r.FacilityID).Msg("record at unknown facility left out of queues")
				continue
			}
			ros.records = append(ros.records, r.ID)
			ros.patientsSeen = appendUnique(ros.patientsSeen, p.ID)
			if !r.Confirmed {
				waiting = append(waiting, r)
			}
		}
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		return seqLess(waiting[i], waiting[j], waiting[i].QueueSeq, waiting[j].QueueSeq)
	})
	for _, r := range waiting {
		d.queues[r.FacilityID].Enqueue(Token{PatientID: r.PatientID, RecordID: r.ID})
	}
	for id, ros := range d.rosters {
		sort.SliceStable(ros.records, func(i, j int) bool {
			a, b := d.records[ros.records[i]], d.records[ros.records[j]]
			return seqLess(a, b, a.ArrivalSeq, b.ArrivalSeq)
		})
		d.updateQueueGauge(id)
	}
	return nil
}

// seqLess orders by sequence number, then creation time, then id. Records
// written before sequences existed carry zero and sort by creation time.
func seqLess(a, b *record.ClinicalRecord, sa, sb uint64) bool {
	if sa != sb {
		return sa < sb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (d *Dispatcher) nextSeq() uint64 {
	d.seq++
	return d.seq
}

// enqueueLocked appends t to q and stamps the record's queue sequence.
func (d *Dispatcher) enqueueLocked(q *FacilityQueue, r *record.ClinicalRecord, t Token) {
	r.QueueSeq = d.nextSeq()
	q.Enqueue(t)
}

// updateQueueGauge publishes the number of live tokens of a facility.
func (d *Dispatcher) updateQueueGauge(facilityID string) {
	if d.metrics == nil {
		return
	}
	live := d.live(facilityID)
	n := 0
	for _, t := range d.queues[facilityID].Snapshot() {
		if live(t) {
			n++
		}
	}
	d.metrics.setQueueLength(facilityID, n)
}

func (d *Dispatcher) publish(ctx context.Context, events []Event) {
	for _, e := range events {
		if err := d.publisher.Publish(ctx, e); err != nil {
			d.logger.Warn().Err(err).Str("event", e.Type).Str("record_id", e.RecordID).Msg("publish event failed")
		}
	}
}

func (d *Dispatcher) facilityLocked(id string) (facility.Facility, *roster, *FacilityQueue, error) {
	f, err := d.facilities.Get(id)
	if err != nil {
		return facility.Facility{}, nil, nil, err
	}
	return f, d.rosters[id], d.queues[id], nil
}

func (d *Dispatcher) patientLocked(id string) (*identity.Patient, error) {
	p, ok := d.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func (d *Dispatcher) recordLocked(id string) (*record.ClinicalRecord, error) {
	r, ok := d.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return r, nil
}

// live reports whether a queued token still refers to a record waiting at
// facilityID.
func (d *Dispatcher) live(facilityID string) func(Token) bool {
	return func(t Token) bool {
		r, ok := d.records[t.RecordID]
		return ok && r.PatientID == t.PatientID && record.CanClaim(r, facilityID).Allowed
	}
}

func (d *Dispatcher) livePosition(facilityID string, q *FacilityQueue, target Token) int {
	live := d.live(facilityID)
	n := 0
	for _, t := range q.Snapshot() {
		if !live(t) {
			continue
		}
		n++
		if t == target {
			return n
		}
	}
	return n
}

// RegisterPatient validates p, assigns it a patient id and stores it.
func (d *Dispatcher) RegisterPatient(ctx context.Context, p *identity.Patient) (*identity.Patient, error) {
	coverage, err := identity.ParseCoverage(string(p.Coverage))
	if err != nil {
		return nil, err
	}
	p.Coverage = coverage
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	p.ID = d.ids.NextPatientID()
	p.RegisteredAt = d.clock()
	p.History = nil
	stored := p.Clone()
	d.patients[stored.ID] = stored
	d.mu.Unlock()

	d.logger.Info().Str("patient_id", stored.ID).Msg("patient registered")
	return p, d.persist(ctx, stored.ID)
}

// RegisterStaff validates s, assigns it a staff id and adds it to its
// facility roster.
func (d *Dispatcher) RegisterStaff(ctx context.Context, s *identity.Staff) (*identity.Staff, error) {
	if s.Access == "" {
		s.Access = identity.AccessClinician
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	var ros *roster
	if s.FacilityID != "" {
		_, r, _, err := d.facilityLocked(s.FacilityID)
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		ros = r
	}
	s.ID = d.ids.NextStaffID()
	s.RegisteredAt = d.clock()
	s.AssignedPatients = nil
	stored := s.Clone()
	d.staff[stored.ID] = stored
	if ros != nil {
		ros.staffIDs = appendUnique(ros.staffIDs, stored.ID)
	}
	d.mu.Unlock()

	d.logger.Info().Str("staff_id", stored.ID).Str("facility_id", stored.FacilityID).Msg("staff registered")
	return s, d.persist(ctx, stored.ID)
}

// Patient returns a copy of the patient with its history.
func (d *Dispatcher) Patient(id string) (*identity.Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.patientLocked(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Staff returns a copy of the staff member.
func (d *Dispatcher) Staff(id string) (*identity.Staff, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[id]
	if !ok {
		return nil, fmt.Errorf("staff %s: %w", id, apperr.ErrNotFound)
	}
	return s.Clone(), nil
}

// EligibleFacilities lists the facilities the patient's coverage admits.
func (d *Dispatcher) EligibleFacilities(patientID string) ([]facility.Facility, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, err := d.patientLocked(patientID)
	if err != nil {
		return nil, err
	}
	return d.facilities.Eligible(p.Coverage), nil
}

// BeginTriage opens a triage session bound to this dispatcher after
// checking the patient may be seen at the facility.
func (d *Dispatcher) BeginTriage(_ context.Context, patientID, facilityID string, symptoms []string) (*triage.Session, error) {
	d.mu.RLock()
	p, err := d.patientLocked(patientID)
	if err != nil {
		d.mu.RUnlock()
		return nil, err
	}
	f, _, _, err := d.facilityLocked(facilityID)
	if err != nil {
		d.mu.RUnlock()
		return nil, err
	}
	coverage := p.Coverage
	d.mu.RUnlock()

	if err := facility.CheckEligible(f, coverage); err != nil {
		return nil, err
	}
	return triage.NewSession(d.tree, d, triage.SessionConfig{
		PatientID:  patientID,
		FacilityID: facilityID,
		Symptoms:   symptoms,
		Shortcuts:  d.shortcuts,
		Now:        d.clock(),
	})
}

// Intake places rec in the patient's history and the facility's record
// collection and queues a token for it, as one step. rec.ID is assigned when
// empty. It returns the record's position among the live tokens.
func (d *Dispatcher) Intake(ctx context.Context, patientID, facilityID string, rec *record.ClinicalRecord) (int, error) {
	if rec == nil {
		return 0, fmt.Errorf("record is required: %w", apperr.ErrInvalidInput)
	}

	d.mu.Lock()
	p, err := d.patientLocked(patientID)
	if err != nil {
		d.mu.Unlock()
		return 0, err
	}
	f, ros, q, err := d.facilityLocked(facilityID)
	if err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if err := facility.CheckEligible(f, p.Coverage); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if rec.PatientID != "" && rec.PatientID != patientID {
		d.mu.Unlock()
		return 0, fmt.Errorf("record belongs to patient %s, not %s: %w", rec.PatientID, patientID, apperr.ErrInvalidInput)
	}
	if rec.ID != "" {
		if _, dup := d.records[rec.ID]; dup {
			d.mu.Unlock()
			return 0, fmt.Errorf("record %s already taken in: %w", rec.ID, apperr.ErrInvalidState)
		}
	}
	if g := record.CanEnqueue(rec); !g.Allowed {
		d.mu.Unlock()
		return 0, g.Error()
	}

	if rec.ID == "" {
		rec.ID = d.ids.NextRecordID()
	} else {
		d.ids.Observe(rec.ID)
	}
	rec.PatientID = patientID
	rec.FacilityID = facilityID
	rec.Status = record.StatusQueued
	rec.ArrivalSeq = d.nextSeq()

	stored := rec.Clone()
	d.records[stored.ID] = stored
	p.History = append(p.History, stored)
	ros.records = append(ros.records, stored.ID)
	ros.patientsSeen = appendUnique(ros.patientsSeen, patientID)
	token := Token{PatientID: patientID, RecordID: stored.ID}
	d.enqueueLocked(q, stored, token)
	position := d.livePosition(facilityID, q, token)
	d.updateQueueGauge(facilityID)
	d.metrics.recordIntake(facilityID, string(triage.SeverityOf(stored.Diagnosis)))
	event := Event{Type: EventQueued, FacilityID: facilityID, PatientID: patientID, RecordID: stored.ID, Position: position, At: d.clock()}
	d.mu.Unlock()

	d.logger.Info().Str("patient_id", patientID).Str("record_id", stored.ID).Str("facility_id", facilityID).Int("position", position).Msg("record queued")
	d.publish(ctx, []Event{event})
	return position, d.persist(ctx, patientID)
}

// NextForAttention returns the head of the facility queue without removing
// it. An empty queue yields ok == false and no error.
func (d *Dispatcher) NextForAttention(facilityID string) (Token, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, _, q, err := d.facilityLocked(facilityID)
	if err != nil {
		return Token{}, false, err
	}
	t, ok := q.PeekWhere(d.live(facilityID))
	return t, ok, nil
}

// Claim removes and returns the head token. It is the only operation that
// takes tokens off a queue for attention; tokens whose record was confirmed
// or moved meanwhile are discarded on the way. An empty queue yields
// ok == false and no error.
func (d *Dispatcher) Claim(ctx context.Context, facilityID string) (Token, bool, error) {
	d.mu.Lock()
	_, _, q, err := d.facilityLocked(facilityID)
	if err != nil {
		d.mu.Unlock()
		return Token{}, false, err
	}
	live := d.live(facilityID)
	for {
		t, ok := q.Dequeue()
		if !ok {
			d.updateQueueGauge(facilityID)
			d.mu.Unlock()
			return Token{}, false, nil
		}
		if !live(t) {
			d.metrics.recordStale(facilityID)
			d.logger.Debug().Str("record_id", t.RecordID).Str("facility_id", facilityID).Msg("discarding stale token")
			continue
		}
		r := d.records[t.RecordID]
		now := d.clock()
		r.Status = record.StatusClaimed
		r.ClaimedAt = &now
		d.metrics.recordClaim(facilityID)
		d.updateQueueGauge(facilityID)
		event := Event{Type: EventClaimed, FacilityID: facilityID, PatientID: t.PatientID, RecordID: t.RecordID, At: now}
		d.mu.Unlock()

		d.publish(ctx, []Event{event})
		return t, true, nil
	}
}

// Requeue returns a claimed token to the tail of the facility queue and
// reports its new position. Record content is untouched; the new queue
// slot is persisted with the patient.
func (d *Dispatcher) Requeue(ctx context.Context, t Token, facilityID string) (int, error) {
	d.mu.Lock()
	position, event, err := d.requeueLocked(t, facilityID, "manual")
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	d.publish(ctx, []Event{event})
	return position, d.persist(ctx, t.PatientID)
}

func (d *Dispatcher) requeueLocked(t Token, facilityID, reason string) (int, Event, error) {
	_, _, q, err := d.facilityLocked(facilityID)
	if err != nil {
		return 0, Event{}, err
	}
	r, err := d.recordLocked(t.RecordID)
	if err != nil {
		return 0, Event{}, err
	}
	if r.PatientID != t.PatientID {
		return 0, Event{}, fmt.Errorf("record %s does not belong to patient %s: %w", t.RecordID, t.PatientID, apperr.ErrInvalidInput)
	}
	if g := record.CanRequeue(r, facilityID); !g.Allowed {
		return 0, Event{}, g.Error()
	}
	r.Status = record.StatusQueued
	r.ClaimedAt = nil
	d.enqueueLocked(q, r, t)
	position := d.livePosition(facilityID, q, t)
	d.metrics.recordRequeue(facilityID, reason)
	d.updateQueueGauge(facilityID)
	return position, Event{Type: EventRequeued, FacilityID: facilityID, PatientID: t.PatientID, RecordID: t.RecordID, Position: position, Reason: reason, At: d.clock()}, nil
}

// Confirm signs a record off on behalf of clinicianID, overwriting only the
// supplied free-text fields, and adds the patient to the clinician's
// assigned set. Confirming again with the same input changes nothing; when
// re-confirmation is disabled it fails with ErrInvalidState.
func (d *Dispatcher) Confirm(ctx context.Context, recordID, clinicianID string, edits record.Edits) (*record.ClinicalRecord, error) {
	d.mu.Lock()
	r, err := d.recordLocked(recordID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	p, err := d.patientLocked(r.PatientID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if !inHistory(p, r) {
		d.mu.Unlock()
		return nil, fmt.Errorf("record %s is not in the history of patient %s: %w", recordID, p.ID, apperr.ErrNotFound)
	}
	s, ok := d.staff[clinicianID]
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("clinician %s: %w", clinicianID, apperr.ErrNotFound)
	}
	if g := record.CanConfirm(r, d.allowReconfirm); !g.Allowed {
		d.mu.Unlock()
		return nil, g.Error()
	}

	now := d.clock()
	r.ApplyConfirmation(clinicianID, edits, now)
	s.Assign(p.ID)
	out := r.Clone()
	d.metrics.recordConfirmation(r.FacilityID)
	d.updateQueueGauge(r.FacilityID)
	event := Event{Type: EventConfirmed, FacilityID: r.FacilityID, PatientID: p.ID, RecordID: r.ID, At: now}
	d.mu.Unlock()

	d.logger.Info().Str("record_id", recordID).Str("clinician_id", clinicianID).Msg("record confirmed")
	d.publish(ctx, []Event{event})
	return out, d.persist(ctx, p.ID, clinicianID)
}

func inHistory(p *identity.Patient, r *record.ClinicalRecord) bool {
	for _, h := range p.History {
		if h == r {
			return true
		}
	}
	return false
}

// Transfer moves the patient's most recent record from one facility's
// bookkeeping to another's. A record still waiting moves its token to the
// tail of the destination queue.
func (d *Dispatcher) Transfer(ctx context.Context, recordID, fromFacilityID, toFacilityID string) (*record.ClinicalRecord, error) {
	d.mu.Lock()
	r, err := d.recordLocked(recordID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	p, err := d.patientLocked(r.PatientID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	latestID := ""
	if latest := p.LatestRecord(); latest != nil {
		latestID = latest.ID
	}
	if g := record.CanTransfer(record.TransferContext{
		Record:         r,
		LatestRecordID: latestID,
		FromFacilityID: fromFacilityID,
		ToFacilityID:   toFacilityID,
	}); !g.Allowed {
		d.mu.Unlock()
		return nil, g.Error()
	}
	_, fromRoster, fromQueue, err := d.facilityLocked(fromFacilityID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	_, toRoster, toQueue, err := d.facilityLocked(toFacilityID)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	now := d.clock()
	fromRoster.removeRecord(r.ID)
	toRoster.records = append(toRoster.records, r.ID)
	toRoster.patientsSeen = appendUnique(toRoster.patientsSeen, p.ID)
	r.FacilityID = toFacilityID
	r.ArrivalSeq = d.nextSeq()

	token := Token{PatientID: p.ID, RecordID: r.ID}
	position := 0
	if !r.Confirmed {
		// The source token would turn live again if the record ever came
		// back, so it is dropped rather than left stale.
		fromQueue.Remove(token)
		r.Status = record.StatusQueued
		r.ClaimedAt = nil
		d.enqueueLocked(toQueue, r, token)
		position = d.livePosition(toFacilityID, toQueue, token)
	}
	d.metrics.recordTransfer(fromFacilityID, toFacilityID)
	d.updateQueueGauge(fromFacilityID)
	d.updateQueueGauge(toFacilityID)
	out := r.Clone()
	events := []Event{
		{Type: EventTransferred, FacilityID: fromFacilityID, PatientID: p.ID, RecordID: r.ID, Reason: "to " + toFacilityID, At: now},
		{Type: EventTransferred, FacilityID: toFacilityID, PatientID: p.ID, RecordID: r.ID, Position: position, Reason: "from " + fromFacilityID, At: now},
	}
	d.mu.Unlock()

	d.logger.Info().Str("record_id", recordID).Str("from", fromFacilityID).Str("to", toFacilityID).Msg("record transferred")
	d.publish(ctx, events)
	return out, d.persist(ctx, p.ID)
}

// PendingUnconfirmed lists the facility's unconfirmed records in insertion
// order.
func (d *Dispatcher) PendingUnconfirmed(facilityID string) ([]*record.ClinicalRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ros, _, err := d.facilityLocked(facilityID)
	if err != nil {
		return nil, err
	}
	var out []*record.ClinicalRecord
	for _, id := range ros.records {
		if r := d.records[id]; !r.Confirmed {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// FacilityRecords lists every record currently at the facility in insertion
// order.
func (d *Dispatcher) FacilityRecords(facilityID string) ([]*record.ClinicalRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ros, _, err := d.facilityLocked(facilityID)
	if err != nil {
		return nil, err
	}
	out := make([]*record.ClinicalRecord, 0, len(ros.records))
	for _, id := range ros.records {
		out = append(out, d.records[id].Clone())
	}
	return out, nil
}

// Record returns a copy of one record.
func (d *Dispatcher) Record(id string) (*record.ClinicalRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, err := d.recordLocked(id)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// History returns the patient's records, oldest first.
func (d *Dispatcher) History(patientID string) ([]*record.ClinicalRecord, error) {
	p, err := d.Patient(patientID)
	if err != nil {
		return nil, err
	}
	return p.History, nil
}

// AssignedPatients returns the patients a clinician has confirmed records
// for.
func (d *Dispatcher) AssignedPatients(staffID string) ([]*identity.Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[staffID]
	if !ok {
		return nil, fmt.Errorf("staff %s: %w", staffID, apperr.ErrNotFound)
	}
	out := make([]*identity.Patient, 0, len(s.AssignedPatients))
	for _, pid := range s.AssignedPatients {
		if p, ok := d.patients[pid]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// QueueEntry is one live token with the record facts a clinician needs to
// pick it up.
type QueueEntry struct {
	Position  int             `json:"position"`
	Token     Token           `json:"token"`
	Diagnosis string          `json:"diagnosis"`
	Severity  triage.Severity `json:"severity"`
	Symptoms  []string        `json:"symptoms"`
	CreatedAt time.Time       `json:"created_at"`
}

// QueueSnapshot lists the live tokens of a facility, head first.
func (d *Dispatcher) QueueSnapshot(facilityID string) ([]QueueEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, _, q, err := d.facilityLocked(facilityID)
	if err != nil {
		return nil, err
	}
	live := d.live(facilityID)
	var out []QueueEntry
	for _, t := range q.Snapshot() {
		if !live(t) {
			continue
		}
		r := d.records[t.RecordID]
		out = append(out, QueueEntry{
			Position:  len(out) + 1,
			Token:     t,
			Diagnosis: r.Diagnosis,
			Severity:  triage.SeverityOf(r.Diagnosis),
			Symptoms:  append([]string(nil), r.Symptoms...),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// FacilityStatus is a facility's configuration plus its live bookkeeping.
type FacilityStatus struct {
	facility.Facility
	StaffIDs     []string `json:"staff_ids"`
	PatientsSeen []string `json:"patients_seen"`
	Records      int      `json:"records"`
	Pending      int      `json:"pending"`
	QueueLength  int      `json:"queue_length"`
}

func (d *Dispatcher) statusLocked(f facility.Facility) FacilityStatus {
	ros := d.rosters[f.ID]
	st := FacilityStatus{
		Facility:     f,
		StaffIDs:     append([]string{}, ros.staffIDs...),
		PatientsSeen: append([]string{}, ros.patientsSeen...),
		Records:      len(ros.records),
	}
	for _, id := range ros.records {
		if !d.records[id].Confirmed {
			st.Pending++
		}
	}
	live := d.live(f.ID)
	for _, t := range d.queues[f.ID].Snapshot() {
		if live(t) {
			st.QueueLength++
		}
	}
	return st
}

// Facility returns one facility with its bookkeeping.
func (d *Dispatcher) Facility(id string) (FacilityStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, _, _, err := d.facilityLocked(id)
	if err != nil {
		return FacilityStatus{}, err
	}
	return d.statusLocked(f), nil
}

// Facilities lists every facility with its bookkeeping, in registry order.
func (d *Dispatcher) Facilities() []FacilityStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := d.facilities.List()
	out := make([]FacilityStatus, 0, len(list))
	for _, f := range list {
		out = append(out, d.statusLocked(f))
	}
	return out
}

// Comparison summarizes one facility for side-by-side display.
type Comparison struct {
	FacilityID       string  `json:"facility_id"`
	Name             string  `json:"name"`
	Public           bool    `json:"public"`
	ConsultationCost float64 `json:"consultation_cost"`
	Precision        int     `json:"precision"`
	AvgWaitMinutes   int     `json:"avg_wait_minutes"`
	ActivePatients   int     `json:"active_patients"`
	Staff            int     `json:"staff"`
	Pending          int     `json:"pending"`
	QueueLength      int     `json:"queue_length"`
}

// CompareFacilities counts, per facility, the patients whose most recent
// record is there, the staff on its roster and its open work.
func (d *Dispatcher) CompareFacilities() []Comparison {
	d.mu.RLock()
	defer d.mu.RUnlock()
	active := make(map[string]int)
	for _, p := range d.patients {
		if r := p.LatestRecord(); r != nil {
			active[r.FacilityID]++
		}
	}
	list := d.facilities.List()
	out := make([]Comparison, 0, len(list))
	for _, f := range list {
		st := d.statusLocked(f)
		out = append(out, Comparison{
			FacilityID:       f.ID,
			Name:             f.Name,
			Public:           f.Public,
			ConsultationCost: f.ConsultationCost,
			Precision:        f.Precision,
			AvgWaitMinutes:   f.AvgWaitMinutes,
			ActivePatients:   active[f.ID],
			Staff:            len(st.StaffIDs),
			Pending:          st.Pending,
			QueueLength:      st.QueueLength,
		})
	}
	return out
}
