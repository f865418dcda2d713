package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medicenter/medicenter/internal/domain/record"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Intaker accepts a finished record and returns its queue position.
type Intaker interface {
	Intake(ctx context.Context, patientID, facilityID string, rec *record.ClinicalRecord) (int, error)
}

// PathStep records one answered question.
type PathStep struct {
	NodeID   string `json:"node_id"`
	Question string `json:"question"`
	Answer   Answer `json:"answer"`
	Auto     bool   `json:"auto,omitempty"`
}

// SessionConfig describes a new triage session.
type SessionConfig struct {
	PatientID  string
	FacilityID string
	Symptoms   []string
	// Shortcuts answers "yes" to questions whose symptom aliases were
	// already reported on the intake form.
	Shortcuts bool
	Now       time.Time
}

// Session drives one patient through the tree and produces a record.
type Session struct {
	mu sync.Mutex

	id         string
	tree       *Tree
	intaker    Intaker
	patientID  string
	facilityID string
	createdAt  time.Time
	shortcuts  bool

	cursor    Cursor
	path      []PathStep
	record    *record.ClinicalRecord
	result    *Result
	finalized bool
	position  int
}

// NewSession validates the symptoms, starts a walk at the root and applies
// any symptom shortcuts.
func NewSession(tree *Tree, intaker Intaker, cfg SessionConfig) (*Session, error) {
	if cfg.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required: %w", apperr.ErrInvalidInput)
	}
	if cfg.FacilityID == "" {
		return nil, fmt.Errorf("facility_id is required: %w", apperr.ErrInvalidInput)
	}
	symptoms, err := NormalizeSymptoms(cfg.Symptoms)
	if err != nil {
		return nil, err
	}
	cursor, err := tree.Walk("")
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	s := &Session{
		tree:       tree,
		intaker:    intaker,
		patientID:  cfg.PatientID,
		facilityID: cfg.FacilityID,
		createdAt:  now,
		shortcuts:  cfg.Shortcuts,
		cursor:     cursor,
		record:     record.New(cfg.PatientID, symptoms, now),
	}
	if err := s.applyShortcuts(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) applyShortcuts() error {
	if !s.shortcuts {
		return nil
	}
	for s.result == nil {
		n, _ := s.tree.Node(s.cursor.NodeID)
		if !reportedBy(n, s.record.Symptoms) {
			return nil
		}
		if err := s.advance(Yes, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) advance(a Answer, auto bool) error {
	step, err := s.tree.Answer(s.cursor, a)
	if err != nil {
		return err
	}
	s.path = append(s.path, PathStep{
		NodeID:   s.cursor.NodeID,
		Question: s.tree.Question(s.cursor),
		Answer:   a,
		Auto:     auto,
	})
	if step.Done() {
		s.result = step.Result
		s.record.TreeNodeID = step.Result.NodeID
		s.record.Diagnosis = step.Result.Diagnosis
		s.record.Treatment = record.PlaceholderTreatment
		return nil
	}
	s.cursor = step.Next
	return nil
}

// ID returns the session id assigned by the store.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Submit answers the current question. Submitting after the walk reached a
// diagnosis fails with ErrInvalidState.
func (s *Session) Submit(a Answer) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return s.stateLocked(), fmt.Errorf("session is complete: %w", apperr.ErrInvalidState)
	}
	if err := s.advance(a, false); err != nil {
		return s.stateLocked(), err
	}
	if err := s.applyShortcuts(); err != nil {
		return s.stateLocked(), err
	}
	return s.stateLocked(), nil
}

// Complete reports whether the walk reached a diagnosis.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

// Finalize hands the finished record to the intaker. It succeeds at most
// once. A persistence failure still counts as finalized since the record was
// accepted in memory.
func (s *Session) Finalize(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return s.stateLocked(), fmt.Errorf("session has not reached a diagnosis: %w", apperr.ErrInvalidState)
	}
	if s.finalized {
		return s.stateLocked(), fmt.Errorf("session already finalized: %w", apperr.ErrInvalidState)
	}
	position, err := s.intaker.Intake(ctx, s.patientID, s.facilityID, s.record)
	if err != nil && !errors.Is(err, apperr.ErrPersistence) {
		return s.stateLocked(), err
	}
	s.finalized = true
	s.position = position
	return s.stateLocked(), err
}

// Record returns a copy of the record being built.
func (s *Session) Record() *record.ClinicalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Path returns the answered questions in order.
func (s *Session) Path() []PathStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PathStep(nil), s.path...)
}

// State is a read-only view of a session.
type State struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	FacilityID    string     `json:"facility_id"`
	Symptoms      []string   `json:"symptoms"`
	CreatedAt     time.Time  `json:"created_at"`
	NodeID        string     `json:"node_id,omitempty"`
	Question      string     `json:"question,omitempty"`
	Path          []PathStep `json:"path"`
	Complete      bool       `json:"complete"`
	Result        *Result    `json:"result,omitempty"`
	Finalized     bool       `json:"finalized"`
	RecordID      string     `json:"record_id,omitempty"`
	QueuePosition int        `json:"queue_position,omitempty"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		ID:         s.id,
		PatientID:  s.patientID,
		FacilityID: s.facilityID,
		Symptoms:   append([]string(nil), s.record.Symptoms...),
		CreatedAt:  s.createdAt,
		Path:       append([]PathStep{}, s.path...),
		Complete:   s.result != nil,
		Finalized:  s.finalized,
	}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	} else {
		st.NodeID = s.cursor.NodeID
		st.Question = s.tree.Question(s.cursor)
	}
	if s.finalized {
		st.RecordID = s.record.ID
		st.QueuePosition = s.position
	}
	return st
}
