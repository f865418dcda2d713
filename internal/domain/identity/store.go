package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Store is the persistence collaborator. The intake core only calls Save;
// Load and LoadAll serve startup hydration.
type Store interface {
	Save(ctx context.Context, e Entity) error
	Load(ctx context.Context, id string) (Entity, error)
	LoadAll(ctx context.Context) ([]Entity, error)
	Delete(ctx context.Context, id string) error
}

// BatchSaver is implemented by stores that can save several entities in
// one transaction, so either all of them are written or none.
type BatchSaver interface {
	SaveAll(ctx context.Context, entities ...Entity) error
}

func encode(e Entity) (Kind, []byte, error) {
	switch e.(type) {
	case *Patient, *Staff:
	default:
		return "", nil, fmt.Errorf("unsupported entity %T: %w", e, apperr.ErrInvalidInput)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s %s: %w", e.Kind(), e.AccountID(), err)
	}
	return e.Kind(), payload, nil
}

func decode(kind Kind, payload []byte) (Entity, error) {
	var e Entity
	switch kind {
	case KindPatient:
		e = &Patient{}
	case KindStaff:
		e = &Staff{}
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return e, nil
}

type storedEntity struct {
	kind    Kind
	payload []byte
}

// MemoryStore keeps encoded entities in a map. Entities are serialized on
// Save so later mutation by the caller does not leak into the store.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]storedEntity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[string]storedEntity)}
}

func (s *MemoryStore) Save(_ context.Context, e Entity) error {
	kind, payload, err := encode(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.AccountID()] = storedEntity{kind: kind, payload: payload}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Entity, error) {
	s.mu.RLock()
	se, ok := s.entities[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, apperr.ErrNotFound)
	}
	return decode(se.kind, se.payload)
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]Entity, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, err := s.Load(context.Background(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("account %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.entities, id)
	return nil
}

// Split separates hydrated entities by variant.
func Split(entities []Entity) ([]*Patient, []*Staff) {
	var patients []*Patient
	var staff []*Staff
	for _, e := range entities {
		switch v := e.(type) {
		case *Patient:
			patients = append(patients, v)
		case *Staff:
			staff = append(staff, v)
		}
	}
	return patients, staff
}
