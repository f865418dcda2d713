package identity

import (
	"sync"
	"testing"

	"github.com/medicenter/medicenter/internal/domain/record"
)

func TestIDGenerator_Formats(t *testing.T) {
	g := NewIDGenerator()
	if got := g.NextPatientID(); got != "P0001" {
		t.Errorf("patient id = %s", got)
	}
	if got := g.NextStaffID(); got != "M0001" {
		t.Errorf("staff id = %s", got)
	}
	if got := g.NextRecordID(); got != "R00001" {
		t.Errorf("record id = %s", got)
	}
	if got := g.NextRecordID(); got != "R00002" {
		t.Errorf("record id = %s", got)
	}
}

func TestSeedIDGenerator(t *testing.T) {
	p := &Patient{Account: Account{ID: "P0007"}, History: []*record.ClinicalRecord{{ID: "R00041"}, {ID: "R00012"}}}
	s := &Staff{Account: Account{ID: "M0003"}}
	admin := &Staff{Account: Account{ID: "ADMIN001"}}

	g := SeedIDGenerator([]Entity{p, s, admin})
	if got := g.NextPatientID(); got != "P0008" {
		t.Errorf("patient id = %s", got)
	}
	if got := g.NextStaffID(); got != "M0004" {
		t.Errorf("staff id = %s", got)
	}
	if got := g.NextRecordID(); got != "R00042" {
		t.Errorf("record id = %s", got)
	}
}

func TestIDGenerator_ObserveNeverLowers(t *testing.T) {
	g := NewIDGenerator()
	g.Observe("P0010")
	g.Observe("P0002")
	g.Observe("Pxyz")
	g.Observe("X0099")
	if got := g.NextPatientID(); got != "P0011" {
		t.Errorf("patient id = %s", got)
	}
}

func TestIDGenerator_ConcurrentUnique(t *testing.T) {
	g := NewIDGenerator()
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.NextRecordID()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Errorf("expected 50 ids, got %d", len(seen))
	}
}
