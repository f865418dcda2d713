package identity

import (
	"fmt"
	"strconv"
	"sync"
)

const (
	patientPrefix = "P"
	staffPrefix   = "M"
	recordPrefix  = "R"
)

var idWidths = map[string]int{
	patientPrefix: 4,
	staffPrefix:   4,
	recordPrefix:  5,
}

// IDGenerator hands out P####, M#### and R##### ids. Counters only move
// forward and start above the highest id observed at load time.
type IDGenerator struct {
	mu   sync.Mutex
	last map[string]int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{last: make(map[string]int, len(idWidths))}
}

// SeedIDGenerator observes every account and record id in entities.
func SeedIDGenerator(entities []Entity) *IDGenerator {
	g := NewIDGenerator()
	for _, e := range entities {
		g.Observe(e.AccountID())
		if p, ok := e.(*Patient); ok {
			for _, r := range p.History {
				g.Observe(r.ID)
			}
		}
	}
	return g
}

// Observe raises the matching counter to id's number. Ids with an unknown
// prefix or a non-numeric suffix are ignored.
func (g *IDGenerator) Observe(id string) {
	if len(id) < 2 {
		return
	}
	prefix := id[:1]
	if _, ok := idWidths[prefix]; !ok {
		return
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n < 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n > g.last[prefix] {
		g.last[prefix] = n
	}
}

func (g *IDGenerator) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[prefix]++
	return fmt.Sprintf("%s%0*d", prefix, idWidths[prefix], g.last[prefix])
}

func (g *IDGenerator) NextPatientID() string { return g.next(patientPrefix) }
func (g *IDGenerator) NextStaffID() string   { return g.next(staffPrefix) }
func (g *IDGenerator) NextRecordID() string  { return g.next(recordPrefix) }
