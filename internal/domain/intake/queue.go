package intake

import "sync"

// Token references one (patient, record) pair waiting at a facility.
type Token struct {
	PatientID string `json:"patient_id"`
	RecordID  string `json:"record_id"`
}

// IsZero reports whether the token is empty.
func (t Token) IsZero() bool {
	return t.PatientID == "" && t.RecordID == ""
}

// FacilityQueue is a FIFO of tokens. Requeued tokens go to the tail; order
// is strict arrival order.
type FacilityQueue struct {
	mu    sync.Mutex
	items []Token
}

func NewFacilityQueue() *FacilityQueue {
	return &FacilityQueue{}
}

// Enqueue appends t to the tail and returns the new length.
func (q *FacilityQueue) Enqueue(t Token) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	return len(q.items)
}

// Peek returns the head without removing it.
func (q *FacilityQueue) Peek() (Token, bool) {
	return q.PeekWhere(func(Token) bool { return true })
}

// PeekWhere returns the first token satisfying live without removing
// anything.
func (q *FacilityQueue) PeekWhere(live func(Token) bool) (Token, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.items {
		if live(t) {
			return t, true
		}
	}
	return Token{}, false
}

// Dequeue atomically removes and returns the head.
func (q *FacilityQueue) Dequeue() (Token, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Token{}, false
	}
	t := q.items[0]
	q.items[0] = Token{}
	q.items = q.items[1:]
	return t, true
}

// Remove deletes the first occurrence of t and reports whether it was found.
func (q *FacilityQueue) Remove(t Token) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it == t {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether t is queued.
func (q *FacilityQueue) Contains(t Token) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it == t {
			return true
		}
	}
	return false
}

func (q *FacilityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queue, head first.
func (q *FacilityQueue) Snapshot() []Token {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Token(nil), q.items...)
}
