package intake

import (
	"fmt"
	"sync"
	"testing"
)

func tok(n int) Token {
	return Token{PatientID: fmt.Sprintf("P%04d", n), RecordID: fmt.Sprintf("R%05d", n)}
}

func TestFacilityQueue_FIFO(t *testing.T) {
	q := NewFacilityQueue()
	for i := 1; i <= 5; i++ {
		if n := q.Enqueue(tok(i)); n != i {
			t.Fatalf("Enqueue returned %d, want %d", n, i)
		}
	}
	head, ok := q.Peek()
	if !ok || head != tok(1) {
		t.Fatalf("Peek = %v, %v", head, ok)
	}
	if q.Len() != 5 {
		t.Fatalf("Peek must not remove, len = %d", q.Len())
	}
	for i := 1; i <= 5; i++ {
		got, ok := q.Dequeue()
		if !ok || got != tok(i) {
			t.Fatalf("Dequeue #%d = %v, %v", i, got, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
	if _, ok := q.Peek(); ok {
		t.Fatal("expected empty peek")
	}
}

func TestFacilityQueue_RequeueGoesToTail(t *testing.T) {
	q := NewFacilityQueue()
	q.Enqueue(tok(1))
	q.Enqueue(tok(2))
	first, _ := q.Dequeue()
	q.Enqueue(first)

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0] != tok(2) || snap[1] != tok(1) {
		t.Errorf("unexpected order %v", snap)
	}
}

func TestFacilityQueue_RemoveAndContains(t *testing.T) {
	q := NewFacilityQueue()
	q.Enqueue(tok(1))
	q.Enqueue(tok(2))
	q.Enqueue(tok(3))
	snap := q.Snapshot()

	if !q.Remove(tok(2)) {
		t.Fatal("expected token 2 to be removed")
	}
	if q.Remove(tok(2)) {
		t.Fatal("expected second remove to report false")
	}
	if q.Contains(tok(2)) || !q.Contains(tok(3)) {
		t.Error("Contains disagrees with Remove")
	}
	if snap[1] != tok(2) {
		t.Error("Remove mutated an earlier snapshot")
	}
	got := q.Snapshot()
	if len(got) != 2 || got[0] != tok(1) || got[1] != tok(3) {
		t.Errorf("unexpected queue %v", got)
	}
}

func TestFacilityQueue_PeekWhere(t *testing.T) {
	q := NewFacilityQueue()
	q.Enqueue(tok(1))
	q.Enqueue(tok(2))
	got, ok := q.PeekWhere(func(t Token) bool { return t.RecordID != "R00001" })
	if !ok || got != tok(2) {
		t.Errorf("PeekWhere = %v, %v", got, ok)
	}
	if q.Len() != 2 {
		t.Error("PeekWhere must not remove")
	}
}

func TestFacilityQueue_ConcurrentDequeueHandsOutEachTokenOnce(t *testing.T) {
	q := NewFacilityQueue()
	const n = 200
	for i := 0; i < n; i++ {
		q.Enqueue(tok(i))
	}
	var mu sync.Mutex
	seen := make(map[Token]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				t, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[t]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d distinct tokens, got %d", n, len(seen))
	}
	for tk, count := range seen {
		if count != 1 {
			t.Errorf("token %v handed out %d times", tk, count)
		}
	}
}
