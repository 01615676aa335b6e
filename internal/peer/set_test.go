package peer

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"p2pchat/internal/domain"
)

func addr(port int) domain.Address {
	return domain.Address{Host: "127.0.0.1", Port: port}
}

func TestSet_AddIsIdempotent(t *testing.T) {
	s := NewSet()

	if !s.Add(addr(9001)) {
		t.Fatal("first Add should report a new peer")
	}
	if s.Add(addr(9001)) {
		t.Error("second Add of the same address should report false")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSet_RemoveAllReturnsOnlyPresent(t *testing.T) {
	s := NewSet()
	s.Add(addr(1))
	s.Add(addr(2))
	s.Add(addr(3))

	removed := s.RemoveAll([]domain.Address{addr(2), addr(4), addr(3)})
	if len(removed) != 2 || removed[0] != addr(2) || removed[1] != addr(3) {
		t.Fatalf("removed = %v, want [127.0.0.1:2 127.0.0.1:3]", removed)
	}
	if again := s.RemoveAll([]domain.Address{addr(2)}); len(again) != 0 {
		t.Errorf("second RemoveAll = %v, want none", again)
	}
	if got := s.Snapshot(); len(got) != 1 || got[0] != addr(1) {
		t.Errorf("Snapshot = %v, want [127.0.0.1:1]", got)
	}
}

func TestSet_SnapshotIsSortedCopy(t *testing.T) {
	s := NewSet()
	s.Add(domain.Address{Host: "10.0.0.2", Port: 80})
	s.Add(domain.Address{Host: "10.0.0.1", Port: 9000})
	s.Add(domain.Address{Host: "10.0.0.1", Port: 443})

	snap := s.Snapshot()
	want := []domain.Address{
		{Host: "10.0.0.1", Port: 443},
		{Host: "10.0.0.1", Port: 9000},
		{Host: "10.0.0.2", Port: 80},
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", snap, want)
		}
	}

	snap[0] = addr(1)
	if slices.Contains(s.Snapshot(), addr(1)) {
		t.Error("mutating a snapshot must not touch the set")
	}
}

func TestSet_ConcurrentAddsNeverDuplicate(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := map[domain.Address]int{}

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 1; p <= 100; p++ {
				if s.Add(addr(p)) {
					mu.Lock()
					firsts[addr(p)]++
					mu.Unlock()
				}
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if s.Len() != 100 {
		t.Errorf("Len = %d, want 100", s.Len())
	}
	for a, n := range firsts {
		if n != 1 {
			t.Errorf("%s reported as new %d times", a, n)
		}
	}
}

func TestSet_ConcurrentAddRemove(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(domain.Address{Host: fmt.Sprintf("h%d", g), Port: i + 1})
			}
		}(g)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.RemoveAll([]domain.Address{{Host: fmt.Sprintf("h%d", g), Port: i + 1}})
			}
		}(g)
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(snap) != s.Len() {
		t.Fatalf("snapshot has %d entries, set has %d", len(snap), s.Len())
	}
	for i := 1; i < len(snap); i++ {
		if snap[i] == snap[i-1] {
			t.Fatalf("snapshot repeats %s", snap[i])
		}
	}
}

func TestRunState_SingleTransition(t *testing.T) {
	rs := NewRunState()
	if !rs.Running() {
		t.Fatal("new RunState should be running")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rs.Stop() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Stop returned true %d times, want 1", wins)
	}
	if rs.Running() {
		t.Error("RunState still running after Stop")
	}
}
